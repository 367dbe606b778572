package http

import (
	"fmt"
	"net/http/httptest"
	"strings"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/llm/fake"
)

func ExampleServer_chat() {
	agent := core.NewChatAgent(core.ChatConfig{Model: fake.New("pong")})
	s := NewServer(agent, Config{})

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"ping"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	fmt.Println(w.Code)
	fmt.Print(w.Body.String())
	// Output:
	// 200
	// {"message":"pong"}
}
