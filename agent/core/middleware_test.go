package core

import (
	"context"
	"errors"
	"testing"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/KamdynS/agentlab/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMW struct {
	beforeLLM, afterLLM, beforeTool, afterTool, afterRun int
	failBefore                                           error
}

func (m *countingMW) BeforeLLMCall(context.Context, *llm.ChatRequest) error {
	m.beforeLLM++
	return m.failBefore
}
func (m *countingMW) AfterLLMResponse(context.Context, *llm.Response) error {
	m.afterLLM++
	return nil
}
func (m *countingMW) BeforeToolExecute(context.Context, string, string) error {
	m.beforeTool++
	return nil
}
func (m *countingMW) AfterToolExecute(context.Context, string, string, error) error {
	m.afterTool++
	return nil
}
func (m *countingMW) AfterRun(context.Context, Message) error { m.afterRun++; return nil }

func TestMiddlewareHooksInvoked(t *testing.T) {
	mw := &countingMW{}
	model := &toolCallLLM{Client: fake.New("ok"), call: echoCall(`{"input":"a"}`)}
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(echoTool{}))

	a := NewChatAgent(ChatConfig{Model: model, Tools: reg, Config: AgentConfig{MaxIterations: 2}, Middleware: []Middleware{mw}})
	_, err := a.Run(context.Background(), Message{Role: "user", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, mw.beforeLLM)
	assert.Equal(t, 2, mw.afterLLM)
	assert.Equal(t, 1, mw.beforeTool)
	assert.Equal(t, 1, mw.afterTool)
	assert.Equal(t, 1, mw.afterRun)
}

func TestMiddlewareErrorPropagates(t *testing.T) {
	model := fake.New("never")
	nope := errors.New("nope")
	a := NewChatAgent(ChatConfig{Model: model, Middleware: []Middleware{&countingMW{failBefore: nope}}})
	_, err := a.Run(context.Background(), Message{Role: "user", Content: "hi"})
	assert.ErrorIs(t, err, nope)
	assert.Empty(t, model.Requests())
}

func TestGuardrailsBlockInput(t *testing.T) {
	a := NewChatAgent(ChatConfig{
		Model:      fake.New("never"),
		Middleware: []Middleware{&SimpleGuardrails{DenySubstrings: []string{"blocked"}}},
	})
	_, err := a.Run(context.Background(), Message{Role: "user", Content: "this is BLOCKED content"})
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestSimpleGuardrails(t *testing.T) {
	ctx := context.Background()
	g := &SimpleGuardrails{MaxInputChars: 5, DenySubstrings: []string{"bad"}}
	user := func(s string) *llm.ChatRequest {
		return &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: s}}}
	}

	assert.NoError(t, g.BeforeLLMCall(ctx, user("hello")))

	req := user("toolong")
	require.NoError(t, g.BeforeLLMCall(ctx, req))
	assert.Equal(t, "toolo", req.Messages[0].Content)

	g.AllowSubstrings = []string{"ok"}
	assert.ErrorIs(t, g.BeforeLLMCall(ctx, user("fine")), ErrNotAllowed)
	assert.NoError(t, g.BeforeLLMCall(ctx, user("ok content")))

	g.MaxInputChars = 0
	assert.ErrorIs(t, g.BeforeLLMCall(ctx, user("ok but bad")), ErrBlocked)

	// Only the last user turn is inspected.
	assistant := &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleAssistant, Content: "bad"}}}
	assert.NoError(t, g.BeforeLLMCall(ctx, assistant))
	assert.NoError(t, g.BeforeLLMCall(ctx, nil))
}

func TestTokenLimiter(t *testing.T) {
	ctx := context.Background()
	p := TokenLimiter{MaxChars: 5}

	out := p.Process(ctx, []Message{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "world"}})
	assert.Equal(t, []Message{{Role: "assistant", Content: "world"}}, out)

	out = p.Process(ctx, []Message{{Content: "123"}, {Content: "34"}, {Content: "5"}})
	assert.Equal(t, []Message{{Content: "34"}, {Content: "5"}}, out)

	// An oversized newest message keeps its tail.
	out = p.Process(ctx, []Message{{Content: "abcdefgh"}})
	assert.Equal(t, []Message{{Content: "defgh"}}, out)

	assert.Len(t, TokenLimiter{}.Process(ctx, []Message{{Content: "a"}, {Content: "b"}}), 2)
}

func TestToolCallFilter(t *testing.T) {
	in := []Message{{Role: "user", Content: "a"}, {Role: "tool", Content: "x"}, {Role: "assistant", Content: "b"}}
	out := ToolCallFilter{}.Process(context.Background(), in)
	assert.Equal(t, []Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}, out)
}

func TestProcessorsShapeRequest(t *testing.T) {
	model := fake.New("ok")
	a := NewChatAgent(ChatConfig{
		Model:      model,
		Config:     AgentConfig{SystemPrompt: "sys"},
		Processors: []Processor{TokenLimiter{MaxChars: 3}},
	})
	_, err := a.Run(context.Background(), Message{Role: "user", Content: "abcdef"})
	require.NoError(t, err)
	msgs := model.Requests()[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "def", msgs[1].Content)
}
