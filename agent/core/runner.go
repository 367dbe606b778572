package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/memory"
	obs "github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/tools"
	"github.com/rs/zerolog/log"
)

// ConversationKey is the memory key holding the []Message history.
const ConversationKey = "conversation"

// ChatAgent is the default implementation of the Agent interface
type ChatAgent struct {
	Model      llm.Client
	Tools      tools.Registry
	Mem        memory.Store
	Config     AgentConfig
	Middleware []Middleware
	Processors []Processor
}

// ChatConfig holds configuration for ChatAgent
type ChatConfig struct {
	Model      llm.Client
	Tools      tools.Registry
	Mem        memory.Store
	Config     AgentConfig
	Middleware []Middleware
	Processors []Processor
}

// NewChatAgent creates a new ChatAgent with the given configuration
func NewChatAgent(config ChatConfig) *ChatAgent {
	return &ChatAgent{
		Model:      config.Model,
		Tools:      config.Tools,
		Mem:        config.Mem,
		Config:     config.Config,
		Middleware: config.Middleware,
		Processors: config.Processors,
	}
}

// Run implements the Agent interface
func (a *ChatAgent) Run(ctx context.Context, input Message) (out Message, err error) {
	span, ctx := obs.StartSpan(ctx, "agent.run")
	span.SetAttribute(obs.AttrModel, a.Model.Model())
	defer func() { obs.EndSpan(span, err) }()

	ctx, cancel, err := a.withTimeout(ctx)
	if err != nil {
		return Message{}, err
	}
	defer cancel()

	messages, err := a.prepare(ctx, input)
	if err != nil {
		return Message{}, err
	}
	toolDefs := a.toolDefs()

	maxIterations := a.Config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	var final *llm.Response
	for iter := 0; iter < maxIterations; iter++ {
		req := &llm.ChatRequest{Messages: messages, Tools: toolDefs}
		for _, mw := range a.Middleware {
			if err := mw.BeforeLLMCall(ctx, req); err != nil {
				return Message{}, err
			}
		}

		resp, err := a.Model.Chat(ctx, req)
		if err != nil {
			return Message{}, fmt.Errorf("LLM call failed: %w", err)
		}
		for _, mw := range a.Middleware {
			if err := mw.AfterLLMResponse(ctx, resp); err != nil {
				return Message{}, err
			}
		}
		final = resp
		messages = req.Messages

		if len(resp.ToolCalls) == 0 || a.Tools == nil {
			break
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		for _, tc := range resp.ToolCalls {
			result, err := a.callTool(ctx, tc)
			if err != nil {
				return Message{}, err
			}
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: tc.ID})
		}
	}

	if final == nil {
		return Message{}, errors.New("no response from model")
	}

	out = Message{Role: llm.RoleAssistant, Content: final.Content}
	if err := a.remember(ctx, out); err != nil {
		return Message{}, err
	}
	for _, mw := range a.Middleware {
		if err := mw.AfterRun(ctx, out); err != nil {
			return Message{}, err
		}
	}
	return out, nil
}

// RunStream streams the model reply chunk by chunk and then sends the
// aggregated message. Tools are not offered while streaming.
func (a *ChatAgent) RunStream(ctx context.Context, input Message, output chan<- Message) (err error) {
	defer close(output)

	span, ctx := obs.StartSpan(ctx, "agent.run_stream")
	defer func() { obs.EndSpan(span, err) }()

	ctx, cancel, err := a.withTimeout(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	messages, err := a.prepare(ctx, input)
	if err != nil {
		return err
	}
	req := &llm.ChatRequest{Messages: messages}
	for _, mw := range a.Middleware {
		if err := mw.BeforeLLMCall(ctx, req); err != nil {
			return err
		}
	}

	chunks := make(chan *llm.Response, 16)
	errc := make(chan error, 1)
	go func() { errc <- a.Model.Stream(ctx, req, chunks) }()

	var b strings.Builder
	for c := range chunks {
		if c == nil || c.Content == "" {
			continue
		}
		b.WriteString(c.Content)
		select {
		case output <- Message{Role: llm.RoleAssistant, Content: c.Content, Meta: map[string]string{"partial": "true"}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := <-errc; err != nil {
		return fmt.Errorf("LLM stream failed: %w", err)
	}

	final := Message{Role: llm.RoleAssistant, Content: b.String()}
	if err := a.remember(ctx, final); err != nil {
		return err
	}
	for _, mw := range a.Middleware {
		if err := mw.AfterRun(ctx, final); err != nil {
			return err
		}
	}
	select {
	case output <- final:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *ChatAgent) withTimeout(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if a.Config.Timeout == "" {
		return ctx, func() {}, nil
	}
	d, err := time.ParseDuration(a.Config.Timeout)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("invalid timeout duration: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, cancel, nil
}

// prepare records input in memory and builds the model messages from the
// processed history.
func (a *ChatAgent) prepare(ctx context.Context, input Message) ([]llm.Message, error) {
	if err := a.remember(ctx, input); err != nil {
		return nil, err
	}
	history := a.history(ctx)
	if len(history) == 0 {
		history = []Message{input}
	}
	for _, p := range a.Processors {
		history = p.Process(ctx, history)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if a.Config.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.Config.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}

func (a *ChatAgent) history(ctx context.Context) []Message {
	if a.Mem == nil {
		return nil
	}
	v, err := a.Mem.Retrieve(ctx, ConversationKey)
	if err != nil {
		return nil
	}
	switch h := v.(type) {
	case []Message:
		return h
	case Message:
		return []Message{h}
	}
	// Stores that serialize values hand back decoded JSON.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var msgs []Message
	if json.Unmarshal(raw, &msgs) != nil {
		return nil
	}
	return msgs
}

func (a *ChatAgent) remember(ctx context.Context, m Message) error {
	if a.Mem == nil {
		return nil
	}
	msgs := append(a.history(ctx), m)
	if err := a.Mem.Store(ctx, ConversationKey, msgs); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (a *ChatAgent) toolDefs() []llm.Tool {
	if a.Tools == nil {
		return nil
	}
	return tools.Definitions(a.Tools)
}

// callTool runs one requested tool. Tool failures are reported to the model
// as content; only middleware errors abort the run.
func (a *ChatAgent) callTool(ctx context.Context, tc llm.ToolCall) (string, error) {
	name := tc.Function.Name
	if _, ok := a.Tools.Get(name); !ok {
		log.Warn().Str("tool", name).Msg("model requested unknown tool")
		return fmt.Sprintf("error: tool %s not found", name), nil
	}

	input := tc.Function.Arguments
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
		if v, ok := args["input"].(string); ok {
			input = v
		}
	}

	for _, mw := range a.Middleware {
		if err := mw.BeforeToolExecute(ctx, name, input); err != nil {
			return "", err
		}
	}
	result, execErr := a.Tools.Execute(ctx, name, input)
	for _, mw := range a.Middleware {
		if err := mw.AfterToolExecute(ctx, name, result, execErr); err != nil {
			return "", err
		}
	}
	if execErr != nil {
		return fmt.Sprintf("error: %v", execErr), nil
	}
	return result, nil
}
