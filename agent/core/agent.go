// Package core holds the chat agent used by the orchestrator, the HTTP
// server and the CLI: a tool-calling loop over an llm.Client with optional
// memory, middleware hooks and history processors.
package core

import (
	"context"
	"strings"

	"github.com/KamdynS/agentlab/llm"
)

// Message represents a conversation message with role and content
type Message struct {
	Role    string            `json:"role"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Agent defines the core interface for AI agents
type Agent interface {
	// Run executes one reasoning-action loop with the given input and returns output
	Run(ctx context.Context, input Message) (Message, error)

	// RunStream streams partial replies and finishes with the full message.
	// It closes output.
	RunStream(ctx context.Context, input Message, output chan<- Message) error
}

// AgentConfig holds configuration for creating agents
type AgentConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	Timeout       string `mapstructure:"timeout"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

// Middleware observes, and may veto, each stage of a run. A non-nil error
// aborts the run.
type Middleware interface {
	BeforeLLMCall(ctx context.Context, req *llm.ChatRequest) error
	AfterLLMResponse(ctx context.Context, resp *llm.Response) error
	BeforeToolExecute(ctx context.Context, toolName string, input string) error
	AfterToolExecute(ctx context.Context, toolName string, result string, execErr error) error
	AfterRun(ctx context.Context, final Message) error
}

// Processor rewrites the history before it is sent to the model.
type Processor interface {
	Process(ctx context.Context, msgs []Message) []Message
}

// TokenLimiter keeps the most recent messages whose combined content fits
// in MaxChars. The newest message is always kept.
type TokenLimiter struct {
	MaxChars int
}

func (p TokenLimiter) Process(_ context.Context, msgs []Message) []Message {
	if p.MaxChars <= 0 || len(msgs) == 0 {
		return msgs
	}
	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n := len(msgs[i].Content)
		if total+n > p.MaxChars && start < len(msgs) {
			break
		}
		total += n
		start = i
		if total >= p.MaxChars {
			break
		}
	}
	out := append([]Message(nil), msgs[start:]...)
	if last := &out[len(out)-1]; len(last.Content) > p.MaxChars {
		last.Content = last.Content[len(last.Content)-p.MaxChars:]
	}
	return out
}

// ToolCallFilter drops tool result messages from the history.
type ToolCallFilter struct{}

func (ToolCallFilter) Process(_ context.Context, msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleTool {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Text returns the trimmed content, which is what callers usually want.
func (m Message) Text() string { return strings.TrimSpace(m.Content) }
