package core

import (
	"context"
	"errors"
	"strings"

	"github.com/KamdynS/agentlab/llm"
)

var (
	ErrBlocked    = errors.New("request blocked by guardrails")
	ErrNotAllowed = errors.New("request not permitted by guardrails")
)

// SimpleGuardrails provides minimal input filtering and allow/deny checks
// on the last user message.
type SimpleGuardrails struct {
	// Deny if any of these substrings appear in the user input
	DenySubstrings []string
	// Allow only if at least one of these substrings appears; if empty, allow all
	AllowSubstrings []string
	// Max input length; longer input is truncated
	MaxInputChars int
}

func (g *SimpleGuardrails) BeforeLLMCall(_ context.Context, req *llm.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return nil
	}
	last := &req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleUser {
		return nil
	}
	if g.MaxInputChars > 0 && len(last.Content) > g.MaxInputChars {
		last.Content = last.Content[:g.MaxInputChars]
	}
	lower := strings.ToLower(last.Content)
	if containsAny(lower, g.DenySubstrings) {
		return ErrBlocked
	}
	if len(g.AllowSubstrings) > 0 && !containsAny(lower, g.AllowSubstrings) {
		return ErrNotAllowed
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func (g *SimpleGuardrails) AfterLLMResponse(context.Context, *llm.Response) error { return nil }
func (g *SimpleGuardrails) BeforeToolExecute(context.Context, string, string) error { return nil }
func (g *SimpleGuardrails) AfterToolExecute(context.Context, string, string, error) error {
	return nil
}
func (g *SimpleGuardrails) AfterRun(context.Context, Message) error { return nil }

var _ Middleware = (*SimpleGuardrails)(nil)
