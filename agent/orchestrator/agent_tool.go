package orchestrator

import (
	"context"
	"errors"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/tools"
)

// AgentTool wraps an Agent as a tools.Tool so a chat agent can delegate to it.
type AgentTool struct {
	NameStr, Desc string
	Agent         core.Agent
}

func (a *AgentTool) Name() string        { return a.NameStr }
func (a *AgentTool) Description() string { return a.Desc }
func (a *AgentTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"input": map[string]any{"type": "string"}},
		"required":   []string{"input"},
	}
}

func (a *AgentTool) Execute(ctx context.Context, input string) (string, error) {
	if a.Agent == nil {
		return "", errors.New("nil agent")
	}
	out, err := a.Agent.Run(ctx, core.Message{Role: "user", Content: input})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// SpecialistTool exposes a SpecializedAgent through a tool registry.
func SpecialistTool(s *SpecializedAgent) *AgentTool {
	return &AgentTool{NameStr: toolName(s.Name), Desc: "Delegate to " + s.Name + " (" + s.Specialty + ")", Agent: s.Agent}
}

var _ tools.Tool = (*AgentTool)(nil)
