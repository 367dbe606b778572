// Package orchestrator delegates typed tasks to specialized agents and
// composes agents with simple policies.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/llm"
)

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusNoAgent   = "no_agent"
)

// Result is the outcome of one delegated task.
type Result struct {
	Agent     string `json:"agent,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	TaskType  string `json:"task_type"`
	Task      string `json:"task"`
	Result    string `json:"result,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// AgentStats summarizes a specialist's work.
type AgentStats struct {
	Name           string `json:"name"`
	Specialty      string `json:"specialty"`
	TasksCompleted int    `json:"tasks_completed"`
}

// SpecializedAgent answers tasks within its specialty.
type SpecializedAgent struct {
	Name         string
	Specialty    string
	Capabilities []string
	Agent        core.Agent

	completed atomic.Int64
}

// NewSpecialist builds a specialist backed by a ChatAgent on client.
func NewSpecialist(name, specialty string, capabilities []string, client llm.Client) *SpecializedAgent {
	return &SpecializedAgent{
		Name:         name,
		Specialty:    specialty,
		Capabilities: capabilities,
		Agent: core.NewChatAgent(core.ChatConfig{
			Model:  client,
			Config: core.AgentConfig{SystemPrompt: "You are " + name + ", an expert in " + specialty + "."},
		}),
	}
}

// CanHandle reports whether taskType is one of the capabilities, ignoring case.
func (s *SpecializedAgent) CanHandle(taskType string) bool {
	for _, c := range s.Capabilities {
		if strings.EqualFold(c, taskType) {
			return true
		}
	}
	return false
}

// Prompt builds the specialist prompt for task.
func (s *SpecializedAgent) Prompt(task string, taskContext map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an agent specialized in %s.\n", s.Specialty)
	fmt.Fprintf(&b, "Your capabilities are: %s.\n\n", strings.Join(s.Capabilities, ", "))
	fmt.Fprintf(&b, "Task: %s\n", task)
	if len(taskContext) > 0 {
		keys := make([]string, 0, len(taskContext))
		for k := range taskContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, taskContext[k])
		}
	}
	b.WriteString("\nProvide a detailed, professional answer based on your specialty.")
	return b.String()
}

// Execute runs task on the inner agent. Failures are reported in the
// Result rather than returned.
func (s *SpecializedAgent) Execute(ctx context.Context, task string, taskContext map[string]string) Result {
	r := Result{Agent: s.Name, Specialty: s.Specialty, Task: task}
	if s.Agent == nil {
		r.Status, r.Error = StatusFailed, "agent has no model"
		return r
	}
	out, err := s.Agent.Run(ctx, core.Message{Role: llm.RoleUser, Content: s.Prompt(task, taskContext)})
	if err != nil {
		r.Status, r.Error = StatusFailed, err.Error()
		return r
	}
	s.completed.Add(1)
	r.Status, r.Result = StatusCompleted, out.Text()
	return r
}

func (s *SpecializedAgent) Stats() AgentStats {
	return AgentStats{Name: s.Name, Specialty: s.Specialty, TasksCompleted: int(s.completed.Load())}
}

func toolName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}
