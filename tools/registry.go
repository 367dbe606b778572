package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/KamdynS/agentlab/llm"
	obs "github.com/KamdynS/agentlab/observability"
)

// Tool defines the interface for agent tools
type Tool interface {
	// Name returns the tool's name for identification
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// Execute runs the tool with the given input and returns the result
	Execute(ctx context.Context, input string) (string, error)

	// Schema returns the JSON schema for the tool's input (optional)
	Schema() map[string]any
}

// Registry manages a collection of tools available to agents
type Registry interface {
	Register(tool Tool) error
	Get(name string) (Tool, bool)
	// List returns all available tool names, sorted
	List() []string
	Execute(ctx context.Context, name string, input string) (string, error)
}

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidTool   = errors.New("invalid tool")
	ErrDuplicateTool = errors.New("tool already registered")
	validToolName    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// Usage counts calls of one tool.
type Usage struct {
	Name         string        `json:"name"`
	Calls        int           `json:"calls"`
	Errors       int           `json:"errors"`
	TotalLatency time.Duration `json:"total_latency"`
	LastError    string        `json:"last_error,omitempty"`
}

// AverageLatency is zero before the first call.
func (u Usage) AverageLatency() time.Duration {
	if u.Calls == 0 {
		return 0
	}
	return u.TotalLatency / time.Duration(u.Calls)
}

// DefaultRegistry is an in-memory tool registry that keeps per-tool usage
// alongside the global metrics.
type DefaultRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	usage map[string]*Usage
}

func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		tools: make(map[string]Tool),
		usage: make(map[string]*Usage),
	}
}

// Register adds tool. Names must be usable as function names by the
// model providers, and a non-nil schema must describe an object.
func (r *DefaultRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTool)
	}
	name := tool.Name()
	if !validToolName.MatchString(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidTool, name)
	}
	if s := tool.Schema(); s != nil && s["type"] != "object" {
		return fmt.Errorf("%w: %s schema type must be object", ErrInvalidTool, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.usage[name] = &Usage{Name: name}
	return nil
}

func (r *DefaultRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the function-calling declarations of every tool,
// sorted by name. Tools without a schema take one string named input.
func (r *DefaultRegistry) Definitions() []llm.Tool {
	return Definitions(r)
}

// Definitions builds function-calling declarations for any Registry.
func Definitions(reg Registry) []llm.Tool {
	var defs []llm.Tool
	for _, name := range reg.List() {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		params := t.Schema()
		if params == nil {
			params = InputSchema("tool input")
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        name,
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return defs
}

// Usage returns the counters of every registered tool, sorted by name.
func (r *DefaultRegistry) Usage() []Usage {
	r.mu.RLock()
	out := make([]Usage, 0, len(r.usage))
	for _, u := range r.usage {
		out = append(out, *u)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *DefaultRegistry) Execute(ctx context.Context, name string, input string) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		obs.MetricsImpl.RecordError("tool_not_found", map[string]string{"tool": name})
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	span, ctx := obs.StartSpan(ctx, "tool.execute")
	span.SetAttribute(obs.AttrToolName, name)
	start := time.Now()
	result, err := tool.Execute(ctx, input)
	latency := time.Since(start)
	obs.EndSpan(span, err)

	r.mu.Lock()
	if u := r.usage[name]; u != nil {
		u.Calls++
		u.TotalLatency += latency
		if err != nil {
			u.Errors++
			u.LastError = err.Error()
		}
	}
	r.mu.Unlock()

	labels := map[string]string{"tool": name, "status": "ok"}
	if err != nil {
		labels["status"] = "error"
	}
	obs.MetricsImpl.IncrementRequests(labels)
	obs.MetricsImpl.RecordLatency(latency, labels)
	if err != nil {
		obs.MetricsImpl.RecordError("tool_error", labels)
		return "", err
	}
	return result, nil
}
