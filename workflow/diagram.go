package workflow

import (
	"fmt"
	"strings"
)

// MermaidOption configures Mermaid rendering.
type MermaidOption func(*mermaidConfig)

type mermaidConfig struct {
	direction string // TD, LR, BT, RL
	report    *Report
}

// WithDirection sets graph direction (e.g., "TD", "LR"). Unknown values
// are ignored.
func WithDirection(dir string) MermaidOption {
	return func(c *mermaidConfig) {
		dir = strings.TrimSpace(strings.ToUpper(dir))
		switch dir {
		case "TD", "LR", "BT", "RL":
			c.direction = dir
		}
	}
}

// WithReport colors nodes by the task statuses of a finished run.
func WithReport(r *Report) MermaidOption {
	return func(c *mermaidConfig) { c.report = r }
}

var statusStyles = []struct {
	status Status
	style  string
}{
	{StatusCompleted, "fill:#d4edda,stroke:#28a745"},
	{StatusFailed, "fill:#f8d7da,stroke:#dc3545"},
	{StatusSkipped, "fill:#e2e3e5,stroke:#6c757d"},
}

// MermaidFlowchart renders the workflow graph as a Mermaid flowchart definition.
// The output starts with `graph TD` by default. Nodes appear in insertion
// order as n1, n2...; edges point from a dependency to its dependent.
func (w *Workflow) MermaidFlowchart(opts ...MermaidOption) string {
	cfg := mermaidConfig{direction: "TD"}
	for _, o := range opts {
		o(&cfg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", cfg.direction)
	if w == nil {
		return b.String()
	}

	ids := make(map[string]string, len(w.tasks))
	for i, t := range w.tasks {
		ids[t.ID] = fmt.Sprintf("n%d", i+1)
	}
	for _, t := range w.tasks {
		label := strings.ReplaceAll(t.Name, "\"", "\\\"")
		fmt.Fprintf(&b, "%s[\"%s\"]\n", ids[t.ID], label)
	}
	for _, t := range w.tasks {
		for _, dep := range t.Dependencies {
			from, ok := ids[dep]
			if !ok {
				continue
			}
			if t.Retries > 0 {
				fmt.Fprintf(&b, "%s -->|retries: %d| %s\n", from, t.Retries, ids[t.ID])
			} else {
				fmt.Fprintf(&b, "%s --> %s\n", from, ids[t.ID])
			}
		}
	}

	if cfg.report != nil {
		for _, s := range statusStyles {
			var members []string
			for _, tr := range cfg.report.Tasks {
				if id, ok := ids[tr.ID]; ok && tr.Status == s.status {
					members = append(members, id)
				}
			}
			if len(members) == 0 {
				continue
			}
			fmt.Fprintf(&b, "classDef %s %s\n", s.status, s.style)
			fmt.Fprintf(&b, "class %s %s\n", strings.Join(members, ","), s.status)
		}
	}
	return b.String()
}
