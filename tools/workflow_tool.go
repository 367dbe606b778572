package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	wf "github.com/KamdynS/agentlab/workflow"
)

// WorkflowTool runs a DAG workflow and returns its report as JSON. When WF
// is nil the input names a registered workflow, either as a bare name or
// as {"name": "...", "parallelism": n}.
type WorkflowTool struct {
	NameStr string
	Desc    string
	WF      *wf.Workflow
}

type workflowInput struct {
	Name        string `json:"name"`
	Parallelism int    `json:"parallelism"`
}

func (w *WorkflowTool) Name() string {
	if w.NameStr == "" {
		return "run_workflow"
	}
	return w.NameStr
}

func (w *WorkflowTool) Description() string {
	if w.Desc != "" {
		return w.Desc
	}
	var b strings.Builder
	b.WriteString("Run a registered workflow by name. Available:")
	for _, e := range wf.Catalog() {
		if e.Error != "" {
			continue
		}
		b.WriteString(" " + e.Name)
		if e.Description != "" {
			b.WriteString(" (" + e.Description + ")")
		}
		b.WriteString(";")
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (w *WorkflowTool) Schema() map[string]any {
	return InputSchema(`workflow name, or JSON {"name": "...", "parallelism": n}`)
}

func (w *WorkflowTool) Execute(ctx context.Context, input string) (string, error) {
	var in workflowInput
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "{") {
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", fmt.Errorf("decode input: %w", err)
		}
	} else {
		in.Name = input
	}

	target := w.WF
	if target == nil {
		if in.Name == "" {
			return "", errors.New("workflow name is required")
		}
		var err error
		if target, err = wf.Lookup(in.Name); err != nil {
			return "", err
		}
	}

	var opts []wf.Option
	if in.Parallelism > 1 {
		opts = append(opts, wf.WithParallelism(in.Parallelism))
	}
	rep, err := target.Run(ctx, opts...)
	if rep == nil {
		return "", err
	}
	b, merr := json.Marshal(rep)
	if merr != nil {
		return "", merr
	}
	// Task failures are part of the report; only invalid graphs and
	// cancellation are errors.
	return string(b), err
}

var _ Tool = (*WorkflowTool)(nil)
