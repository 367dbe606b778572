package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a workflow:
//
//	name: etl
//	parallelism: 2
//	tasks:
//	  - id: extract
//	    action: echo
//	    params: {value: rows}
//	  - id: load
//	    action: collect
//	    needs: [extract]
type Definition struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Parallelism int       `yaml:"parallelism,omitempty" json:"parallelism,omitempty"`
	Tasks       []TaskDef `yaml:"tasks" json:"tasks"`
}

type TaskDef struct {
	ID      string         `yaml:"id" json:"id"`
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Action  string         `yaml:"action" json:"action"`
	Needs   []string       `yaml:"needs,omitempty" json:"needs,omitempty"`
	Retries int            `yaml:"retries,omitempty" json:"retries,omitempty"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// ActionFactory builds the function for a task definition.
type ActionFactory func(def TaskDef) (TaskFunc, error)

// Actions maps action names to factories.
type Actions map[string]ActionFactory

// Names returns the action names, sorted.
func (a Actions) Names() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultActions returns the built-in actions:
//   - echo returns params.value, or the task id
//   - sleep waits params.duration ("250ms")
//   - fail fails the first params.times attempts (default 1), then succeeds
//   - collect returns a map of its dependencies' outputs
func DefaultActions() Actions {
	return Actions{
		"echo":    echoAction,
		"sleep":   sleepAction,
		"fail":    failAction,
		"collect": collectAction,
	}
}

func echoAction(def TaskDef) (TaskFunc, error) {
	v, ok := def.Params["value"]
	if !ok {
		v = def.ID
	}
	return func(context.Context, Results) (any, error) { return v, nil }, nil
}

func sleepAction(def TaskDef) (TaskFunc, error) {
	raw, _ := def.Params["duration"].(string)
	if raw == "" {
		return nil, fmt.Errorf("task %s: sleep needs params.duration", def.ID)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", def.ID, err)
	}
	return func(ctx context.Context, _ Results) (any, error) {
		if err := pause(ctx, d); err != nil {
			return nil, err
		}
		return d.String(), nil
	}, nil
}

func failAction(def TaskDef) (TaskFunc, error) {
	times := 1
	if v, ok := def.Params["times"]; ok {
		n, ok := v.(int)
		if !ok || n < 0 {
			return nil, fmt.Errorf("task %s: fail times must be a non-negative integer", def.ID)
		}
		times = n
	}
	return func(ctx context.Context, _ Results) (any, error) {
		if a := Attempt(ctx); a <= times {
			return nil, fmt.Errorf("simulated failure %d/%d", a, times)
		}
		return fmt.Sprintf("succeeded after %d failures", times), nil
	}, nil
}

func collectAction(def TaskDef) (TaskFunc, error) {
	needs := append([]string(nil), def.Needs...)
	return func(_ context.Context, results Results) (any, error) {
		out := make(map[string]any, len(needs))
		for _, id := range needs {
			out[id] = results[id]
		}
		return out, nil
	}, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load decodes a YAML definition. Unknown fields are rejected.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode workflow definition: %w", err)
	}
	if def.Name == "" {
		return nil, invalidf("definition has no name")
	}
	return &def, nil
}

func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Build turns def into a validated workflow. A nil actions uses
// DefaultActions.
func Build(def *Definition, actions Actions) (*Workflow, error) {
	if actions == nil {
		actions = DefaultActions()
	}
	var opts []Option
	if def.Parallelism > 0 {
		opts = append(opts, WithParallelism(def.Parallelism))
	}
	w := New(def.Name, opts...)
	for _, td := range def.Tasks {
		factory, ok := actions[td.Action]
		if !ok {
			return nil, invalidf("task %q uses unknown action %q", td.ID, td.Action)
		}
		fn, err := factory(td)
		if err != nil {
			return nil, err
		}
		if err := w.AddTask(Task{ID: td.ID, Name: td.Name, Run: fn, Dependencies: td.Needs, Retries: td.Retries}); err != nil {
			return nil, err
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}
