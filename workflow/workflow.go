// Package workflow runs tasks arranged as a dependency DAG with retries,
// optional parallelism and execution events.
package workflow

import (
	"container/heap"
	"context"
	"errors"
	"time"
)

// TaskFunc runs a task. results holds the outputs of completed tasks keyed
// by task id; it must not be modified.
type TaskFunc func(ctx context.Context, results Results) (any, error)

// Results is the shared context of completed task outputs.
type Results map[string]any

// Task is a node in the workflow. A task runs once every id in
// Dependencies has completed, and is retried up to Retries times.
type Task struct {
	ID           string
	Name         string
	Run          TaskFunc
	Dependencies []string
	Retries      int
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Event types.
const (
	EventTaskStart   = "task_start"
	EventTaskEnd     = "task_end"
	EventTaskRetry   = "task_retry"
	EventTaskFailed  = "task_failed"
	EventTaskSkipped = "task_skipped"
)

// Event represents a single execution event for observability/streaming.
type Event struct {
	Type      string    `json:"type"`
	Workflow  string    `json:"workflow"`
	Task      string    `json:"task"`
	Attempt   int       `json:"attempt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DefaultMaxIterations bounds the scheduling loop.
const DefaultMaxIterations = 100

// Option configures workflow runs. Options given to New are defaults for
// every Run; options given to Run override them.
type Option func(*runConfig)

type runConfig struct {
	events        chan<- Event
	parallelism   int
	maxIterations int
}

// WithEvents streams events to the provided channel during Run. Sends
// never block; events are dropped when the channel is full.
func WithEvents(events chan<- Event) Option { return func(rc *runConfig) { rc.events = events } }

// WithParallelism runs up to n ready tasks at once. n <= 1 is sequential.
func WithParallelism(n int) Option { return func(rc *runConfig) { rc.parallelism = n } }

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option { return func(rc *runConfig) { rc.maxIterations = n } }

// Workflow is a named set of tasks. It holds no run state, so one
// Workflow can be run any number of times, including concurrently.
type Workflow struct {
	name     string
	tasks    []Task
	index    map[string]int
	defaults []Option
}

// New creates an empty workflow.
func New(name string, opts ...Option) *Workflow {
	return &Workflow{name: name, index: map[string]int{}, defaults: opts}
}

func (w *Workflow) Name() string { return w.name }

// Tasks returns the tasks in insertion order.
func (w *Workflow) Tasks() []Task { return append([]Task(nil), w.tasks...) }

// AddTask appends t. Ids must be unique and non-empty. Dependencies are
// checked by Validate, so tasks may be added in any order.
func (w *Workflow) AddTask(t Task) error {
	if t.ID == "" {
		return invalidf("task id is required")
	}
	if _, exists := w.index[t.ID]; exists {
		return invalidf("duplicate task id: %q", t.ID)
	}
	if t.Run == nil {
		return invalidf("task %q has no function", t.ID)
	}
	if t.Retries < 0 {
		return invalidf("task %q has negative retries", t.ID)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	t.Dependencies = append([]string(nil), t.Dependencies...)
	w.index[t.ID] = len(w.tasks)
	w.tasks = append(w.tasks, t)
	return nil
}

// MustAddTask is AddTask for static definitions.
func (w *Workflow) MustAddTask(t Task) *Workflow {
	if err := w.AddTask(t); err != nil {
		panic(err)
	}
	return w
}

// graph returns outgoing edges (dependency -> dependent) by insertion
// index, sorted ascending, and in-degrees.
func (w *Workflow) graph() (outgoing [][]int, indeg []int, err error) {
	outgoing = make([][]int, len(w.tasks))
	indeg = make([]int, len(w.tasks))
	for i, t := range w.tasks {
		seen := map[string]struct{}{}
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return nil, nil, invalidf("task %q depends on itself", t.ID)
			}
			j, ok := w.index[dep]
			if !ok {
				return nil, nil, invalidf("task %q depends on unknown task %q", t.ID, dep)
			}
			if _, dup := seen[dep]; dup {
				return nil, nil, invalidf("task %q lists dependency %q twice", t.ID, dep)
			}
			seen[dep] = struct{}{}
			outgoing[j] = append(outgoing[j], i)
			indeg[i]++
		}
	}
	// Edges are appended in ascending dependent order already.
	return outgoing, indeg, nil
}

// Validate reports unknown or self dependencies as ErrInvalidGraph and
// cycles as ErrCycleFound, wrapped in a *GraphError.
func (w *Workflow) Validate() error {
	_, err := w.TopologicalOrder()
	return err
}

// TopologicalOrder returns task ids in dependency order. Among tasks that
// are ready at the same time, insertion order wins.
func (w *Workflow) TopologicalOrder() ([]string, error) {
	outgoing, indeg, err := w.graph()
	if err != nil {
		return nil, err
	}

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]string, 0, len(w.tasks))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, w.tasks[n].ID)
		for _, m := range outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	if len(order) != len(w.tasks) {
		return nil, cycleError(w.findCycle(outgoing))
	}
	return order, nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// findCycle returns one cycle as ids in edge order, first id repeated at
// the end. The DFS visits tasks and edges in insertion order, so the
// witness is stable.
func (w *Workflow) findCycle(outgoing [][]int) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(w.tasks))
	parent := make([]int, len(w.tasks))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for i := range w.tasks {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = w.tasks[cycle[len(cycle)-1-i]].ID
	}
	return out
}

var errNilWorkflow = errors.New("nil workflow")
