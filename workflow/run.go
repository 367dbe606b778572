package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Report statuses.
const (
	ReportCompleted = "completed"
	ReportPartial   = "partial"
	ReportInvalid   = "invalid"
)

// TaskReport is the outcome of one task.
type TaskReport struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Attempts int           `json:"attempts"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// LogEntry records a terminal task transition.
type LogEntry struct {
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Report summarizes a run. Status is completed only when no task failed
// or was skipped.
type Report struct {
	Workflow   string        `json:"workflow"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Total      int           `json:"total_tasks"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"total_time"`
	Tasks      []TaskReport  `json:"tasks"`
	Log        []LogEntry    `json:"log"`
}

// Task returns the report of task id.
func (r *Report) Task(id string) (TaskReport, bool) {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskReport{}, false
}

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the running task.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 0
}

// run holds the mutable state of one Run.
type run struct {
	w       *Workflow
	cfg     runConfig
	mu      sync.Mutex
	state   []TaskReport
	results Results
	log     []LogEntry
}

// Run executes the workflow. An invalid graph returns a report with status
// invalid and the validation error. If ctx is cancelled, unfinished tasks
// are skipped and ctx.Err() is returned with the report.
func (w *Workflow) Run(ctx context.Context, opts ...Option) (*Report, error) {
	if w == nil {
		return nil, errNilWorkflow
	}
	cfg := runConfig{parallelism: 1, maxIterations: DefaultMaxIterations}
	for _, o := range w.defaults {
		o(&cfg)
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxIterations <= 0 {
		cfg.maxIterations = DefaultMaxIterations
	}

	span, ctx := observability.StartSpan(ctx, "workflow.run")
	span.SetAttribute(observability.AttrWorkflow, w.name)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	r := &run{w: w, cfg: cfg, results: Results{}}
	r.state = make([]TaskReport, len(w.tasks))
	for i, t := range w.tasks {
		r.state[i] = TaskReport{ID: t.ID, Name: t.Name, Status: StatusPending}
	}

	if err = w.Validate(); err != nil {
		log.Error().Err(err).Str("workflow", w.name).Msg("workflow validation failed")
		rep := r.report(time.Since(start), 0)
		rep.Status = ReportInvalid
		rep.Error = err.Error()
		return rep, err
	}

	log.Info().Str("workflow", w.name).Int("tasks", len(w.tasks)).Int("parallelism", cfg.parallelism).Msg("workflow started")
	iterations := 0
	for {
		if err = ctx.Err(); err != nil {
			r.skipPending("cancelled")
			break
		}
		if iterations >= cfg.maxIterations {
			log.Warn().Str("workflow", w.name).Int("iterations", iterations).Msg("iteration limit reached")
			r.skipPending("iteration limit reached")
			break
		}
		ready := r.ready()
		if len(ready) == 0 {
			r.skipPending("dependencies not satisfied")
			break
		}
		iterations++
		log.Debug().Str("workflow", w.name).Int("iteration", iterations).Int("ready", len(ready)).Msg("executing ready tasks")
		r.execute(ctx, ready)
	}

	rep := r.report(time.Since(start), iterations)
	log.Info().
		Str("workflow", w.name).
		Str("status", rep.Status).
		Int("completed", rep.Completed).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Dur("duration", rep.Duration).
		Msg("workflow finished")
	return rep, err
}

// ready returns pending tasks whose dependencies have all completed, in
// insertion order.
func (r *run) ready() []int {
	var out []int
	for i, t := range r.w.tasks {
		if r.state[i].Status != StatusPending {
			continue
		}
		ok := true
		for _, dep := range t.Dependencies {
			if r.state[r.w.index[dep]].Status != StatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func (r *run) execute(ctx context.Context, ready []int) {
	snapshot := make(Results, len(r.results))
	for k, v := range r.results {
		snapshot[k] = v
	}

	if r.cfg.parallelism <= 1 || len(ready) == 1 {
		for _, i := range ready {
			r.runTask(ctx, i, snapshot)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(r.cfg.parallelism)
	for _, i := range ready {
		g.Go(func() error {
			r.runTask(ctx, i, snapshot)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) runTask(ctx context.Context, i int, results Results) {
	t := r.w.tasks[i]

	r.mu.Lock()
	r.state[i].Status = StatusRunning
	r.state[i].Attempts++
	attempt := r.state[i].Attempts
	r.mu.Unlock()

	span, tctx := observability.StartSpan(ctx, "workflow.task")
	span.SetAttribute(observability.AttrWorkflow, r.w.name)
	span.SetAttribute(observability.AttrTaskID, t.ID)
	span.SetAttribute(observability.AttrTaskAttempt, attempt)

	r.emit(Event{Type: EventTaskStart, Task: t.ID, Attempt: attempt})
	start := time.Now()
	out, err := call(context.WithValue(tctx, attemptKey{}, attempt), t, results)
	elapsed := time.Since(start)
	observability.EndSpan(span, err)

	r.mu.Lock()
	st := &r.state[i]
	st.Duration += elapsed
	if err == nil {
		st.Status = StatusCompleted
		st.Result = out
		st.Error = ""
		r.results[t.ID] = out
		r.logLocked(t, StatusCompleted, "")
		r.mu.Unlock()

		log.Debug().Str("workflow", r.w.name).Str("task", t.ID).Dur("duration", elapsed).Msg("task completed")
		observability.MetricsImpl.RecordTask(r.w.name, string(StatusCompleted), st.Duration)
		r.emit(Event{Type: EventTaskEnd, Task: t.ID, Attempt: attempt, Output: out})
		return
	}

	st.Error = err.Error()
	if attempt <= t.Retries {
		st.Status = StatusPending
		r.mu.Unlock()
		log.Warn().Err(err).Str("workflow", r.w.name).Str("task", t.ID).Int("attempt", attempt).Int("retries", t.Retries).Msg("task failed, retrying")
		r.emit(Event{Type: EventTaskRetry, Task: t.ID, Attempt: attempt, Error: err.Error()})
		return
	}
	st.Status = StatusFailed
	r.logLocked(t, StatusFailed, err.Error())
	d := st.Duration
	r.mu.Unlock()

	log.Error().Err(err).Str("workflow", r.w.name).Str("task", t.ID).Msg("task failed")
	observability.MetricsImpl.RecordTask(r.w.name, string(StatusFailed), d)
	r.emit(Event{Type: EventTaskFailed, Task: t.ID, Attempt: attempt, Error: err.Error()})
}

// call runs the task function, turning a panic into an error.
func call(ctx context.Context, t Task, results Results) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", t.ID, p)
		}
	}()
	return t.Run(ctx, results)
}

func (r *run) skipPending(reason string) {
	r.mu.Lock()
	var skipped []Task
	for i, t := range r.w.tasks {
		if r.state[i].Status == StatusPending {
			r.state[i].Status = StatusSkipped
			if r.state[i].Error == "" {
				r.state[i].Error = reason
			}
			r.logLocked(t, StatusSkipped, reason)
			skipped = append(skipped, t)
		}
	}
	r.mu.Unlock()

	for _, t := range skipped {
		observability.MetricsImpl.RecordTask(r.w.name, string(StatusSkipped), 0)
		r.emit(Event{Type: EventTaskSkipped, Task: t.ID, Error: reason})
	}
	if len(skipped) > 0 {
		log.Warn().Str("workflow", r.w.name).Int("skipped", len(skipped)).Str("reason", reason).Msg("skipped pending tasks")
	}
}

func (r *run) logLocked(t Task, s Status, errMsg string) {
	r.log = append(r.log, LogEntry{TaskID: t.ID, TaskName: t.Name, Status: s, Error: errMsg, Timestamp: time.Now()})
}

func (r *run) emit(e Event) {
	if r.cfg.events == nil {
		return
	}
	e.Workflow = r.w.name
	e.Timestamp = time.Now()
	select {
	case r.cfg.events <- e:
	default:
	}
}

func (r *run) report(d time.Duration, iterations int) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := &Report{
		Workflow:   r.w.name,
		Total:      len(r.state),
		Iterations: iterations,
		Duration:   d,
		Tasks:      append([]TaskReport(nil), r.state...),
		Log:        append([]LogEntry(nil), r.log...),
	}
	for _, t := range r.state {
		switch t.Status {
		case StatusCompleted:
			rep.Completed++
		case StatusFailed:
			rep.Failed++
		case StatusSkipped:
			rep.Skipped++
		}
	}
	rep.Status = ReportCompleted
	if rep.Failed > 0 || rep.Skipped > 0 {
		rep.Status = ReportPartial
	}
	return rep
}
