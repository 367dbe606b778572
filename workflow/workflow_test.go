package workflow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KamdynS/agentlab/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(v any) TaskFunc {
	return func(context.Context, Results) (any, error) { return v, nil }
}

func TestAddTaskRejectsBadTasks(t *testing.T) {
	w := New("w")
	require.NoError(t, w.AddTask(Task{ID: "a", Run: value(1)}))

	for _, bad := range []Task{
		{Run: value(1)},
		{ID: "a", Run: value(1)},
		{ID: "b"},
		{ID: "c", Run: value(1), Retries: -1},
	} {
		err := w.AddTask(bad)
		assert.ErrorIs(t, err, ErrInvalidGraph, "%+v", bad)
	}
	assert.Equal(t, "a", w.Tasks()[0].Name)
}

func TestValidate(t *testing.T) {
	unknown := New("w").MustAddTask(Task{ID: "a", Run: value(1), Dependencies: []string{"ghost"}})
	err := unknown.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.ErrorContains(t, err, `unknown task "ghost"`)

	self := New("w").MustAddTask(Task{ID: "a", Run: value(1), Dependencies: []string{"a"}})
	assert.ErrorIs(t, self.Validate(), ErrInvalidGraph)

	cyclic := New("w").
		MustAddTask(Task{ID: "a", Run: value(1), Dependencies: []string{"c"}}).
		MustAddTask(Task{ID: "b", Run: value(1), Dependencies: []string{"a"}}).
		MustAddTask(Task{ID: "c", Run: value(1), Dependencies: []string{"b"}}).
		MustAddTask(Task{ID: "d", Run: value(1)})
	err = cyclic.Validate()
	require.ErrorIs(t, err, ErrCycleFound)
	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "cycle: a -> b -> c -> a", ge.Msg)
}

func TestTopologicalOrder(t *testing.T) {
	w := New("w").
		MustAddTask(Task{ID: "report", Run: value(1), Dependencies: []string{"left", "right"}}).
		MustAddTask(Task{ID: "right", Run: value(1), Dependencies: []string{"root"}}).
		MustAddTask(Task{ID: "left", Run: value(1), Dependencies: []string{"root"}}).
		MustAddTask(Task{ID: "root", Run: value(1)})
	order, err := w.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "right", "left", "report"}, order)
}

func TestRunSharesResults(t *testing.T) {
	w := New("sum").
		MustAddTask(Task{ID: "a", Run: value(2)}).
		MustAddTask(Task{ID: "b", Run: value(3)}).
		MustAddTask(Task{ID: "sum", Dependencies: []string{"a", "b"}, Run: func(_ context.Context, r Results) (any, error) {
			return r["a"].(int) + r["b"].(int), nil
		}})

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReportCompleted, rep.Status)
	assert.Equal(t, 3, rep.Completed)
	assert.Equal(t, 2, rep.Iterations)
	sum, ok := rep.Task("sum")
	require.True(t, ok)
	assert.Equal(t, 5, sum.Result)
	assert.Len(t, rep.Log, 3)
}

func TestRunRetries(t *testing.T) {
	var calls int32
	w := New("retry").MustAddTask(Task{ID: "flaky", Retries: 2, Run: func(ctx context.Context, _ Results) (any, error) {
		atomic.AddInt32(&calls, 1)
		if Attempt(ctx) < 3 {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	}})
	events := make(chan Event, 16)
	rep, err := w.Run(context.Background(), WithEvents(events))
	require.NoError(t, err)
	close(events)

	tr, _ := rep.Task("flaky")
	assert.Equal(t, StatusCompleted, tr.Status)
	assert.Equal(t, 3, tr.Attempts)
	assert.Empty(t, tr.Error)
	assert.EqualValues(t, 3, calls)

	var types []string
	for e := range events {
		types = append(types, e.Type)
		assert.Equal(t, "retry", e.Workflow)
	}
	assert.Equal(t, []string{
		EventTaskStart, EventTaskRetry,
		EventTaskStart, EventTaskRetry,
		EventTaskStart, EventTaskEnd,
	}, types)
}

func TestRunFailureSkipsDependents(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetMetrics(counters)
	t.Cleanup(func() { observability.SetMetrics(observability.NoOpMetrics{}) })

	w := New("fail").
		MustAddTask(Task{ID: "bad", Retries: 1, Run: func(context.Context, Results) (any, error) { return nil, errors.New("boom") }}).
		MustAddTask(Task{ID: "after", Dependencies: []string{"bad"}, Run: value(1)}).
		MustAddTask(Task{ID: "other", Run: value(1)})

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReportPartial, rep.Status)
	assert.Equal(t, 1, rep.Completed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)

	bad, _ := rep.Task("bad")
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Equal(t, 2, bad.Attempts)
	assert.Equal(t, "boom", bad.Error)
	after, _ := rep.Task("after")
	assert.Equal(t, StatusSkipped, after.Status)

	assert.EqualValues(t, 1, counters.Task("fail", "failed"))
	assert.EqualValues(t, 1, counters.Task("fail", "skipped"))
	assert.EqualValues(t, 1, counters.Task("fail", "completed"))
}

func TestRunRecoversPanics(t *testing.T) {
	w := New("panic").MustAddTask(Task{ID: "p", Run: func(context.Context, Results) (any, error) { panic("kaboom") }})
	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	p, _ := rep.Task("p")
	assert.Equal(t, StatusFailed, p.Status)
	assert.Contains(t, p.Error, "kaboom")
}

func TestRunInvalid(t *testing.T) {
	w := New("bad").MustAddTask(Task{ID: "a", Run: value(1), Dependencies: []string{"a"}})
	rep, err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidGraph)
	require.NotNil(t, rep)
	assert.Equal(t, ReportInvalid, rep.Status)
	assert.NotEmpty(t, rep.Error)
}

func TestRunIterationCap(t *testing.T) {
	w := New("cap").
		MustAddTask(Task{ID: "loop", Retries: 10, Run: func(context.Context, Results) (any, error) { return nil, errors.New("again") }}).
		MustAddTask(Task{ID: "next", Dependencies: []string{"loop"}, Run: value(1)})
	rep, err := w.Run(context.Background(), WithMaxIterations(3))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Iterations)
	loop, _ := rep.Task("loop")
	assert.Equal(t, StatusSkipped, loop.Status)
	assert.Equal(t, 3, loop.Attempts)
	assert.Equal(t, 2, rep.Skipped)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New("cancel").
		MustAddTask(Task{ID: "first", Run: func(context.Context, Results) (any, error) {
			cancel()
			return 1, nil
		}}).
		MustAddTask(Task{ID: "second", Dependencies: []string{"first"}, Run: value(2)})

	rep, err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	first, _ := rep.Task("first")
	second, _ := rep.Task("second")
	assert.Equal(t, StatusCompleted, first.Status)
	assert.Equal(t, StatusSkipped, second.Status)
}

func TestRunParallel(t *testing.T) {
	var running, peak int32
	work := func(context.Context, Results) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	}
	w := New("par")
	for _, id := range []string{"a", "b", "c", "d"} {
		w.MustAddTask(Task{ID: id, Run: work})
	}

	rep, err := w.Run(context.Background(), WithParallelism(2))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Completed)
	assert.EqualValues(t, 2, atomic.LoadInt32(&peak))
}

func TestEventsNeverBlock(t *testing.T) {
	events := make(chan Event)
	w := New("w").MustAddTask(Task{ID: "a", Run: value(1)})
	rep, err := w.Run(context.Background(), WithEvents(events))
	require.NoError(t, err)
	assert.Equal(t, ReportCompleted, rep.Status)
}

func TestMermaidFlowchart(t *testing.T) {
	w := New("m").
		MustAddTask(Task{ID: "a", Name: `Say "hi"`, Run: value(1)}).
		MustAddTask(Task{ID: "b", Run: value(1), Dependencies: []string{"a"}, Retries: 2})

	want := "graph LR\n" +
		"n1[\"Say \\\"hi\\\"\"]\n" +
		"n2[\"b\"]\n" +
		"n1 -->|retries: 2| n2\n"
	assert.Equal(t, want, w.MermaidFlowchart(WithDirection("lr")))
	assert.True(t, strings.HasPrefix(w.MermaidFlowchart(WithDirection("sideways")), "graph TD\n"))

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	out := w.MermaidFlowchart(WithReport(rep))
	assert.Contains(t, out, "class n1,n2 completed\n")
}

func TestRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	require.NoError(t, Register("x", New("x")))
	assert.Error(t, Register("x", New("x")))
	assert.Error(t, Register("y", nil))
	_, ok := Get("x")
	assert.True(t, ok)

	RegisterBuiltins(0)
	RegisterBuiltins(0)
	assert.Equal(t, []string{CICDName, DataPipelineName, MLTrainingName, "x"}, List())
}

func TestRegistryCatalog(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	noop := func(context.Context, Results) (any, error) { return nil, nil }
	cyclic := New("loop").
		MustAddTask(Task{ID: "a", Dependencies: []string{"b"}, Run: noop}).
		MustAddTask(Task{ID: "b", Dependencies: []string{"a"}, Run: noop})
	require.NoError(t, Register("loop", cyclic, Described("broken on purpose")))
	RegisterBuiltins(0)

	err := Register(CICDName, New("dup"))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Error(t, Register("", New("anon")))

	entries := Catalog()
	require.Len(t, entries, 4)
	assert.Equal(t, CICDName, entries[0].Name)
	assert.Equal(t, SourceBuiltin, entries[0].Source)
	assert.Equal(t, 8, entries[0].Tasks)
	assert.Equal(t, "checkout", entries[0].Order[0])
	assert.NotEmpty(t, entries[0].Description)

	loop := entries[1]
	assert.Equal(t, "loop", loop.Name)
	assert.Equal(t, SourceUser, loop.Source)
	assert.Equal(t, "broken on purpose", loop.Description)
	assert.Empty(t, loop.Order)
	assert.Contains(t, loop.Error, "cycle")

	_, err = Lookup("ghost")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.EqualError(t, err, "workflow not found: ghost")
	wf, err := Lookup("loop")
	require.NoError(t, err)
	assert.Same(t, cyclic, wf)

	assert.True(t, Unregister("loop"))
	assert.False(t, Unregister("loop"))
	assert.Len(t, Catalog(), 3)
}
