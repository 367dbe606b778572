package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/KamdynS/agentlab/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyTool struct {
	name, desc string
	out        string
	err        error
}

func (d dummyTool) Name() string           { return d.name }
func (d dummyTool) Description() string    { return d.desc }
func (d dummyTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (d dummyTool) Execute(ctx context.Context, input string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.out + ":" + input, nil
}

func TestRegistryRegisterGetListExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(dummyTool{name: "b", desc: "B", out: "OB"}))
	require.NoError(t, r.Register(dummyTool{name: "a", desc: "A", out: "OA"}))
	assert.Error(t, r.Register(dummyTool{name: "a"}))

	_, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.List())

	out, err := r.Execute(context.Background(), "a", "in")
	require.NoError(t, err)
	assert.Equal(t, "OA:in", out)
}

func TestRegistryExecuteErrors(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetMetrics(counters)
	t.Cleanup(func() { observability.SetMetrics(observability.NoOpMetrics{}) })

	r := NewRegistry()
	_, err := r.Execute(context.Background(), "none", "x")
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, r.Register(dummyTool{name: "e", err: errors.New("boom")}))
	_, err = r.Execute(context.Background(), "e", "x")
	assert.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, counters.Errors["tool_error"])
}

func TestRegistryTracesExecution(t *testing.T) {
	rec := observability.NewRecorder()
	observability.SetTracer(rec)
	t.Cleanup(func() { observability.SetTracer(observability.NoOpTracer{}) })

	r := NewRegistry()
	require.NoError(t, r.Register(&CalculatorTool{}))
	_, err := r.Execute(context.Background(), "calculator", "1 + 1")
	require.NoError(t, err)

	spans := rec.Named("tool.execute")
	require.Len(t, spans, 1)
	assert.Equal(t, "calculator", spans[0].Attributes[observability.AttrToolName])
}

type schemalessTool struct{ dummyTool }

func (schemalessTool) Schema() map[string]any { return nil }

type arrayTool struct{ dummyTool }

func (arrayTool) Schema() map[string]any { return map[string]any{"type": "array"} }

func TestRegistryRejectsInvalidTools(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(nil), ErrInvalidTool)
	assert.ErrorIs(t, r.Register(dummyTool{name: "has space"}), ErrInvalidTool)
	assert.ErrorIs(t, r.Register(dummyTool{name: ""}), ErrInvalidTool)
	assert.ErrorIs(t, r.Register(arrayTool{dummyTool{name: "arr"}}), ErrInvalidTool)
	require.NoError(t, r.Register(dummyTool{name: "ok"}))
	assert.ErrorIs(t, r.Register(dummyTool{name: "ok"}), ErrDuplicateTool)

	_, err := r.Execute(context.Background(), "ghost", "")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryDefinitionsAndUsage(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(schemalessTool{dummyTool{name: "plain", desc: "no schema", out: "P"}}))
	require.NoError(t, r.Register(dummyTool{name: "flaky", err: errors.New("down")}))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "flaky", defs[0].Function.Name)
	assert.Equal(t, "plain", defs[1].Function.Name)
	assert.Equal(t, "no schema", defs[1].Function.Description)
	assert.Equal(t, []string{"input"}, defs[1].Function.Parameters["required"])

	for i := 0; i < 3; i++ {
		_, _ = r.Execute(context.Background(), "plain", "x")
	}
	_, _ = r.Execute(context.Background(), "flaky", "x")

	usage := r.Usage()
	require.Len(t, usage, 2)
	assert.Equal(t, Usage{Name: "flaky", Calls: 1, Errors: 1, TotalLatency: usage[0].TotalLatency, LastError: "down"}, usage[0])
	assert.Equal(t, 3, usage[1].Calls)
	assert.Zero(t, usage[1].Errors)
	assert.Zero(t, Usage{}.AverageLatency())
}
