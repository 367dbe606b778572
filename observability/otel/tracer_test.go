package otel

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/KamdynS/agentlab/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := NewStdoutProvider(&buf, "agentlab-test")
	require.NoError(t, err)

	tr := NewTracerFrom(tp, "test")
	span, ctx := tr.StartSpan(context.Background(), "workflow.task")
	span.SetAttribute(observability.AttrTaskID, "build")
	span.SetAttribute(observability.AttrTaskAttempt, 2)
	span.AddEvent("retry", map[string]any{"reason": "flaky"})
	assert.NotNil(t, tr.SpanFromContext(ctx))
	observability.EndSpan(span, errors.New("boom"))

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "workflow.task")
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "boom")
}
