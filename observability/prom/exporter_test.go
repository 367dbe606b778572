package prom

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterRecordsAndServes(t *testing.T) {
	e := New("")
	e.IncrementRequests(map[string]string{"route": "/chat", "method": "POST", "status_code": "200"})
	e.RecordLatency(3*time.Millisecond, map[string]string{"route": "/chat", "method": "POST"})
	e.IncrementTokensUsed(7, map[string]string{"direction": "input", "model": "gpt-4o"})
	e.RecordError("tool_error", nil)
	e.SetActiveAgents(2)
	e.RecordTask("ci-cd", "completed", time.Second)
	e.RecordTask("ci-cd", "completed", time.Second)
	e.RecordNegotiation("agreement", 3)
	e.RecordRetrieval(time.Millisecond, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.tasks.WithLabelValues("ci-cd", "completed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(e.tokens.WithLabelValues("input", "gpt-4o")))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.retrieved))

	rr := httptest.NewRecorder()
	e.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "agentlab_requests_total")
	assert.Contains(t, body, "agentlab_workflow_tasks_total")
	assert.Contains(t, body, "agentlab_active_agents 2")
}

func TestExportersAreIndependent(t *testing.T) {
	a, b := New("a"), New("a")
	a.RecordError("x", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.errors.WithLabelValues("x")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.errors.WithLabelValues("x")))
}
