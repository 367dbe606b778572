package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/KamdynS/agentlab/memory/inmemory"
	"github.com/KamdynS/agentlab/observability"
	"github.com/KamdynS/agentlab/observability/prom"
	"github.com/KamdynS/agentlab/rag"
	"github.com/KamdynS/agentlab/tools"
	"github.com/KamdynS/agentlab/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, client *fake.Client, opts ...Option) *httptest.Server {
	t.Helper()
	agent := core.NewChatAgent(core.ChatConfig{Model: client})
	srv := NewServer(agent, Config{EnableCORS: true}, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// sseEvents returns the event names of an SSE body, in order.
func sseEvents(t *testing.T, body io.Reader) (names []string, data []string) {
	t.Helper()
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, v)
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = append(data, v)
		}
	}
	return names, data
}

func TestNewServerDefaults(t *testing.T) {
	srv := NewServer(core.NewChatAgent(core.ChatConfig{Model: fake.New()}), Config{})
	assert.Equal(t, 8080, srv.config.Port)
	assert.Equal(t, 10*time.Second, srv.config.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.config.WriteTimeout)
	assert.Equal(t, ":8080", srv.server.Addr)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, fake.New())
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestChat(t *testing.T) {
	client := fake.New("Hi there")
	ts := newTestServer(t, client)

	resp := post(t, ts.URL+"/chat", `{"message":"hello","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[ChatResponse](t, resp)
	assert.Equal(t, "Hi there", body.Message)
	assert.Equal(t, "s1", body.SessionID)
	assert.Equal(t, "hello", client.LastPrompt())
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t, fake.New())

	resp := post(t, ts.URL+"/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", decodeBody[ChatResponse](t, resp).Error)

	resp = post(t, ts.URL+"/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Message is required", decodeBody[ChatResponse](t, resp).Error)

	resp, err := http.Get(ts.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatAgentError(t *testing.T) {
	ts := newTestServer(t, fake.New().Fail(errors.New("model down")))
	resp := post(t, ts.URL+"/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decodeBody[ChatResponse](t, resp).Error)
}

func TestChatStream(t *testing.T) {
	ts := newTestServer(t, fake.New("one two three"))
	resp := post(t, ts.URL+"/chat/stream", `{"message":"go","session_id":"s"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	names, data := sseEvents(t, resp.Body)
	require.NotEmpty(t, names)
	assert.Equal(t, "done", names[len(names)-1])
	assert.Equal(t, 5, len(names), "three partials, the final message, done")

	var final ChatResponse
	require.NoError(t, json.Unmarshal([]byte(data[len(data)-2]), &final))
	assert.Equal(t, "one two three", final.Message)
	assert.Equal(t, "s", final.SessionID)
}

func TestChatStreamError(t *testing.T) {
	ts := newTestServer(t, fake.New().Fail(errors.New("boom")))
	resp := post(t, ts.URL+"/chat/stream", `{"message":"go"}`)
	names, _ := sseEvents(t, resp.Body)
	assert.Equal(t, []string{"error", "done"}, names)
}

func TestRAGAsk(t *testing.T) {
	store := inmemory.NewVectorStore()
	emb := rag.NewHashEmbedder(64)
	_, err := rag.IndexDocuments(context.Background(), store, emb, map[string]string{
		"go.txt": "Go has goroutines and channels for concurrency.",
		"db.txt": "PostgreSQL is a relational database.",
	}, rag.DefaultChunkOptions())
	require.NoError(t, err)
	client := fake.WithResponder(fake.Offline())
	pipeline := rag.NewPipeline(store, emb, client, inmemory.NewConversationStore())

	ts := newTestServer(t, client, WithRAG(pipeline))
	resp := post(t, ts.URL+"/rag/ask", `{"question":"How does Go do concurrency?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ans := decodeBody[rag.Answer](t, resp)
	assert.NotEmpty(t, ans.Text)
	assert.NotEmpty(t, ans.Sources)

	resp = post(t, ts.URL+"/rag/ask", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRAGAskWithoutPipeline(t *testing.T) {
	ts := newTestServer(t, fake.New())
	resp := post(t, ts.URL+"/rag/ask", `{"question":"anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func registerWorkflows(t *testing.T) {
	t.Helper()
	workflow.Reset()
	t.Cleanup(workflow.Reset)

	ok := workflow.New("ok").
		MustAddTask(workflow.Task{ID: "a", Run: func(context.Context, workflow.Results) (any, error) { return 1, nil }}).
		MustAddTask(workflow.Task{ID: "b", Dependencies: []string{"a"}, Run: func(_ context.Context, r workflow.Results) (any, error) {
			return r["a"].(int) + 1, nil
		}})
	require.NoError(t, workflow.Register("ok", ok))

	cyclic := workflow.New("cyclic").
		MustAddTask(workflow.Task{ID: "a", Dependencies: []string{"b"}, Run: func(context.Context, workflow.Results) (any, error) { return nil, nil }}).
		MustAddTask(workflow.Task{ID: "b", Dependencies: []string{"a"}, Run: func(context.Context, workflow.Results) (any, error) { return nil, nil }})
	require.NoError(t, workflow.Register("cyclic", cyclic))
}

func TestListWorkflows(t *testing.T) {
	registerWorkflows(t)
	ts := newTestServer(t, fake.New())

	resp, err := http.Get(ts.URL + "/workflows")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Workflows []struct {
			Name   string   `json:"name"`
			Tasks  int      `json:"tasks"`
			Source string   `json:"source"`
			Order  []string `json:"order"`
			Error  string   `json:"error"`
		} `json:"workflows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Workflows, 2)
	assert.Equal(t, "cyclic", body.Workflows[0].Name)
	assert.NotEmpty(t, body.Workflows[0].Error)
	assert.Equal(t, "ok", body.Workflows[1].Name)
	assert.Equal(t, 2, body.Workflows[1].Tasks)
	assert.Equal(t, workflow.SourceUser, body.Workflows[1].Source)
	assert.Equal(t, []string{"a", "b"}, body.Workflows[1].Order)
}

func TestRunWorkflow(t *testing.T) {
	registerWorkflows(t)
	ts := newTestServer(t, fake.New())

	resp := post(t, ts.URL+"/workflows/ok/run", `{"parallelism":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decodeBody[workflow.Report](t, resp)
	assert.Equal(t, workflow.ReportCompleted, rep.Status)
	assert.Equal(t, 2, rep.Completed)

	resp = post(t, ts.URL+"/workflows/ok/run", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts.URL+"/workflows/ghost/run", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, ts.URL+"/workflows/cyclic/run", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, workflow.ReportInvalid, decodeBody[workflow.Report](t, resp).Status)
}

func TestRunWorkflowStream(t *testing.T) {
	registerWorkflows(t)
	ts := newTestServer(t, fake.New())

	resp := post(t, ts.URL+"/workflows/ok/run", "", "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	names, data := sseEvents(t, resp.Body)
	assert.Equal(t, []string{
		workflow.EventTaskStart, workflow.EventTaskEnd,
		workflow.EventTaskStart, workflow.EventTaskEnd,
		"report",
	}, names)

	var rep workflow.Report
	require.NoError(t, json.Unmarshal([]byte(data[len(data)-1]), &rep))
	assert.Equal(t, workflow.ReportCompleted, rep.Status)
}

func TestMermaid(t *testing.T) {
	registerWorkflows(t)
	ts := newTestServer(t, fake.New())

	resp, err := http.Get(ts.URL + "/debug/workflows/mermaid?name=ok&dir=LR")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "graph LR")
	assert.Contains(t, string(body), "n1 --> n2")

	resp2, err := http.Get(ts.URL + "/debug/workflows/mermaid?name=ghost")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestObservabilityMiddleware(t *testing.T) {
	rec := observability.NewRecorder()
	counters := observability.NewCounters()
	observability.SetTracer(rec)
	observability.SetMetrics(counters)
	t.Cleanup(func() {
		observability.SetTracer(observability.NoOpTracer{})
		observability.SetMetrics(observability.NoOpMetrics{})
	})

	ts := newTestServer(t, fake.New())
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
	spans := rec.Named("http.request")
	require.Len(t, spans, 1)
	assert.Equal(t, "req-42", spans[0].Attributes[observability.AttrRequestID])
	assert.Equal(t, http.StatusOK, spans[0].Attributes[observability.AttrHTTPStatus])
	assert.EqualValues(t, 1, counters.Requests)
}

func TestMetricsEndpoint(t *testing.T) {
	exp := prom.New("test")
	observability.SetMetrics(exp)
	t.Cleanup(func() { observability.SetMetrics(observability.NoOpMetrics{}) })

	ts := newTestServer(t, fake.New(), WithMetricsHandler(exp.Handler()))
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `test_requests_total{kind="http",name="GET /health",status="200"} 1`)
}

func TestToolsEndpoint(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.CalculatorTool{}))
	_, err := reg.Execute(context.Background(), "calculator", "2 * 3")
	require.NoError(t, err)
	_, err = reg.Execute(context.Background(), "calculator", "1 / 0")
	require.Error(t, err)

	ts := newTestServer(t, fake.New(), WithTools(reg))
	resp, err := http.Get(ts.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
		Usage []tools.Usage `json:"usage"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "calculator", body.Tools[0].Function.Name)
	require.Len(t, body.Usage, 1)
	assert.Equal(t, 2, body.Usage[0].Calls)
	assert.Equal(t, 1, body.Usage[0].Errors)

	plain := newTestServer(t, fake.New())
	resp, err = http.Get(plain.URL + "/tools")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
