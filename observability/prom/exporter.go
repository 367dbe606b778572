// Package prom exports observability.Metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/KamdynS/agentlab/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "agentlab"

// Exporter implements observability.Metrics on its own registry, so
// several exporters can coexist in tests.
type Exporter struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	errors       *prometheus.CounterVec
	activeAgents prometheus.Gauge
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	negotiations *prometheus.CounterVec
	rounds       prometheus.Histogram
	retrievals   prometheus.Histogram
	retrieved    prometheus.Counter
}

// New creates an exporter. An empty namespace defaults to "agentlab".
func New(namespace string) *Exporter {
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Exporter{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by route or model",
		}, []string{"kind", "name", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "name"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Model tokens by direction and model",
		}, []string{"direction", "model"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by type",
		}, []string{"error_type"}),
		activeAgents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_agents",
			Help:      "Agents currently running",
		}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tasks_total",
			Help:      "Workflow tasks by terminal status",
		}, []string{"workflow", "status"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_task_duration_seconds",
			Help:      "Workflow task duration including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
		negotiations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Negotiations by outcome",
		}, []string{"status"}),
		rounds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "negotiation_rounds",
			Help:      "Rounds per negotiation",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		retrievals: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_retrieval_duration_seconds",
			Help:      "RAG retrieval latency",
			Buckets:   prometheus.DefBuckets,
		}),
		retrieved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_documents_retrieved_total",
			Help:      "Documents returned by RAG retrieval",
		}),
	}
}

// Handler serves the exporter's registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// kindName maps the label conventions used by callers: HTTP requests carry
// route/method/status_code, model calls carry model/provider.
func kindName(labels map[string]string) (kind, name, status string) {
	if r, ok := labels["route"]; ok {
		return "http", labels["method"] + " " + r, labels["status_code"]
	}
	if m, ok := labels["model"]; ok {
		return "llm", m, labels["status"]
	}
	if t, ok := labels["tool"]; ok {
		return "tool", t, labels["status"]
	}
	return "other", labels["name"], labels["status"]
}

func (e *Exporter) IncrementRequests(labels map[string]string) {
	kind, name, status := kindName(labels)
	e.requests.WithLabelValues(kind, name, status).Inc()
}

func (e *Exporter) RecordLatency(d time.Duration, labels map[string]string) {
	kind, name, _ := kindName(labels)
	e.latency.WithLabelValues(kind, name).Observe(d.Seconds())
}

func (e *Exporter) IncrementTokensUsed(tokens int, labels map[string]string) {
	e.tokens.WithLabelValues(labels["direction"], labels["model"]).Add(float64(tokens))
}

func (e *Exporter) RecordError(errorType string, _ map[string]string) {
	e.errors.WithLabelValues(errorType).Inc()
}

func (e *Exporter) SetActiveAgents(count int) { e.activeAgents.Set(float64(count)) }

func (e *Exporter) RecordTask(workflow, status string, d time.Duration) {
	e.tasks.WithLabelValues(workflow, status).Inc()
	e.taskDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

func (e *Exporter) RecordNegotiation(status string, rounds int) {
	e.negotiations.WithLabelValues(status).Inc()
	e.rounds.Observe(float64(rounds))
}

func (e *Exporter) RecordRetrieval(d time.Duration, docs int) {
	e.retrievals.Observe(d.Seconds())
	e.retrieved.Add(float64(docs))
}

var _ observability.Metrics = (*Exporter)(nil)
