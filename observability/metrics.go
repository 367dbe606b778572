package observability

import (
	"sync"
	"time"
)

// Metrics collects counters for model calls, HTTP requests, and the
// agent simulations. observability/prom provides the Prometheus backend.
type Metrics interface {
	IncrementRequests(labels map[string]string)
	RecordLatency(duration time.Duration, labels map[string]string)
	IncrementTokensUsed(tokens int, labels map[string]string)
	RecordError(errorType string, labels map[string]string)
	SetActiveAgents(count int)

	// RecordTask counts a workflow task reaching a terminal status.
	RecordTask(workflow, status string, duration time.Duration)
	// RecordNegotiation counts a finished negotiation by outcome.
	RecordNegotiation(status string, rounds int)
	// RecordRetrieval observes one RAG retrieval.
	RecordRetrieval(duration time.Duration, docs int)
}

type NoOpMetrics struct{}

func (NoOpMetrics) IncrementRequests(map[string]string)            {}
func (NoOpMetrics) RecordLatency(time.Duration, map[string]string) {}
func (NoOpMetrics) IncrementTokensUsed(int, map[string]string)     {}
func (NoOpMetrics) RecordError(string, map[string]string)          {}
func (NoOpMetrics) SetActiveAgents(int)                            {}
func (NoOpMetrics) RecordTask(string, string, time.Duration)       {}
func (NoOpMetrics) RecordNegotiation(string, int)                  {}
func (NoOpMetrics) RecordRetrieval(time.Duration, int)             {}

// Counters is an in-memory Metrics used in tests and by the CLI summary.
type Counters struct {
	mu           sync.Mutex
	Requests     int64
	TotalLatency time.Duration
	Tokens       int64
	Errors       map[string]int64
	ActiveAgents int
	Tasks        map[string]int64
	Negotiations map[string]int64
	Retrievals   int64
}

func NewCounters() *Counters {
	return &Counters{
		Errors:       map[string]int64{},
		Tasks:        map[string]int64{},
		Negotiations: map[string]int64{},
	}
}

func (m *Counters) IncrementRequests(map[string]string) {
	m.mu.Lock()
	m.Requests++
	m.mu.Unlock()
}

func (m *Counters) RecordLatency(d time.Duration, _ map[string]string) {
	m.mu.Lock()
	m.TotalLatency += d
	m.mu.Unlock()
}

func (m *Counters) IncrementTokensUsed(tokens int, _ map[string]string) {
	m.mu.Lock()
	m.Tokens += int64(tokens)
	m.mu.Unlock()
}

func (m *Counters) RecordError(errorType string, _ map[string]string) {
	m.mu.Lock()
	m.Errors[errorType]++
	m.mu.Unlock()
}

func (m *Counters) SetActiveAgents(n int) {
	m.mu.Lock()
	m.ActiveAgents = n
	m.mu.Unlock()
}

func (m *Counters) RecordTask(workflow, status string, _ time.Duration) {
	m.mu.Lock()
	m.Tasks[workflow+"/"+status]++
	m.mu.Unlock()
}

func (m *Counters) RecordNegotiation(status string, _ int) {
	m.mu.Lock()
	m.Negotiations[status]++
	m.mu.Unlock()
}

func (m *Counters) RecordRetrieval(time.Duration, int) {
	m.mu.Lock()
	m.Retrievals++
	m.mu.Unlock()
}

// Task returns the count for a workflow/status pair.
func (m *Counters) Task(workflow, status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tasks[workflow+"/"+status]
}

var (
	_ Metrics = NoOpMetrics{}
	_ Metrics = (*Counters)(nil)
)
