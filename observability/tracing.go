package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracer starts spans. Implementations: NoOpTracer, Recorder, and the
// OpenTelemetry adapter in observability/otel.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (Span, context.Context)
	SpanFromContext(ctx context.Context) Span
}

// Span is the subset of span behavior the agents use.
type Span interface {
	SetAttribute(key string, value any)
	SetStatus(code StatusCode, message string)
	AddEvent(name string, attributes map[string]any)
	End()
	Context() context.Context
}

type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOk
	StatusCodeError
)

// Attribute keys, loosely following the OTel HTTP and GenAI conventions.
const (
	AttrHTTPMethod   = "http.method"
	AttrHTTPRoute    = "http.route"
	AttrHTTPStatus   = "http.status_code"
	AttrRequestID    = "request.id"
	AttrProvider     = "genai.provider"
	AttrModel        = "genai.model"
	AttrFinishReason = "genai.finish_reason"
	AttrToolName     = "genai.tool.name"
	AttrTokensInput  = "genai.tokens.input"
	AttrTokensOutput = "genai.tokens.output"
	AttrWorkflow     = "workflow.name"
	AttrTaskID       = "workflow.task.id"
	AttrTaskAttempt  = "workflow.task.attempt"
	AttrAgent        = "agent.name"
)

// Global implementations, no-ops until the CLI or server installs real ones.
var (
	TracerImpl  Tracer  = NoOpTracer{}
	MetricsImpl Metrics = NoOpMetrics{}
)

func SetTracer(t Tracer)   { TracerImpl = t }
func SetMetrics(m Metrics) { MetricsImpl = m }

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string) (Span, context.Context) {
	return TracerImpl.StartSpan(ctx, name)
}

// EndSpan records err (if any) as the span status and ends it.
func EndSpan(span Span, err error) {
	if err != nil {
		span.SetStatus(StatusCodeError, err.Error())
	} else {
		span.SetStatus(StatusCodeOk, "")
	}
	span.End()
}

type NoOpTracer struct{}

func (NoOpTracer) StartSpan(ctx context.Context, _ string) (Span, context.Context) {
	return noOpSpan{ctx: ctx}, ctx
}
func (NoOpTracer) SpanFromContext(ctx context.Context) Span { return noOpSpan{ctx: ctx} }

type noOpSpan struct{ ctx context.Context }

func (noOpSpan) SetAttribute(string, any)        {}
func (noOpSpan) SetStatus(StatusCode, string)    {}
func (noOpSpan) AddEvent(string, map[string]any) {}
func (noOpSpan) End()                            {}
func (s noOpSpan) Context() context.Context      { return s.ctx }

// SpanData is a finished span captured by Recorder.
type SpanData struct {
	Name       string         `json:"name"`
	Parent     string         `json:"parent,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	Duration   time.Duration  `json:"duration"`
	Status     StatusCode     `json:"status"`
	Message    string         `json:"message,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
}

type SpanEvent struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Recorder is an in-memory tracer used by tests and the CLI's --trace
// summary. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	spans []SpanData
}

func NewRecorder() *Recorder { return &Recorder{} }

type spanKey struct{}

func (r *Recorder) StartSpan(ctx context.Context, name string) (Span, context.Context) {
	s := &recordedSpan{rec: r, data: SpanData{Name: name, StartTime: time.Now(), Attributes: map[string]any{}}}
	if parent, ok := ctx.Value(spanKey{}).(*recordedSpan); ok {
		s.data.Parent = parent.data.Name
	}
	s.ctx = context.WithValue(ctx, spanKey{}, s)
	return s, s.ctx
}

func (r *Recorder) SpanFromContext(ctx context.Context) Span {
	if s, ok := ctx.Value(spanKey{}).(*recordedSpan); ok {
		return s
	}
	return noOpSpan{ctx: ctx}
}

// Spans returns the finished spans in completion order.
func (r *Recorder) Spans() []SpanData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SpanData(nil), r.spans...)
}

// Named returns finished spans with the given name.
func (r *Recorder) Named(name string) []SpanData {
	var out []SpanData
	for _, s := range r.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type recordedSpan struct {
	rec   *Recorder
	ctx   context.Context
	mu    sync.Mutex
	data  SpanData
	ended bool
}

func (s *recordedSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.data.Attributes[key] = value
	}
}

func (s *recordedSpan) SetStatus(code StatusCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.data.Status, s.data.Message = code, message
	}
}

func (s *recordedSpan) AddEvent(name string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.data.Events = append(s.data.Events, SpanEvent{Name: name, Time: time.Now(), Attributes: attrs})
	}
}

func (s *recordedSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.data.Duration = time.Since(s.data.StartTime)
	data := s.data
	s.mu.Unlock()

	s.rec.mu.Lock()
	s.rec.spans = append(s.rec.spans, data)
	s.rec.mu.Unlock()
}

func (s *recordedSpan) Context() context.Context { return s.ctx }

var (
	_ Tracer = NoOpTracer{}
	_ Tracer = (*Recorder)(nil)
)

const headerRequestID = "X-Request-ID"

type requestIDKey struct{}

// GenerateRequestID returns a random UUID string.
func GenerateRequestID() string { return uuid.NewString() }

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// ExtractHTTPContext reads X-Request-ID, generating one when absent.
func ExtractHTTPContext(ctx context.Context, r *http.Request) context.Context {
	id := r.Header.Get(headerRequestID)
	if id == "" {
		id = GenerateRequestID()
	}
	return WithRequestID(ctx, id)
}

// InjectHTTPHeaders echoes the request id on the response.
func InjectHTTPHeaders(w http.ResponseWriter, ctx context.Context) {
	if id, ok := RequestIDFromContext(ctx); ok {
		w.Header().Set(headerRequestID, id)
	}
}
