// Package http exposes the chat agent, the RAG pipeline and the workflow
// registry over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/agent/core"
	"github.com/KamdynS/agentlab/rag"
	"github.com/KamdynS/agentlab/tools"
	"github.com/KamdynS/agentlab/workflow"
	"github.com/rs/zerolog/log"
)

// Server wraps an agent with HTTP endpoints
type Server struct {
	agent   core.Agent
	rag     *rag.Pipeline
	tools   *tools.DefaultRegistry
	metrics http.Handler
	config  Config
	handler http.Handler
	server  *http.Server
}

// Config holds HTTP server configuration
type Config struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
	// Parallelism is the default for workflow runs started over HTTP.
	Parallelism int `mapstructure:"parallelism"`
}

// Option adds optional capabilities to the server.
type Option func(*Server)

// WithRAG enables POST /rag/ask.
func WithRAG(p *rag.Pipeline) Option { return func(s *Server) { s.rag = p } }

// WithTools enables GET /tools, listing the declarations and usage of reg.
func WithTools(reg *tools.DefaultRegistry) Option { return func(s *Server) { s.tools = reg } }

// WithMetricsHandler serves h on /metrics, usually a Prometheus handler.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// NewServer creates a new HTTP server for an agent
func NewServer(agent core.Agent, config Config, opts ...Option) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 60 * time.Second
	}

	s := &Server{agent: agent, config: config}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	var h http.Handler = mux
	if config.EnableCORS {
		h = corsMiddleware(h)
	}
	s.handler = observe(h)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /chat", s.chatHandler)
	mux.HandleFunc("POST /chat/stream", s.streamHandler)
	mux.HandleFunc("POST /rag/ask", s.ragHandler)
	mux.HandleFunc("GET /workflows", s.listWorkflowsHandler)
	mux.HandleFunc("POST /workflows/{name}/run", s.runWorkflowHandler)
	mux.HandleFunc("GET /debug/workflows/mermaid", s.mermaidHandler)
	if s.tools != nil {
		mux.HandleFunc("GET /tools", s.toolsHandler)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
}

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// AskRequest is the body of POST /rag/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// RunRequest is the optional body of POST /workflows/{name}/run.
type RunRequest struct {
	Parallelism int `json:"parallelism,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, "Message is required", http.StatusBadRequest)
		return
	}

	resp, err := s.agent.Run(r.Context(), core.Message{Role: "user", Content: req.Message, Meta: req.Meta})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("agent run failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Message: resp.Content, SessionID: req.SessionID, Meta: resp.Meta})
}

// streamHandler sends each agent message as an SSE "message" event and
// finishes with a "done" event, or "error" when the run fails.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, "Message is required", http.StatusBadRequest)
		return
	}
	sse, ok := newSSE(w)
	if !ok {
		writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	output := make(chan core.Message)
	errc := make(chan error, 1)
	go func() {
		errc <- s.agent.RunStream(ctx, core.Message{Role: "user", Content: req.Message, Meta: req.Meta}, output)
	}()

	for {
		select {
		case m, ok := <-output:
			if !ok {
				if err := <-errc; err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("agent stream failed")
					sse.send("error", ChatResponse{SessionID: req.SessionID, Error: "stream failed"})
				}
				sse.send("done", struct{}{})
				return
			}
			sse.send("message", ChatResponse{Message: m.Content, SessionID: req.SessionID, Meta: m.Meta})
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) ragHandler(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeError(w, "RAG pipeline not configured", http.StatusServiceUnavailable)
		return
	}
	var req AskRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, "Question is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	ans, err := s.rag.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("rag ask failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) listWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workflows": workflow.Catalog()})
}

func (s *Server) toolsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.tools.Definitions(),
		"usage": s.tools.Usage(),
	})
}

// runWorkflowHandler returns the run report as JSON. With
// "Accept: text/event-stream" it streams task events first and sends the
// report as the final "report" event.
func (s *Server) runWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wf, err := workflow.Lookup(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	req := RunRequest{Parallelism: s.config.Parallelism}
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}
	var opts []workflow.Option
	if req.Parallelism > 1 {
		opts = append(opts, workflow.WithParallelism(req.Parallelism))
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamWorkflow(w, r, wf, opts)
		return
	}

	rep, err := wf.Run(r.Context(), opts...)
	switch {
	case errors.Is(err, workflow.ErrInvalidGraph), errors.Is(err, workflow.ErrCycleFound):
		writeJSON(w, http.StatusUnprocessableEntity, rep)
	case err != nil && rep == nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) streamWorkflow(w http.ResponseWriter, r *http.Request, wf *workflow.Workflow, opts []workflow.Option) {
	sse, ok := newSSE(w)
	if !ok {
		writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events := make(chan workflow.Event, 64)
	type result struct {
		rep *workflow.Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := wf.Run(r.Context(), append(opts, workflow.WithEvents(events))...)
		done <- result{rep, err}
	}()

	drain := func() {
		for {
			select {
			case e := <-events:
				sse.send(e.Type, e)
			default:
				return
			}
		}
	}
	for {
		select {
		case e := <-events:
			sse.send(e.Type, e)
		case res := <-done:
			drain()
			if res.err != nil {
				sse.send("error", map[string]string{"error": res.err.Error()})
			}
			sse.send("report", res.rep)
			return
		}
	}
}

func (s *Server) mermaidHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	wf, err := workflow.Lookup(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(wf.MermaidFlowchart(workflow.WithDirection(r.URL.Query().Get("dir")))))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.Port).Msg("HTTP server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ChatResponse{Error: message})
}

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSE(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) send(event string, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.f.Flush()
}
