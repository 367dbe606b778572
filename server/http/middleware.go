package http

import (
	"net/http"
	"strconv"
	"time"

	obs "github.com/KamdynS/agentlab/observability"
	"github.com/rs/zerolog/log"
)

// statusRecorder captures the response code and keeps streaming working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// observe assigns a request id, opens a span, and records an access log
// line plus request metrics. Handlers log through log.Ctx.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := obs.ExtractHTTPContext(r.Context(), r)
		id, _ := obs.RequestIDFromContext(ctx)
		obs.InjectHTTPHeaders(w, ctx)

		logger := log.With().Str("request_id", id).Logger()
		ctx = logger.WithContext(ctx)

		span, ctx := obs.StartSpan(ctx, "http.request")
		span.SetAttribute(obs.AttrHTTPMethod, r.Method)
		span.SetAttribute(obs.AttrHTTPRoute, r.URL.Path)
		span.SetAttribute(obs.AttrRequestID, id)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		span.SetAttribute(obs.AttrHTTPStatus, rec.status)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(obs.StatusCodeError, http.StatusText(rec.status))
		} else {
			span.SetStatus(obs.StatusCodeOk, "")
		}
		span.End()

		elapsed := time.Since(start)
		labels := map[string]string{"route": r.URL.Path, "method": r.Method, "status_code": strconv.Itoa(rec.status)}
		obs.MetricsImpl.IncrementRequests(labels)
		obs.MetricsImpl.RecordLatency(elapsed, labels)
		if rec.status >= http.StatusInternalServerError {
			obs.MetricsImpl.RecordError("http_"+strconv.Itoa(rec.status), labels)
		}

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
