package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marquee/internal/adapters/http/perf"
	"marquee/internal/adapters/metrics"
)

// DefaultSlowRequestMs is used when Timing is given a non-positive threshold.
const DefaultSlowRequestMs = 200

var requestIDCounter atomic.Uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

var statusWriterPool = sync.Pool{
	New: func() any { return &statusWriter{} },
}

// routeHolder receives the matched ServeMux pattern from CaptureRoute. Outer
// middleware sees a different *http.Request than the mux once any layer calls
// WithContext, so the pattern travels back through the context.
type routeHolder struct {
	pattern string
}

const routeContextKey contextKey = "route"

// CaptureRoute must wrap the ServeMux directly. After the mux has routed the
// request it copies r.Pattern to the holder installed by Timing.
func CaptureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if h, ok := r.Context().Value(routeContextKey).(*routeHolder); ok {
			h.pattern = r.Pattern
		}
	})
}

// routeLabel keeps metric label cardinality bounded.
func routeLabel(h *routeHolder) string {
	if h.pattern != "" {
		return h.pattern
	}
	return "unmatched"
}

// Timing returns middleware that logs request duration and feeds the perf
// collector and the request histogram. Requests under /static/ are skipped.
// Requests slower than slowRequestMs log at WARN, the rest at DEBUG.
func Timing(collector *perf.Collector, slowRequestMs int) func(http.Handler) http.Handler {
	if slowRequestMs <= 0 {
		slowRequestMs = DefaultSlowRequestMs
	}
	threshold := float64(slowRequestMs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := requestIDCounter.Add(1)
			route := &routeHolder{}
			r = r.WithContext(context.WithValue(r.Context(), routeContextKey, route))

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				durationMs := float64(elapsed.Microseconds()) / 1000.0

				attrs := []any{
					"request_id", reqID,
					"method", r.Method,
					"path", path,
					"status", sw.status,
					"duration_ms", durationMs,
				}
				if durationMs >= threshold {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}

				metrics.ObserveRequest(r.Method, routeLabel(route), sw.status, elapsed.Seconds())
				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       r.Method + " " + path,
						StatusCode: sw.status,
						DurationMs: durationMs,
						Timestamp:  start,
					})
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
