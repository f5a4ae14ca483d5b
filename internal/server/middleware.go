package server

import (
	"log/slog"
	"net/http"
	"time"

	"transitnow/internal/metrics"
)

func withMiddleware(h http.Handler, m *metrics.Collector, logger *slog.Logger) http.Handler {
	return securityHeaders(requestLogger(h, m, logger))
}

// requestLogger logs each request and records it in m under its route
// pattern. The pattern is set by the mux while serving, so it is read after.
func requestLogger(next http.Handler, m *metrics.Collector, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		// SSE connections are long-lived; their duration is not a latency.
		if isEventStream(r, sw) {
			return
		}
		d := time.Since(start)
		m.ObserveRequest(r.Pattern, sw.status, d)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", d.Round(time.Microsecond),
		)
	})
}

func isEventStream(r *http.Request, w http.ResponseWriter) bool {
	return r.Header.Get("Accept") == "text/event-stream" ||
		w.Header().Get("Content-Type") == "text/event-stream"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush exposes the underlying Flusher for SSE support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
