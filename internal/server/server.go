package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"transitnow/internal/handler"
	"transitnow/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the arrivals API.
type Server struct {
	mux     *http.ServeMux
	port    int
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a new Server with all routes registered.
func New(h *handler.Handler, m *metrics.Collector, port int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Static schedule
	mux.HandleFunc("GET /api/static", h.StaticSummary)
	mux.HandleFunc("GET /api/shape", h.Shape)

	// Realtime
	mux.HandleFunc("GET /api/vehicles", h.Vehicles)
	mux.HandleFunc("GET /api/arrivals/scheduled", h.ScheduledArrivals)
	mux.HandleFunc("GET /api/arrivals", h.MergedArrivals)

	// SSE
	mux.HandleFunc("GET /api/arrivals/stream", h.SSEArrivals)

	// Stop search
	mux.HandleFunc("GET /api/stops/nearby", h.NearbyStops)
	mux.HandleFunc("GET /api/stops/search", h.SearchStops)

	// Operations
	mux.HandleFunc("GET /healthz", h.Healthz)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	mux.HandleFunc("GET /{$}", h.Status)

	return &Server{mux: mux, port: port, metrics: m, logger: logger}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.metrics, s.logger)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
