package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"transitnow/internal/arrivals"
	"transitnow/internal/gtfs"
	"transitnow/internal/realtime"
	"transitnow/internal/storage"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	idx          *gtfs.Index
	svc          *arrivals.Service
	rt           *realtime.Store
	db           *storage.DB
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a Handler.
func New(idx *gtfs.Index, svc *arrivals.Service, rt *realtime.Store, db *storage.DB, pollInterval time.Duration, logger *slog.Logger) *Handler {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Handler{idx: idx, svc: svc, rt: rt, db: db, pollInterval: pollInterval, logger: logger}
}

// InvalidRequestError reports a missing or malformed query parameter.
type InvalidRequestError struct {
	Param  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("query parameter %q %s", e.Param, e.Reason)
}

// requireParam returns the named query parameter or an InvalidRequestError.
func requireParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", &InvalidRequestError{Param: name, Reason: "is required"}
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and a JSON error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ire *InvalidRequestError
	if errors.As(err, &ire) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ire.Error()})
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
