package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEArrivals streams merged arrivals for ?stopId= via Server-Sent Events.
// An "arrivals" event is sent immediately and then once per poll interval.
func (h *Handler) SSEArrivals(w http.ResponseWriter, r *http.Request) {
	stopID, err := requireParam(r, "stopId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	if err := h.sendArrivalsEvent(w, flusher, stopID); err != nil {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.sendArrivalsEvent(w, flusher, stopID); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) sendArrivalsEvent(w http.ResponseWriter, flusher http.Flusher, stopID string) error {
	data, err := json.Marshal(h.svc.Merged(stopID, h.svc.Now()))
	if err != nil {
		h.logger.Error("encoding SSE arrivals", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: arrivals\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
