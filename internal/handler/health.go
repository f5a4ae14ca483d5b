package handler

import (
	"net/http"
	"time"

	"transitnow/internal/realtime"
	"transitnow/internal/templates"
)

type healthResponse struct {
	Status             string    `json:"status"`
	VehiclesUpdated    time.Time `json:"vehiclesUpdated,omitzero"`
	TripUpdatesUpdated time.Time `json:"tripUpdatesUpdated,omitzero"`
	Vehicles           int       `json:"vehicles"`
	TripUpdates        int       `json:"tripUpdates"`
}

// Healthz reports liveness and the age of the realtime snapshots.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health())
}

func (h *Handler) health() healthResponse {
	v, tu := h.rt.Vehicles(), h.rt.TripUpdates()
	return healthResponse{
		Status:             "ok",
		VehiclesUpdated:    v.FetchedAt,
		TripUpdatesUpdated: tu.FetchedAt,
		Vehicles:           len(v.Vehicles),
		TripUpdates:        len(tu.Updates),
	}
}

// Status renders the HTML status page.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	hr := h.health()
	stats := h.idx.Stats()
	data := templates.StatusData{
		Title:    "transitnow",
		Timezone: h.svc.Location().String(),
		Now:      h.svc.Now(),
		Routes:   stats.Routes,
		Stops:    stats.Stops,
		Trips:    stats.Trips,
		Feeds: []templates.FeedStatus{
			{Name: realtime.FeedVehiclePositions, Entities: hr.Vehicles, Updated: hr.VehiclesUpdated},
			{Name: realtime.FeedTripUpdates, Entities: hr.TripUpdates, Updated: hr.TripUpdatesUpdated},
		},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.StatusPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering status page", "error", err)
	}
}
