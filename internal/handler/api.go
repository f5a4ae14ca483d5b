package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"transitnow/internal/gtfs"
)

// StaticSummary serves all routes, stops and trips.
func (h *Handler) StaticSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Routes []gtfs.Route `json:"routes"`
		Stops  []gtfs.Stop  `json:"stops"`
		Trips  []gtfs.Trip  `json:"trips"`
	}{
		Routes: nonNil(h.idx.Routes()),
		Stops:  nonNil(h.idx.Stops()),
		Trips:  nonNil(h.idx.Trips()),
	})
}

// Shape serves the polyline of ?shapeId=.
func (h *Handler) Shape(w http.ResponseWriter, r *http.Request) {
	shapeID, err := requireParam(r, "shapeId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ShapePolyline(shapeID))
}

// Vehicles serves the current vehicle snapshot.
func (h *Handler) Vehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.VehiclesNow())
}

// ScheduledArrivals serves scheduled arrivals at ?stopId= from now.
func (h *Handler) ScheduledArrivals(w http.ResponseWriter, r *http.Request) {
	stopID, err := requireParam(r, "stopId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Scheduled(stopID, h.svc.Now()))
}

// MergedArrivals serves reconciled arrivals at ?stopId= for the optional
// ?time=, which defaults to now.
func (h *Handler) MergedArrivals(w http.ResponseWriter, r *http.Request) {
	stopID, err := requireParam(r, "stopId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	at := parseRequestTime(r.URL.Query().Get("time"), h.svc.Location(), h.svc.Now())
	writeJSON(w, http.StatusOK, h.svc.Merged(stopID, at))
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseRequestTime accepts RFC 3339, a local date-time in loc, or Unix
// seconds. Anything else, including an empty string, yields now.
func parseRequestTime(s string, loc *time.Location, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).In(loc)
	}
	return now
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
