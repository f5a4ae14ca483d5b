package handler

import (
	"net/http"
	"sort"
	"strconv"

	"transitnow/internal/geo"
)

const (
	defaultRadiusMeters = 500.0
	maxRadiusMeters     = 5000.0
	stopResultLimit     = 20
)

// NearbyStop is a stop with its distance from the query point.
type NearbyStop struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// NearbyStops serves stops within ?radius= meters of ?lat=,?lon=, nearest first.
func (h *Handler) NearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		h.writeError(w, r, &InvalidRequestError{Param: "lat", Reason: "must be a latitude"})
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		h.writeError(w, r, &InvalidRequestError{Param: "lon", Reason: "must be a longitude"})
		return
	}
	radius := defaultRadiusMeters
	if v := q.Get("radius"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			radius = min(f, maxRadiusMeters)
		}
	}

	// The R-Tree query uses a square box; over-fetch and trim by true distance.
	rows, err := h.db.NearbyStops(r.Context(), lat, lon, geo.BoxDegrees(lat, radius), stopResultLimit*4)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stops := make([]NearbyStop, 0, len(rows))
	for _, s := range rows {
		d := geo.Haversine(lat, lon, s.Lat, s.Lon)
		if d > radius {
			continue
		}
		stops = append(stops, NearbyStop{ID: s.StopID, Name: s.Name, Lat: s.Lat, Lon: s.Lon, DistanceMeters: d})
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].DistanceMeters < stops[j].DistanceMeters })
	if len(stops) > stopResultLimit {
		stops = stops[:stopResultLimit]
	}
	writeJSON(w, http.StatusOK, stops)
}

// SearchStops serves stops whose name contains ?q=.
func (h *Handler) SearchStops(w http.ResponseWriter, r *http.Request) {
	query, err := requireParam(r, "q")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.db.SearchStops(r.Context(), query, stopResultLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stops := make([]NearbyStop, len(rows))
	for i, s := range rows {
		stops[i] = NearbyStop{ID: s.StopID, Name: s.Name, Lat: s.Lat, Lon: s.Lon}
	}
	writeJSON(w, http.StatusOK, stops)
}
