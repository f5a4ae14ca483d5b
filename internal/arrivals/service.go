// Package arrivals reconciles the static schedule with realtime predictions.
package arrivals

import (
	"sort"
	"time"

	"transitnow/internal/gtfs"
	"transitnow/internal/realtime"
)

const (
	// MaxResults caps every arrival list.
	MaxResults = 20
	// RealtimeWindow bounds both the prediction horizon and how far a
	// request time may be from now before realtime data is ignored.
	RealtimeWindow = 2 * time.Hour
)

// Provenance tags.
const (
	SourceScheduled = "scheduled"
	SourceRealtime  = "realtime"
)

// Arrival is one upcoming visit of a trip to a stop.
type Arrival struct {
	TripID         string `json:"tripId"`
	Time           string `json:"time"` // HH:MM
	StopSequence   *int   `json:"stopSequence"`
	RouteID        string `json:"routeId"`
	RouteShortName string `json:"routeShortName"`
	RouteLongName  string `json:"routeLongName"`
	Headsign       string `json:"headsign"`
	Source         string `json:"source"`
}

// LatLon is a polyline vertex.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Snapshots provides the current realtime data.
type Snapshots interface {
	Vehicles() *realtime.VehicleSnapshot
	TripUpdates() *realtime.TripUpdateSnapshot
}

// Service answers arrival, vehicle and shape queries. It holds no state of
// its own beyond references to the static index and the realtime store.
type Service struct {
	idx *gtfs.Index
	rt  Snapshots
	loc *time.Location
	now func() time.Time
}

// NewService creates a Service. Times of day are evaluated in loc.
func NewService(idx *gtfs.Index, rt Snapshots, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{idx: idx, rt: rt, loc: loc, now: time.Now}
}

// WithClock replaces the source of the current time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the current instant in the service timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the service timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Scheduled returns up to MaxResults scheduled arrivals at stopID at or
// after the time of day of at, limited to services running on at's date.
func (s *Service) Scheduled(stopID string, at time.Time) []Arrival {
	at = at.In(s.loc)
	secs := at.Hour()*3600 + at.Minute()*60 + at.Second()

	entries := s.idx.StopTimes(stopID)
	first := sort.Search(len(entries), func(i int) bool { return entries[i].Seconds >= secs })

	out := make([]Arrival, 0, MaxResults)
	for _, e := range entries[first:] {
		if len(out) == MaxResults {
			break
		}
		trip, ok := s.idx.Trip(e.TripID)
		if !ok || !s.idx.ServiceRunning(trip.ServiceID, at) {
			continue
		}
		a := s.describe(trip, trip.RouteID)
		a.TripID = e.TripID
		a.Time = gtfs.FormatTimeLabel(e.Seconds)
		a.StopSequence = e.StopSequence
		a.Source = SourceScheduled
		out = append(out, a)
	}
	return out
}

// Realtime returns up to MaxResults predicted arrivals at stopID between
// now and now+RealtimeWindow, one per trip, ordered by time label.
func (s *Service) Realtime(stopID string) []Arrival {
	now := s.Now()
	horizon := now.Add(RealtimeWindow)

	type candidate struct {
		arrival Arrival
		at      time.Time
	}
	best := make(map[string]candidate)

	for _, u := range s.rt.TripUpdates().Updates {
		for _, p := range u.StopTimes {
			if p.StopID != stopID {
				continue
			}
			at, ok := p.Time()
			if !ok || at.Before(now) || at.After(horizon) {
				continue
			}
			label := at.In(s.loc).Format("15:04")
			if prev, seen := best[u.TripID]; seen {
				if prev.arrival.Time < label || (prev.arrival.Time == label && !at.Before(prev.at)) {
					continue
				}
			}

			var a Arrival
			if trip, ok := s.idx.Trip(u.TripID); ok {
				a = s.describe(trip, trip.RouteID)
			} else {
				a = s.describe(nil, u.RouteID)
			}
			a.TripID = u.TripID
			a.Time = label
			a.StopSequence = p.StopSequence
			a.Source = SourceRealtime
			best[u.TripID] = candidate{arrival: a, at: at}
		}
	}

	out := make([]Arrival, 0, len(best))
	for _, c := range best {
		out = append(out, c.arrival)
	}
	sortByLabel(out)
	return truncate(out)
}

// Merged combines realtime and scheduled arrivals at stopID for
// requestTime. Realtime data is consulted only when requestTime is within
// RealtimeWindow of now; a trip with a realtime arrival never also appears
// with its scheduled one.
func (s *Service) Merged(stopID string, requestTime time.Time) []Arrival {
	scheduled := s.Scheduled(stopID, requestTime)
	if d := requestTime.Sub(s.now()); d > RealtimeWindow || d < -RealtimeWindow {
		return scheduled
	}
	live := s.Realtime(stopID)

	merged := make([]Arrival, 0, len(live)+len(scheduled))
	seen := make(map[string]bool, len(live))
	for _, a := range live {
		seen[a.TripID] = true
		merged = append(merged, a)
	}
	for _, a := range scheduled {
		if !seen[a.TripID] {
			merged = append(merged, a)
		}
	}
	sortByLabel(merged)
	return truncate(merged)
}

// VehiclesNow returns the vehicles in the current snapshot.
func (s *Service) VehiclesNow() []realtime.Vehicle {
	if v := s.rt.Vehicles().Vehicles; v != nil {
		return v
	}
	return []realtime.Vehicle{}
}

// ShapePolyline returns the ordered points of a shape, or an empty slice
// for an unknown shape.
func (s *Service) ShapePolyline(shapeID string) []LatLon {
	pts := s.idx.Shape(shapeID)
	out := make([]LatLon, len(pts))
	for i, p := range pts {
		out[i] = LatLon{Lat: p.Lat, Lon: p.Lon}
	}
	return out
}

// describe fills the route and headsign fields of an Arrival.
func (s *Service) describe(trip *gtfs.Trip, routeID string) Arrival {
	a := Arrival{RouteID: routeID}
	if trip != nil {
		a.Headsign = trip.Headsign
	}
	if r, ok := s.idx.Route(routeID); ok {
		a.RouteShortName = r.ShortName
		a.RouteLongName = r.LongName
	}
	return a
}

// sortByLabel orders arrivals by time label, breaking ties by trip id.
func sortByLabel(as []Arrival) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].Time != as[j].Time {
			return as[i].Time < as[j].Time
		}
		return as[i].TripID < as[j].TripID
	})
}

func truncate(as []Arrival) []Arrival {
	if len(as) > MaxResults {
		return as[:MaxResults]
	}
	return as
}
