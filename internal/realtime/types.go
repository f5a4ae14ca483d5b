package realtime

import "time"

// Feed names used in logs, metrics and errors.
const (
	FeedVehiclePositions = "vehicle_positions"
	FeedTripUpdates      = "trip_updates"
)

// Vehicle is a normalized vehicle position.
type Vehicle struct {
	ID                   string    `json:"id"`
	TripID               string    `json:"tripId,omitempty"`
	RouteID              string    `json:"routeId,omitempty"`
	DirectionID          *int      `json:"directionId"`
	Lat                  float64   `json:"lat"`
	Lon                  float64   `json:"lon"`
	Bearing              *float64  `json:"bearing"`
	Speed                *float64  `json:"speed"` // meters per second
	Timestamp            time.Time `json:"timestamp,omitzero"`
	CurrentStopSequence  *int      `json:"currentStopSequence"`
	StopID               string    `json:"stopId,omitempty"`
	CongestionLevel      string    `json:"congestionLevel,omitempty"`
	ScheduleRelationship string    `json:"scheduleRelationship,omitempty"`
	Label                string    `json:"label,omitempty"`
	Plate                string    `json:"plate,omitempty"`
}

// StopTimePrediction is the predicted visit of a trip to one stop.
// Arrival and Departure are zero when the feed does not provide them.
type StopTimePrediction struct {
	StopID       string
	StopSequence *int
	Arrival      time.Time
	Departure    time.Time
}

// Time returns the predicted arrival, falling back to the departure.
func (p StopTimePrediction) Time() (time.Time, bool) {
	if !p.Arrival.IsZero() {
		return p.Arrival, true
	}
	if !p.Departure.IsZero() {
		return p.Departure, true
	}
	return time.Time{}, false
}

// TripUpdate carries the predictions for one trip.
type TripUpdate struct {
	TripID    string
	RouteID   string
	VehicleID string
	Timestamp time.Time
	StopTimes []StopTimePrediction
}

// VehicleSnapshot is the complete result of one vehicle positions fetch.
type VehicleSnapshot struct {
	Generation    uint64
	FetchedAt     time.Time
	FeedTimestamp time.Time
	Vehicles      []Vehicle
}

// TripUpdateSnapshot is the complete result of one trip updates fetch.
type TripUpdateSnapshot struct {
	Generation    uint64
	FetchedAt     time.Time
	FeedTimestamp time.Time
	Updates       []TripUpdate
}
