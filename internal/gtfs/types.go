package gtfs

import "time"

// Route is one row of routes.txt after parsing.
type Route struct {
	ID          string `json:"id"`
	ShortName   string `json:"shortName"`
	LongName    string `json:"longName"`
	Description string `json:"description"`
	Type        *int   `json:"type"` // nil when route_type is blank or non-numeric
	Color       string `json:"color"`
}

// Stop is one row of stops.txt after parsing.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`

	located bool
}

// HasLocation reports whether stop_lat and stop_lon both parsed.
func (s *Stop) HasLocation() bool { return s.located }

// Trip is one row of trips.txt after parsing.
type Trip struct {
	ID          string `json:"id"`
	RouteID     string `json:"routeId"`
	ServiceID   string `json:"serviceId"`
	Headsign    string `json:"headsign"`
	DirectionID *int   `json:"directionId"`
	ShapeID     string `json:"shapeId"`
}

// ShapePoint is a single vertex of a shape polyline.
type ShapePoint struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Sequence int     `json:"sequence"`
}

// StopTimeEntry is a scheduled visit of a trip to a stop.
// Seconds is measured from midnight of the service day and may exceed 86400.
type StopTimeEntry struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	Seconds       int
	StopSequence  *int
}

// CalendarEntry describes the weekly pattern and validity range of a service.
type CalendarEntry struct {
	ServiceID string
	Days      [7]bool // indexed by time.Weekday
	StartDate Date
	EndDate   Date
}

// RunsOn reports whether the service operates on the calendar date of t.
func (c *CalendarEntry) RunsOn(t time.Time) bool {
	d := DateOf(t)
	return c.Days[t.Weekday()] && d >= c.StartDate && d <= c.EndDate
}

// Date is a calendar date without a time component, encoded as YYYYMMDD.
type Date int

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date(y*10000 + int(m)*100 + d)
}

// Raw CSV rows. Every column is kept as text; conversion happens in Build.

type agencyRow struct {
	AgencyID       string `csv:"agency_id"`
	AgencyName     string `csv:"agency_name"`
	AgencyTimezone string `csv:"agency_timezone"`
}

type routeRow struct {
	RouteID        string `csv:"route_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteDesc      string `csv:"route_desc"`
	RouteType      string `csv:"route_type"`
	RouteColor     string `csv:"route_color"`
}

type stopRow struct {
	StopID   string `csv:"stop_id"`
	StopName string `csv:"stop_name"`
	StopLat  string `csv:"stop_lat"`
	StopLon  string `csv:"stop_lon"`
}

type tripRow struct {
	RouteID      string `csv:"route_id"`
	ServiceID    string `csv:"service_id"`
	TripID       string `csv:"trip_id"`
	TripHeadsign string `csv:"trip_headsign"`
	DirectionID  string `csv:"direction_id"`
	ShapeID      string `csv:"shape_id"`
}

type stopTimeRow struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
}

type calendarRow struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

type shapeRow struct {
	ShapeID    string `csv:"shape_id"`
	ShapePtLat string `csv:"shape_pt_lat"`
	ShapePtLon string `csv:"shape_pt_lon"`
	ShapePtSeq string `csv:"shape_pt_sequence"`
}
