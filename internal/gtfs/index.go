package gtfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"
)

// Index holds the query-ready static schedule. It is never modified after
// Build returns, so it is safe for concurrent readers without locking.
type Index struct {
	routes    map[string]*Route
	stops     map[string]*Stop
	trips     map[string]*Trip
	shapes    map[string][]ShapePoint
	stopTimes map[string][]StopTimeEntry
	calendar  map[string]*CalendarEntry

	routeList []Route
	stopList  []Stop
	tripList  []Trip

	timezone string
}

// Stats summarizes the size of each table in the index.
type Stats struct {
	Routes    int `json:"routes"`
	Stops     int `json:"stops"`
	Trips     int `json:"trips"`
	Shapes    int `json:"shapes"`
	StopTimes int `json:"stopTimes"`
	Services  int `json:"services"`
}

// BuildFile reads the archive at path and builds an Index.
func BuildFile(path string, logger *slog.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataIntegrityError{Table: "archive", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &DataIntegrityError{Table: "archive", Err: err}
	}
	return Build(f, info.Size(), logger)
}

// BuildBytes builds an Index from an archive held in memory.
func BuildBytes(b []byte, logger *slog.Logger) (*Index, error) {
	return Build(bytes.NewReader(b), int64(len(b)), logger)
}

// Build parses the archive and returns a fully populated Index, or a
// *DataIntegrityError if a required table is missing or malformed.
func Build(r io.ReaderAt, size int64, logger *slog.Logger) (*Index, error) {
	start := time.Now()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &DataIntegrityError{Table: "archive", Err: err}
	}

	idx := &Index{
		routes:    make(map[string]*Route),
		stops:     make(map[string]*Stop),
		trips:     make(map[string]*Trip),
		shapes:    make(map[string][]ShapePoint),
		stopTimes: make(map[string][]StopTimeEntry),
		calendar:  make(map[string]*CalendarEntry),
	}

	if err := idx.loadAgency(zr); err != nil {
		return nil, err
	}
	if err := idx.loadRoutes(zr); err != nil {
		return nil, err
	}
	unlocated, err := idx.loadStops(zr)
	if err != nil {
		return nil, err
	}
	if err := idx.loadTrips(zr); err != nil {
		return nil, err
	}
	if err := idx.loadCalendar(zr); err != nil {
		return nil, err
	}
	skipped, err := idx.loadStopTimes(zr)
	if err != nil {
		return nil, err
	}
	dupes, err := idx.loadShapes(zr)
	if err != nil {
		return nil, err
	}

	st := idx.Stats()
	logger.Info("GTFS index built",
		"duration", time.Since(start).Round(time.Millisecond),
		"routes", st.Routes,
		"stops", st.Stops,
		"trips", st.Trips,
		"shapes", st.Shapes,
		"stop_times", st.StopTimes,
		"services", st.Services,
	)
	if unlocated > 0 {
		logger.Warn("stops without parsable coordinates are excluded from stop search", "count", unlocated)
	}
	if skipped > 0 {
		logger.Warn("stop times without a parsable time were not indexed", "count", skipped)
	}
	if dupes > 0 {
		logger.Warn("duplicate shape sequence numbers dropped", "count", dupes)
	}
	return idx, nil
}

// required wraps a table read error as a DataIntegrityError.
func required[T any](zr *zip.Reader, name string) ([]T, error) {
	rows, err := readTable[T](zr, name)
	if err != nil {
		return nil, &DataIntegrityError{Table: name, Err: err}
	}
	return rows, nil
}

// optional returns no rows for a missing table but still fails on a
// table that is present and malformed.
func optional[T any](zr *zip.Reader, name string) ([]T, error) {
	rows, err := readTable[T](zr, name)
	if errors.Is(err, errTableMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, &DataIntegrityError{Table: name, Err: err}
	}
	return rows, nil
}

func (idx *Index) loadAgency(zr *zip.Reader) error {
	rows, err := optional[agencyRow](zr, "agency.txt")
	if err != nil {
		return err
	}
	for _, a := range rows {
		if a.AgencyTimezone != "" {
			idx.timezone = a.AgencyTimezone
			break
		}
	}
	return nil
}

func (idx *Index) loadRoutes(zr *zip.Reader) error {
	rows, err := required[routeRow](zr, "routes.txt")
	if err != nil {
		return err
	}
	for i, r := range rows {
		if r.RouteID == "" {
			return integrityErr("routes.txt", "row %d: missing route_id", i+2)
		}
		if _, dup := idx.routes[r.RouteID]; dup {
			continue
		}
		route := Route{
			ID:          r.RouteID,
			ShortName:   r.RouteShortName,
			LongName:    r.RouteLongName,
			Description: r.RouteDesc,
			Type:        ParseOptionalInt(r.RouteType),
			Color:       r.RouteColor,
		}
		idx.routeList = append(idx.routeList, route)
		idx.routes[r.RouteID] = nil
	}
	sort.Slice(idx.routeList, func(i, j int) bool { return idx.routeList[i].ID < idx.routeList[j].ID })
	for i := range idx.routeList {
		idx.routes[idx.routeList[i].ID] = &idx.routeList[i]
	}
	return nil
}

// loadStops indexes stops.txt. It returns how many stops lack usable
// coordinates; those stay in the index but are not located.
func (idx *Index) loadStops(zr *zip.Reader) (int, error) {
	rows, err := required[stopRow](zr, "stops.txt")
	if err != nil {
		return 0, err
	}
	unlocated := 0
	for i, s := range rows {
		if s.StopID == "" {
			return 0, integrityErr("stops.txt", "row %d: missing stop_id", i+2)
		}
		if _, dup := idx.stops[s.StopID]; dup {
			continue
		}
		lat, latOK := parseFloat(s.StopLat)
		lon, lonOK := parseFloat(s.StopLon)
		located := latOK && lonOK && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
		if !located {
			unlocated++
		}
		idx.stopList = append(idx.stopList, Stop{ID: s.StopID, Name: s.StopName, Lat: lat, Lon: lon, located: located})
		idx.stops[s.StopID] = nil
	}
	sort.Slice(idx.stopList, func(i, j int) bool { return idx.stopList[i].ID < idx.stopList[j].ID })
	for i := range idx.stopList {
		idx.stops[idx.stopList[i].ID] = &idx.stopList[i]
	}
	return unlocated, nil
}

func (idx *Index) loadTrips(zr *zip.Reader) error {
	rows, err := required[tripRow](zr, "trips.txt")
	if err != nil {
		return err
	}
	for i, t := range rows {
		if t.TripID == "" {
			return integrityErr("trips.txt", "row %d: missing trip_id", i+2)
		}
		if _, dup := idx.trips[t.TripID]; dup {
			continue
		}
		idx.tripList = append(idx.tripList, Trip{
			ID:          t.TripID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.TripHeadsign,
			DirectionID: ParseOptionalInt(t.DirectionID),
			ShapeID:     t.ShapeID,
		})
		idx.trips[t.TripID] = nil
	}
	sort.Slice(idx.tripList, func(i, j int) bool { return idx.tripList[i].ID < idx.tripList[j].ID })
	for i := range idx.tripList {
		idx.trips[idx.tripList[i].ID] = &idx.tripList[i]
	}
	return nil
}

func (idx *Index) loadCalendar(zr *zip.Reader) error {
	rows, err := required[calendarRow](zr, "calendar.txt")
	if err != nil {
		return err
	}
	for i, c := range rows {
		if c.ServiceID == "" {
			return integrityErr("calendar.txt", "row %d: missing service_id", i+2)
		}
		startDate, err := ParseDate(c.StartDate)
		if err != nil {
			return integrityErr("calendar.txt", "row %d: start_date: %w", i+2, err)
		}
		endDate, err := ParseDate(c.EndDate)
		if err != nil {
			return integrityErr("calendar.txt", "row %d: end_date: %w", i+2, err)
		}
		entry := &CalendarEntry{ServiceID: c.ServiceID, StartDate: startDate, EndDate: endDate}
		entry.Days[time.Sunday] = flag(c.Sunday)
		entry.Days[time.Monday] = flag(c.Monday)
		entry.Days[time.Tuesday] = flag(c.Tuesday)
		entry.Days[time.Wednesday] = flag(c.Wednesday)
		entry.Days[time.Thursday] = flag(c.Thursday)
		entry.Days[time.Friday] = flag(c.Friday)
		entry.Days[time.Saturday] = flag(c.Saturday)
		idx.calendar[c.ServiceID] = entry
	}
	return nil
}

// loadStopTimes groups stop times by stop and orders each group by time.
// It returns how many rows were skipped for lacking a usable time.
func (idx *Index) loadStopTimes(zr *zip.Reader) (int, error) {
	rows, err := required[stopTimeRow](zr, "stop_times.txt")
	if err != nil {
		return 0, err
	}
	skipped := 0
	for i, st := range rows {
		if st.TripID == "" || st.StopID == "" {
			return 0, integrityErr("stop_times.txt", "row %d: missing trip_id or stop_id", i+2)
		}
		secs, ok := ParseTimeOfDay(st.ArrivalTime)
		if !ok {
			secs, ok = ParseTimeOfDay(st.DepartureTime)
		}
		if !ok {
			skipped++
			continue
		}
		idx.stopTimes[st.StopID] = append(idx.stopTimes[st.StopID], StopTimeEntry{
			TripID:        st.TripID,
			ArrivalTime:   st.ArrivalTime,
			DepartureTime: st.DepartureTime,
			Seconds:       secs,
			StopSequence:  ParseOptionalInt(st.StopSequence),
		})
	}
	for _, entries := range idx.stopTimes {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seconds < entries[j].Seconds })
	}
	return skipped, nil
}

// loadShapes groups shape points by shape and orders them by sequence.
// Only the first point for a given sequence number is kept; the number of
// dropped duplicates is returned.
func (idx *Index) loadShapes(zr *zip.Reader) (int, error) {
	rows, err := optional[shapeRow](zr, "shapes.txt")
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		seq := ParseOptionalInt(r.ShapePtSeq)
		lat, latOK := parseFloat(r.ShapePtLat)
		lon, lonOK := parseFloat(r.ShapePtLon)
		if r.ShapeID == "" || seq == nil || !latOK || !lonOK {
			continue
		}
		idx.shapes[r.ShapeID] = append(idx.shapes[r.ShapeID], ShapePoint{Lat: lat, Lon: lon, Sequence: *seq})
	}
	dupes := 0
	for id, pts := range idx.shapes {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Sequence < pts[j].Sequence })
		out := pts[:0]
		for i, p := range pts {
			if i > 0 && p.Sequence == out[len(out)-1].Sequence {
				dupes++
				continue
			}
			out = append(out, p)
		}
		idx.shapes[id] = out
	}
	return dupes, nil
}

// Route returns the route with the given id.
func (idx *Index) Route(id string) (*Route, bool) {
	r, ok := idx.routes[id]
	return r, ok
}

// Stop returns the stop with the given id.
func (idx *Index) Stop(id string) (*Stop, bool) {
	s, ok := idx.stops[id]
	return s, ok
}

// Trip returns the trip with the given id.
func (idx *Index) Trip(id string) (*Trip, bool) {
	t, ok := idx.trips[id]
	return t, ok
}

// Calendar returns the calendar entry for a service.
func (idx *Index) Calendar(serviceID string) (*CalendarEntry, bool) {
	c, ok := idx.calendar[serviceID]
	return c, ok
}

// ServiceRunning reports whether serviceID operates on the date of t.
// A service with no calendar entry never runs.
func (idx *Index) ServiceRunning(serviceID string, t time.Time) bool {
	c, ok := idx.calendar[serviceID]
	return ok && c.RunsOn(t)
}

// StopTimes returns the time-ordered stop times at a stop. The slice is
// shared and must not be modified.
func (idx *Index) StopTimes(stopID string) []StopTimeEntry {
	return idx.stopTimes[stopID]
}

// Shape returns the points of a shape in ascending sequence order. The
// slice is shared and must not be modified.
func (idx *Index) Shape(shapeID string) []ShapePoint {
	return idx.shapes[shapeID]
}

// Routes returns all routes ordered by id.
func (idx *Index) Routes() []Route { return idx.routeList }

// Stops returns all stops ordered by id.
func (idx *Index) Stops() []Stop { return idx.stopList }

// Trips returns all trips ordered by id.
func (idx *Index) Trips() []Trip { return idx.tripList }

// Timezone returns the first agency_timezone in agency.txt, or "".
func (idx *Index) Timezone() string { return idx.timezone }

// Stats returns row counts for each table.
func (idx *Index) Stats() Stats {
	n := 0
	for _, entries := range idx.stopTimes {
		n += len(entries)
	}
	return Stats{
		Routes:    len(idx.routeList),
		Stops:     len(idx.stopList),
		Trips:     len(idx.tripList),
		Shapes:    len(idx.shapes),
		StopTimes: n,
		Services:  len(idx.calendar),
	}
}
