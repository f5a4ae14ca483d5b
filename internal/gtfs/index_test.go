package gtfs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnow/internal/gtfs"
	"transitnow/internal/gtfs/gtfstest"
)

func TestBuildMinimal(t *testing.T) {
	idx := gtfstest.Build(t, gtfstest.Minimal())

	route, ok := idx.Route("1")
	require.True(t, ok)
	assert.Equal(t, "Main Street", route.LongName)
	require.NotNil(t, route.Type)
	assert.Equal(t, 3, *route.Type)

	stop, ok := idx.Stop("S1")
	require.True(t, ok)
	assert.Equal(t, 41.0, stop.Lat)
	assert.Equal(t, -93.0, stop.Lon)

	trip, ok := idx.Trip("T1")
	require.True(t, ok)
	assert.Equal(t, "WD", trip.ServiceID)
	require.NotNil(t, trip.DirectionID)
	assert.Equal(t, 0, *trip.DirectionID)

	entries := idx.StopTimes("S1")
	require.Len(t, entries, 1)
	assert.Equal(t, 8*3600, entries[0].Seconds)
	require.NotNil(t, entries[0].StopSequence)
	assert.Equal(t, 1, *entries[0].StopSequence)

	assert.Empty(t, idx.Shape("SH1"), "shapes.txt is optional")
	assert.Equal(t, gtfs.Stats{Routes: 1, Stops: 1, Trips: 1, StopTimes: 1, Services: 1}, idx.Stats())
}

func TestBuildMissingRequiredTable(t *testing.T) {
	for _, table := range []string{"routes.txt", "stops.txt", "trips.txt", "stop_times.txt", "calendar.txt"} {
		t.Run(table, func(t *testing.T) {
			files := gtfstest.Minimal()
			delete(files, table)

			idx, err := gtfs.BuildBytes(gtfstest.Archive(t, files), gtfstest.Logger())
			require.Error(t, err)
			assert.Nil(t, idx)

			var die *gtfs.DataIntegrityError
			require.True(t, errors.As(err, &die))
			assert.Equal(t, table, die.Table)
		})
	}
}

func TestBuildNotAZip(t *testing.T) {
	_, err := gtfs.BuildBytes([]byte("definitely not a zip"), gtfstest.Logger())
	var die *gtfs.DataIntegrityError
	require.True(t, errors.As(err, &die))
	assert.Equal(t, "archive", die.Table)
}

func TestBuildBadCalendarDate(t *testing.T) {
	files := gtfstest.Minimal()
	files["calendar.txt"] = "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WD,1,0,0,0,0,0,0,2024-01-01,20241231\n"

	_, err := gtfs.BuildBytes(gtfstest.Archive(t, files), gtfstest.Logger())
	var die *gtfs.DataIntegrityError
	require.True(t, errors.As(err, &die))
	assert.Equal(t, "calendar.txt", die.Table)
}

func TestBuildTableLookupIgnoresCaseAndDirectories(t *testing.T) {
	files := map[string]string{}
	for name, content := range gtfstest.Minimal() {
		files[name] = content
	}
	files["feed/ROUTES.TXT"] = files["routes.txt"]
	delete(files, "routes.txt")
	files["nested/dir/Stop_Times.txt"] = files["stop_times.txt"]
	delete(files, "stop_times.txt")

	idx := gtfstest.Build(t, files)
	_, ok := idx.Route("1")
	assert.True(t, ok)
	assert.Len(t, idx.StopTimes("S1"), 1)
}

func TestBuildStopTimesOrdered(t *testing.T) {
	files := gtfstest.Minimal()
	files["trips.txt"] = "route_id,service_id,trip_id\n1,WD,T1\n1,WD,T2\n1,WD,T3\n1,WD,T4\n"
	files["stop_times.txt"] = "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,25:10:00,25:10:00,S1,4\n" +
		"T2,8:05:00,08:05:00,S1,2\n" +
		"T3,,07:30:00,S1,1\n" +
		"T4,08:05:00,08:05:00,S1,\n"

	idx := gtfstest.Build(t, files)
	entries := idx.StopTimes("S1")
	require.Len(t, entries, 4)

	var trips []string
	for _, e := range entries {
		trips = append(trips, e.TripID)
	}
	// T2 and T4 tie at 08:05 and keep file order.
	assert.Equal(t, []string{"T3", "T2", "T4", "T1"}, trips)
	assert.Equal(t, 25*3600+10*60, entries[3].Seconds)
	assert.Nil(t, entries[2].StopSequence, "blank stop_sequence is absent, not zero")
}

func TestBuildShapesSortedBySequence(t *testing.T) {
	files := gtfstest.Minimal()
	files["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,41.3,-93.3,30\n" +
		"SH1,41.1,-93.1,10\n" +
		"SH1,41.2,-93.2,20\n" +
		"SH1,49.9,-99.9,20\n" +
		"SH1,41.0,-93.0,\n" +
		"SH2,40.0,-90.0,1\n"

	idx := gtfstest.Build(t, files)
	pts := idx.Shape("SH1")
	require.Len(t, pts, 3)
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i-1].Sequence, pts[i].Sequence)
	}
	assert.Equal(t, 41.2, pts[1].Lat, "first row wins for a duplicate sequence")
	assert.Len(t, idx.Shape("SH2"), 1)
	assert.Nil(t, idx.Shape("nope"))
}

func TestBuildAbsentNumbers(t *testing.T) {
	files := gtfstest.Minimal()
	files["routes.txt"] = "route_id,route_type\n1,\n2,bus\n3,0\n"
	files["trips.txt"] = "route_id,service_id,trip_id,direction_id\n1,WD,T1,\n1,WD,T2,1\n"

	idx := gtfstest.Build(t, files)

	r1, _ := idx.Route("1")
	r2, _ := idx.Route("2")
	r3, _ := idx.Route("3")
	assert.Nil(t, r1.Type)
	assert.Nil(t, r2.Type)
	require.NotNil(t, r3.Type)
	assert.Equal(t, 0, *r3.Type)

	t1, _ := idx.Trip("T1")
	t2, _ := idx.Trip("T2")
	assert.Nil(t, t1.DirectionID)
	require.NotNil(t, t2.DirectionID)
	assert.Equal(t, 1, *t2.DirectionID)
}

func TestBuildBOMAndAgencyTimezone(t *testing.T) {
	files := gtfstest.Minimal()
	files["routes.txt"] = "\xef\xbb\xbfroute_id,route_short_name\n1,1\n"
	files["agency.txt"] = "agency_id,agency_name,agency_timezone\nA,Agency,America/Chicago\n"

	idx := gtfstest.Build(t, files)
	_, ok := idx.Route("1")
	assert.True(t, ok)
	assert.Equal(t, "America/Chicago", idx.Timezone())
}

func TestServiceRunning(t *testing.T) {
	idx := gtfstest.Build(t, gtfstest.Minimal())

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"monday in range", time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC), true},
		{"sunday in range", time.Date(2024, 3, 3, 7, 0, 0, 0, time.UTC), false},
		{"first day", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"last day", time.Date(2024, 12, 30, 23, 59, 0, 0, time.UTC), true},
		{"monday after end", time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC), false},
		{"monday before start", time.Date(2023, 12, 25, 7, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.ServiceRunning("WD", tt.date))
		})
	}

	assert.False(t, idx.ServiceRunning("UNKNOWN", time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)),
		"a service without a calendar entry never runs")
}

func TestCalendarFlagsRequireLiteralOne(t *testing.T) {
	files := gtfstest.Minimal()
	files["calendar.txt"] = "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WD,true,2,1,,0,1,1,20240101,20241231\n"

	idx := gtfstest.Build(t, files)
	c, ok := idx.Calendar("WD")
	require.True(t, ok)
	assert.Equal(t, [7]bool{
		time.Sunday:    true,
		time.Monday:    false,
		time.Tuesday:   false,
		time.Wednesday: true,
		time.Thursday:  false,
		time.Friday:    false,
		time.Saturday:  true,
	}, c.Days)
}
