package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnow/internal/arrivals"
	"transitnow/internal/gtfs"
	"transitnow/internal/gtfs/gtfstest"
	"transitnow/internal/realtime"
	"transitnow/internal/storage"
)

// monday0730 is a Monday on which the minimal feed's service runs.
var monday0730 = time.Date(2024, 3, 4, 7, 30, 0, 0, time.UTC)

type fixture struct {
	h  *Handler
	rt *realtime.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	files := gtfstest.Minimal()
	files["stops.txt"] = "stop_id,stop_name,stop_lat,stop_lon\n" +
		"S1,First & Main,41.0,-93.0\n" +
		"S2,Second & Main,41.002,-93.0\n" +
		"S3,Far Away,42.0,-93.0\n"
	files["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,41.001,-93.0,2\n" +
		"SH1,41.0,-93.0,1\n"
	idx := gtfstest.Build(t, files)

	db, err := storage.OpenMemory(gtfstest.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, gtfs.NewImporter(db, gtfstest.Logger()).Import(context.Background(), idx))

	rt := realtime.NewStore()
	svc := arrivals.NewService(idx, rt, time.UTC).WithClock(func() time.Time { return monday0730 })
	return fixture{h: New(idx, svc, rt, db, time.Hour, gtfstest.Logger()), rt: rt}
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequiredParams(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		param   string
	}{
		{"shape", f.h.Shape, "/api/shape", "shapeId"},
		{"scheduled", f.h.ScheduledArrivals, "/api/arrivals/scheduled", "stopId"},
		{"merged", f.h.MergedArrivals, "/api/arrivals?time=now", "stopId"},
		{"stream", f.h.SSEArrivals, "/api/arrivals/stream", "stopId"},
		{"search", f.h.SearchStops, "/api/stops/search?q=", "q"},
		{"nearby lat", f.h.NearbyStops, "/api/stops/nearby?lon=-93", "lat"},
		{"nearby lon", f.h.NearbyStops, "/api/stops/nearby?lat=41&lon=abc", "lon"},
		{"nearby lat range", f.h.NearbyStops, "/api/stops/nearby?lat=91&lon=0", "lat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.handler, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.Contains(t, body["error"], `"`+tt.param+`"`)
		})
	}
}

func TestStaticSummary(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.h.StaticSummary, "/api/static")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[struct {
		Routes []gtfs.Route `json:"routes"`
		Stops  []gtfs.Stop  `json:"stops"`
		Trips  []gtfs.Trip  `json:"trips"`
	}](t, rec)
	assert.Len(t, body.Routes, 1)
	assert.Len(t, body.Stops, 3)
	require.Len(t, body.Trips, 1)
	assert.Equal(t, "Downtown", body.Trips[0].Headsign)
}

func TestShape(t *testing.T) {
	f := newFixture(t)

	pts := decode[[]arrivals.LatLon](t, serve(f.h.Shape, "/api/shape?shapeId=SH1"))
	assert.Equal(t, []arrivals.LatLon{{Lat: 41.0, Lon: -93.0}, {Lat: 41.001, Lon: -93.0}}, pts)

	rec := serve(f.h.Shape, "/api/shape?shapeId=nope")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestVehicles(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.h.Vehicles, "/api/vehicles")
	assert.JSONEq(t, "[]", rec.Body.String())

	f.rt.SetVehicles(&realtime.VehicleSnapshot{
		Generation: 1,
		Vehicles:   []realtime.Vehicle{{ID: "V1", TripID: "T1", Lat: 41, Lon: -93}},
	})
	got := decode[[]realtime.Vehicle](t, serve(f.h.Vehicles, "/api/vehicles"))
	require.Len(t, got, 1)
	assert.Equal(t, "V1", got[0].ID)
}

func TestScheduledArrivals(t *testing.T) {
	f := newFixture(t)
	got := decode[[]arrivals.Arrival](t, serve(f.h.ScheduledArrivals, "/api/arrivals/scheduled?stopId=S1"))
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].TripID)
	assert.Equal(t, "08:00", got[0].Time)
	assert.Equal(t, arrivals.SourceScheduled, got[0].Source)
	assert.Equal(t, "Main Street", got[0].RouteLongName)

	rec := serve(f.h.ScheduledArrivals, "/api/arrivals/scheduled?stopId=unknown")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMergedArrivals(t *testing.T) {
	f := newFixture(t)
	f.rt.SetTripUpdates(&realtime.TripUpdateSnapshot{
		Generation: 1,
		Updates: []realtime.TripUpdate{{
			TripID: "T1",
			StopTimes: []realtime.StopTimePrediction{
				{StopID: "S1", Arrival: monday0730.Add(35 * time.Minute)},
			},
		}},
	})

	got := decode[[]arrivals.Arrival](t, serve(f.h.MergedArrivals, "/api/arrivals?stopId=S1"))
	require.Len(t, got, 1)
	assert.Equal(t, "08:05", got[0].Time)
	assert.Equal(t, arrivals.SourceRealtime, got[0].Source)

	// A week later is outside the realtime window: schedule only.
	got = decode[[]arrivals.Arrival](t, serve(f.h.MergedArrivals, "/api/arrivals?stopId=S1&time=2024-03-11T07:00"))
	require.Len(t, got, 1)
	assert.Equal(t, "08:00", got[0].Time)
	assert.Equal(t, arrivals.SourceScheduled, got[0].Source)

	// Tuesday has no service.
	rec := serve(f.h.MergedArrivals, "/api/arrivals?stopId=S1&time=2024-03-12T07:00:00Z")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestParseRequestTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, chicago)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"", now},
		{"garbage", now},
		{"-5", now},
		{"2024-03-05T09:15:00Z", time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)},
		{"2024-03-05T09:15:30", time.Date(2024, 3, 5, 9, 15, 30, 0, chicago)},
		{"2024-03-05T09:15", time.Date(2024, 3, 5, 9, 15, 0, 0, chicago)},
		{"2024-03-05 09:15", time.Date(2024, 3, 5, 9, 15, 0, 0, chicago)},
		{"1709630100", time.Unix(1709630100, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseRequestTime(tt.in, chicago, now)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestNearbyStops(t *testing.T) {
	f := newFixture(t)

	got := decode[[]NearbyStop](t, serve(f.h.NearbyStops, "/api/stops/nearby?lat=41.0&lon=-93.0"))
	require.Len(t, got, 2)
	assert.Equal(t, "S1", got[0].ID)
	assert.InDelta(t, 0, got[0].DistanceMeters, 0.01)
	assert.Equal(t, "S2", got[1].ID)
	assert.InDelta(t, 222, got[1].DistanceMeters, 2)

	got = decode[[]NearbyStop](t, serve(f.h.NearbyStops, "/api/stops/nearby?lat=41.0&lon=-93.0&radius=100"))
	require.Len(t, got, 1)
	assert.Equal(t, "S1", got[0].ID)

	rec := serve(f.h.NearbyStops, "/api/stops/nearby?lat=0&lon=0")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSearchStops(t *testing.T) {
	f := newFixture(t)
	got := decode[[]NearbyStop](t, serve(f.h.SearchStops, "/api/stops/search?q=MAIN"))
	require.Len(t, got, 2)
	assert.Equal(t, "First & Main", got[0].Name)
	assert.Equal(t, "Second & Main", got[1].Name)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.h.Healthz, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","vehicles":0,"tripUpdates":0}`, rec.Body.String())

	fetched := time.Date(2024, 3, 4, 7, 29, 55, 0, time.UTC)
	f.rt.SetVehicles(&realtime.VehicleSnapshot{Generation: 1, FetchedAt: fetched, Vehicles: make([]realtime.Vehicle, 3)})
	body := decode[healthResponse](t, serve(f.h.Healthz, "/healthz"))
	assert.Equal(t, 3, body.Vehicles)
	assert.True(t, fetched.Equal(body.VehiclesUpdated))
	assert.True(t, body.TripUpdatesUpdated.IsZero())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.h.Status, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<li>Stops: 3</li>")
	assert.Contains(t, rec.Body.String(), "vehicle_positions")
}

func TestSSEArrivals(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/arrivals/stream?stopId=S1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.h.SSEArrivals(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event: arrivals\ndata: "), body)

	data := strings.TrimSuffix(strings.TrimPrefix(body, "event: arrivals\ndata: "), "\n\n")
	var got []arrivals.Arrival
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].TripID)
}
