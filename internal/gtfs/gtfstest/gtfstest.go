// Package gtfstest builds small schedule archives for tests.
package gtfstest

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"testing"

	"transitnow/internal/gtfs"
)

// Archive zips the given file name to contents map.
func Archive(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := io.WriteString(f, content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Build zips files and builds an index from them, failing the test on error.
func Build(t testing.TB, files map[string]string) *gtfs.Index {
	t.Helper()
	idx, err := gtfs.BuildBytes(Archive(t, files), Logger())
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

// Logger discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Minimal returns a one-route, one-stop, one-trip feed: trip T1 of route 1
// calls at stop S1 at 08:00:00 on service WD, which runs Mondays in 2024.
func Minimal() map[string]string {
	return map[string]string{
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\n" +
			"1,1,Main Street,3\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"S1,First & Main,41.0,-93.0\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id\n" +
			"1,WD,T1,Downtown,0,SH1\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"T1,08:00:00,08:00:00,S1,1\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"WD,1,0,0,0,0,0,0,20240101,20241231\n",
	}
}
