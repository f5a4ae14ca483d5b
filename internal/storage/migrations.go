package storage

import "fmt"

// migrate creates the stop search schema.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stops (
		stop_id   TEXT PRIMARY KEY,
		stop_name TEXT NOT NULL,
		stop_lat  REAL NOT NULL,
		stop_lon  REAL NOT NULL
	)`,

	// R-Tree spatial index on stops for nearest-stop queries
	`CREATE VIRTUAL TABLE IF NOT EXISTS stops_rtree USING rtree(
		id,
		min_lat, max_lat,
		min_lon, max_lon
	)`,

	`CREATE INDEX IF NOT EXISTS idx_stops_name ON stops(stop_name COLLATE NOCASE)`,
}
