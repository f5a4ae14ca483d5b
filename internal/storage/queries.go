package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// StopRow is a stop as stored in the search index.
type StopRow struct {
	StopID string
	Name   string
	Lat    float64
	Lon    float64
}

// ReplaceStops clears the index and loads stops in a single transaction,
// then rebuilds the R-Tree.
func (db *DB) ReplaceStops(ctx context.Context, stops []StopRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range []string{"stops", "stops_rtree"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stops: %w", err)
	}
	defer stmt.Close()

	for _, s := range stops {
		if _, err := stmt.ExecContext(ctx, s.StopID, s.Name, s.Lat, s.Lon); err != nil {
			return fmt.Errorf("insert stop %s: %w", s.StopID, err)
		}
	}

	if err := rebuildRTree(ctx, tx); err != nil {
		return fmt.Errorf("rebuild rtree: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rebuildRTree repopulates the R-Tree index from the stops table.
func rebuildRTree(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stops_rtree(id, min_lat, max_lat, min_lon, max_lon)
		 SELECT rowid, stop_lat, stop_lat, stop_lon, stop_lon FROM stops`); err != nil {
		return fmt.Errorf("populate rtree: %w", err)
	}
	return nil
}

// NearbyStops finds stops within a bounding box using the R-Tree index.
// The caller should refine distances with Haversine and re-sort.
func (db *DB) NearbyStops(ctx context.Context, lat, lon, radiusDeg float64, limit int) ([]StopRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.stop_id, s.stop_name, s.stop_lat, s.stop_lon
		FROM stops_rtree AS r
		JOIN stops AS s ON s.rowid = r.id
		WHERE r.min_lat >= ? AND r.max_lat <= ?
		  AND r.min_lon >= ? AND r.max_lon <= ?
		ORDER BY (s.stop_lat - ?)*(s.stop_lat - ?) + (s.stop_lon - ?)*(s.stop_lon - ?)
		LIMIT ?`,
		lat-radiusDeg, lat+radiusDeg,
		lon-radiusDeg, lon+radiusDeg,
		lat, lat, lon, lon,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby stops query: %w", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

// SearchStops returns stops whose name contains query, ignoring case.
func (db *DB) SearchStops(ctx context.Context, query string, limit int) ([]StopRow, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	rows, err := db.QueryContext(ctx, `
		SELECT stop_id, stop_name, stop_lat, stop_lon
		FROM stops
		WHERE LOWER(stop_name) LIKE '%' || ? || '%'
		ORDER BY stop_name, stop_id
		LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search stops: %w", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

// CountStops returns the number of indexed stops.
func (db *DB) CountStops(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stops: %w", err)
	}
	return n, nil
}

func scanStops(rows *sql.Rows) ([]StopRow, error) {
	var stops []StopRow
	for rows.Next() {
		var s StopRow
		if err := rows.Scan(&s.StopID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}
