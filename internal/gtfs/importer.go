package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"transitnow/internal/storage"
)

// Importer copies the stops of a built Index into the search database.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Import replaces the contents of the search database with the stops of idx.
func (imp *Importer) Import(ctx context.Context, idx *Index) error {
	start := time.Now()

	stops := idx.Stops()
	rows := make([]storage.StopRow, 0, len(stops))
	for i := range stops {
		s := &stops[i]
		if !s.HasLocation() {
			continue
		}
		rows = append(rows, storage.StopRow{StopID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon})
	}
	if err := imp.db.ReplaceStops(ctx, rows); err != nil {
		return fmt.Errorf("import stops: %w", err)
	}

	imp.logger.Info("stop search index loaded",
		"duration", time.Since(start).Round(time.Millisecond),
		"stops", len(rows),
	)
	return nil
}
