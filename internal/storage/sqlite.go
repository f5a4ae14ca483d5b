package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps an in-memory SQLite database holding the stop search index.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

var memSeq atomic.Uint64

// OpenMemory creates a private in-memory database and applies migrations.
// The contents live as long as the returned DB is open.
func OpenMemory(logger *slog.Logger) (*DB, error) {
	name := fmt.Sprintf("stops%d", memSeq.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database disappears with its last connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Debug("stop index database opened", "name", name)
	return db, nil
}
