package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"daangn-crawler/models"
)

// SQLiteWriter mirrors the latest run's records into a local SQLite file.
type SQLiteWriter struct {
	db *sql.DB
	snapshotTable
}

var _ SnapshotMirror = (*SQLiteWriter)(nil)

// NewSQLiteWriter opens (or creates) the database at path and migrates it.
func NewSQLiteWriter(ctx context.Context, path string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	sw := &SQLiteWriter{db: db, snapshotTable: snapshotTable{db: db, placeholder: questionPlaceholder}}
	if err := sw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sw, nil
}

func (sw *SQLiteWriter) migrate(ctx context.Context) error {
	_, err := sw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listing_snapshot (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id             TEXT    NOT NULL,
			position           INTEGER NOT NULL,
			url                TEXT    NOT NULL,
			title              TEXT    NOT NULL,
			price              TEXT    NOT NULL DEFAULT '',
			price_won          INTEGER,
			location           TEXT    NOT NULL DEFAULT '',
			listed_time        TEXT    NOT NULL DEFAULT '',
			status             TEXT    NOT NULL,
			category           TEXT,
			seller_nickname    TEXT    NOT NULL DEFAULT '',
			description        TEXT    NOT NULL DEFAULT '',
			image_count        INTEGER NOT NULL DEFAULT 0,
			chat_count         INTEGER NOT NULL DEFAULT 0,
			interest_count     INTEGER NOT NULL DEFAULT 0,
			view_count         INTEGER NOT NULL DEFAULT 0,
			manner_temperature REAL    NOT NULL DEFAULT 0,
			captured_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_listing_snapshot_category ON listing_snapshot(category);
	`)
	return err
}

// Write replaces the stored snapshot with records.
func (sw *SQLiteWriter) Write(ctx context.Context, runID string, records []models.MergedRecord) error {
	if err := sw.Replace(ctx, runID, records); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
