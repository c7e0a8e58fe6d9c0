package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

// PostgresWriter mirrors the latest run's records into PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
	snapshotTable
}

var _ SnapshotMirror = (*PostgresWriter)(nil)

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, snapshotTable: snapshotTable{db: db, placeholder: dollarPlaceholder}}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listing_snapshot (
			id                 SERIAL PRIMARY KEY,
			run_id             UUID         NOT NULL,
			position           INTEGER      NOT NULL,
			url                TEXT         NOT NULL,
			title              TEXT         NOT NULL,
			price              TEXT         NOT NULL DEFAULT '',
			price_won          BIGINT,
			location           TEXT         NOT NULL DEFAULT '',
			listed_time        TEXT         NOT NULL DEFAULT '',
			status             VARCHAR(20)  NOT NULL,
			category           TEXT,
			seller_nickname    TEXT         NOT NULL DEFAULT '',
			description        TEXT         NOT NULL DEFAULT '',
			image_count        INTEGER      NOT NULL DEFAULT 0,
			chat_count         INTEGER      NOT NULL DEFAULT 0,
			interest_count     INTEGER      NOT NULL DEFAULT 0,
			view_count         INTEGER      NOT NULL DEFAULT 0,
			manner_temperature NUMERIC(4,1) NOT NULL DEFAULT 0,
			captured_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listing_snapshot_category  ON listing_snapshot(category);
		CREATE INDEX IF NOT EXISTS idx_listing_snapshot_price_won ON listing_snapshot(price_won);
	`)
	return err
}

// Write replaces the stored snapshot with records.
func (pw *PostgresWriter) Write(ctx context.Context, runID string, records []models.MergedRecord) error {
	if err := pw.Replace(ctx, runID, records); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
