package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"daangn-crawler/models"
	"daangn-crawler/services"
)

const snapshotColumnCount = 18

// snapshotTable holds the SQL shared by the Postgres and SQLite mirrors. The
// listing_snapshot table always holds exactly the latest run.
type snapshotTable struct {
	db          *sql.DB
	placeholder func(n int) string
}

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

// Replace clears the table and inserts records in one transaction, so a
// failed write leaves the previous snapshot in place.
func (t *snapshotTable) Replace(ctx context.Context, runID string, records []models.MergedRecord) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listing_snapshot"); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	capturedAt := time.Now().UTC()
	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := t.insertBatch(ctx, tx, runID, capturedAt, i, records[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *snapshotTable) insertBatch(ctx context.Context, tx *sql.Tx, runID string, capturedAt time.Time, offset int, batch []models.MergedRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*snapshotColumnCount)

	for idx := range batch {
		r := &batch[idx]
		base := idx * snapshotColumnCount
		ph := make([]string, snapshotColumnCount)
		for j := range ph {
			ph[j] = t.placeholder(base + j + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		var priceWon sql.NullInt64
		if n, ok := services.ParsePrice(r.Price); ok {
			priceWon = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		var category sql.NullString
		if r.Category != nil {
			category = sql.NullString{String: *r.Category, Valid: true}
		}

		valueArgs = append(valueArgs,
			runID, offset+idx, r.URL, r.Title, r.Price, priceWon, r.Location, r.Time,
			string(r.Status), category, r.SellerNickname, r.Description, r.ImageCount,
			r.ChatCount, r.InterestCount, r.ViewCount, r.MannerTemperature, capturedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO listing_snapshot (run_id, position, url, title, price, price_won, location, listed_time,
			status, category, seller_nickname, description, image_count,
			chat_count, interest_count, view_count, manner_temperature, captured_at)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("insert batch at %d: %w", offset, err)
	}
	return nil
}

// FetchAll reads the snapshot back in output order.
func (t *snapshotTable) FetchAll(ctx context.Context) ([]models.MergedRecord, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT url, title, price, location, listed_time, status, category, seller_nickname,
			description, image_count, chat_count, interest_count, view_count, manner_temperature
		FROM listing_snapshot
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}
	defer rows.Close()

	var out []models.MergedRecord
	for rows.Next() {
		var r models.MergedRecord
		var status string
		var category sql.NullString
		if err := rows.Scan(
			&r.URL, &r.Title, &r.Price, &r.Location, &r.Time, &status, &category,
			&r.SellerNickname, &r.Description, &r.ImageCount, &r.ChatCount,
			&r.InterestCount, &r.ViewCount, &r.MannerTemperature,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Status = models.ListingStatus(status)
		if category.Valid {
			c := category.String
			r.Category = &c
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunID returns the run that produced the current snapshot, or "" when empty.
func (t *snapshotTable) RunID(ctx context.Context) (string, error) {
	var id string
	err := t.db.QueryRowContext(ctx, "SELECT run_id FROM listing_snapshot LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// VerifySnapshot reads the mirror back and checks it holds want records
// from runID.
func VerifySnapshot(ctx context.Context, m SnapshotMirror, runID string, want int) error {
	got, err := m.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(got) != want {
		return fmt.Errorf("snapshot holds %d records, want %d", len(got), want)
	}
	if want == 0 {
		return nil
	}
	id, err := m.RunID(ctx)
	if err != nil {
		return err
	}
	if id != runID {
		return fmt.Errorf("snapshot belongs to run %q, want %q", id, runID)
	}
	return nil
}
