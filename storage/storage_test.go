package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daangn-crawler/models"
)

func strPtr(s string) *string { return &s }

func sampleRecords() []models.MergedRecord {
	return []models.MergedRecord{
		{
			URL: "https://www.daangn.com/kr/buy-sell/a/", Title: "아이폰, 15 \"프로\"", Price: "1,050,000원",
			Location: "역삼동", Time: "3분 전", Status: models.StatusSelling, Category: strPtr("디지털기기"),
			SellerNickname: "당근이", Description: "첫 줄\n둘째 줄", ImageCount: 3, ChatCount: 1,
			InterestCount: 4, ViewCount: 120, MannerTemperature: 38.2,
		},
		{
			URL: "https://www.daangn.com/kr/buy-sell/b/", Title: "상품권", Price: "나눔",
			Status: models.StatusCompleted,
		},
	}
}

func TestSnapshotPath(t *testing.T) {
	now := time.Date(2026, 3, 7, 9, 5, 2, 0, time.Local)
	assert.Equal(t, filepath.Join("results", "2026-03-07-090502.csv"), SnapshotPath("results", now))
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())

	require.NoError(t, w.Write(context.Background(), "run-1", sampleRecords()))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), utf8BOM), "file starts with a BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Columns, rows[0])
	assert.Len(t, Columns, 14)
	assert.Equal(t, []string{
		"아이폰, 15 \"프로\"", "1,050,000원", "역삼동", "3분 전", "selling", "디지털기기",
		"당근이", "첫 줄\n둘째 줄", "3", "1", "4", "120", "38.2", "https://www.daangn.com/kr/buy-sell/a/",
	}, rows[1])
	assert.Equal(t, "", rows[2][5], "unresolved category is blank")
	assert.Equal(t, "", rows[2][12], "unknown temperature is blank")
}

func TestCSVWriter_EmptyRunStillHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), "run-1", nil))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCSVWriter_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := NewCSVWriter(filepath.Join(blocker, "out.csv"))
	assert.Error(t, err)
}

func TestSQLiteWriter_ReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "db", "snapshot.db"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(ctx, "11111111-1111-1111-1111-111111111111", sampleRecords()))

	got, err := w.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sampleRecords()[0], got[0])
	assert.Nil(t, got[1].Category)

	next := []models.MergedRecord{{URL: "https://www.daangn.com/kr/buy-sell/c/", Title: "새 글", Status: models.StatusReserved}}
	require.NoError(t, w.Write(ctx, "22222222-2222-2222-2222-222222222222", next))

	got, err = w.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "새 글", got[0].Title)

	id, err := w.RunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", id)
}

func TestSQLiteWriter_EmptyRunClears(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(ctx, "run-1", sampleRecords()))
	require.NoError(t, w.Write(ctx, "run-2", nil))

	got, err := w.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	id, err := w.RunID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSQLiteWriter_ManyBatches(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	defer w.Close()

	records := make([]models.MergedRecord, 123)
	for i := range records {
		records[i] = models.MergedRecord{URL: "u" + string(rune('a'+i%26)), Title: "t", Status: models.StatusSelling, ViewCount: i}
	}
	require.NoError(t, w.Write(ctx, "run-1", records))

	got, err := w.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 123)
	for i, r := range got {
		assert.Equal(t, i, r.ViewCount, "rows come back in output order")
	}
}

func TestVerifySnapshot(t *testing.T) {
	ctx := context.Background()
	w, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(ctx, "run-1", sampleRecords()))
	assert.NoError(t, VerifySnapshot(ctx, w, "run-1", 2))
	assert.Error(t, VerifySnapshot(ctx, w, "run-1", 3), "count mismatch")
	assert.Error(t, VerifySnapshot(ctx, w, "run-2", 2), "stale run")

	require.NoError(t, w.Write(ctx, "run-3", nil))
	assert.NoError(t, VerifySnapshot(ctx, w, "run-3", 0))
}
