package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"daangn-crawler/models"
)

// utf8BOM lets spreadsheet tools detect the encoding of Korean text.
const utf8BOM = "\uFEFF"

// SnapshotPath returns the timestamped CSV path for a run started at now.
func SnapshotPath(dir string, now time.Time) string {
	return filepath.Join(dir, now.Format("2006-01-02-150405")+".csv")
}

// CSVWriter writes finalized records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

var _ RecordWriter = (*CSVWriter)(nil)

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the BOM and header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	if _, err := f.WriteString(utf8BOM); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

// Path returns the file being written.
func (c *CSVWriter) Path() string { return c.path }

// Write appends one row per record.
func (c *CSVWriter) Write(_ context.Context, _ string, records []models.MergedRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range records {
		if err := c.writer.Write(recordRow(&records[i])); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// recordRow renders a record in Columns order.
func recordRow(r *models.MergedRecord) []string {
	return []string{
		r.Title,
		r.Price,
		r.Location,
		r.Time,
		string(r.Status),
		r.CategoryText(),
		r.SellerNickname,
		r.Description,
		strconv.Itoa(r.ImageCount),
		strconv.Itoa(r.ChatCount),
		strconv.Itoa(r.InterestCount),
		strconv.Itoa(r.ViewCount),
		formatTemperature(r.MannerTemperature),
		r.URL,
	}
}

func formatTemperature(t float64) string {
	if t == 0 {
		return ""
	}
	return strconv.FormatFloat(t, 'f', 1, 64)
}
