package storage

import (
	"context"

	"daangn-crawler/models"
)

// RecordWriter is the interface any result sink must satisfy. Write receives
// the complete, finalized record set of one run.
type RecordWriter interface {
	Write(ctx context.Context, runID string, records []models.MergedRecord) error
	Close() error
}

// SnapshotMirror is a RecordWriter whose latest snapshot can be read back.
type SnapshotMirror interface {
	RecordWriter
	FetchAll(ctx context.Context) ([]models.MergedRecord, error)
	RunID(ctx context.Context) (string, error)
}

// Columns is the output column order shared by every sink.
var Columns = []string{
	"title", "price", "location", "time", "status", "category",
	"seller_nickname", "description", "image_count", "chat_count",
	"interest_count", "view_count", "manner_temperature", "url",
}
