package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/internal/intake"
)

// Enqueuer accepts stored files for background processing.
type Enqueuer interface {
	EnqueueScan(ctx context.Context, in intake.UploadInput) (*intake.Enqueued, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath  string
	ScanID      uuid.UUID
	OcrResultID uuid.UUID
	Duplicate   bool
	ContentHash string
	MimeType    string
	Err         string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Enqueued   uint32
	Duplicates uint32
	Failed     uint32
}
