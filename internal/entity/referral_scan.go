package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReferralScan is one uploaded physical document. Rows are immutable once created.
type ReferralScan struct {
	ID               uuid.UUID `json:"id"`
	UploaderID       string    `json:"uploader_id"`
	StoredFilename   string    `json:"stored_filename"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentHash      *string   `json:"content_hash,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
