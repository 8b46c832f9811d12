package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// OcrResult is one recognition attempt over a ReferralScan together with its
// review resolution.
type OcrResult struct {
	ID               uuid.UUID                  `json:"id"`
	ScanID           uuid.UUID                  `json:"scan_id"`
	RawText          *string                    `json:"raw_text,omitempty"`
	Confidence       *float64                   `json:"confidence,omitempty"`
	DocumentType     *constants.DocumentType    `json:"document_type,omitempty"`
	ExtractedData    *ExtractedData             `json:"extracted_data,omitempty"`
	ProcessingStatus constants.ProcessingStatus `json:"processing_status"`
	ErrorMessage     *string                    `json:"error_message,omitempty"`
	ProcessedAt      *time.Time                 `json:"processed_at,omitempty"`
	ResolutionStatus constants.ResolutionStatus `json:"resolution_status"`
	PatientID        *uuid.UUID                 `json:"patient_id,omitempty"`
	ResolvedBy       *string                    `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time                 `json:"resolved_at,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}
