package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// FieldMapping is one proposed value for one named field of an OcrResult.
// AppliedAt and AppliedBy are set exactly when Status is applied.
type FieldMapping struct {
	ID             uuid.UUID               `json:"id"`
	OcrResultID    uuid.UUID               `json:"ocr_result_id"`
	PatientID      *uuid.UUID              `json:"patient_id,omitempty"`
	FieldName      constants.FieldName     `json:"field_name"`
	ExtractedValue string                  `json:"extracted_value"`
	CurrentValue   *string                 `json:"current_value,omitempty"`
	Confidence     *float64                `json:"confidence,omitempty"`
	Status         constants.MappingStatus `json:"status"`
	AppliedAt      *time.Time              `json:"applied_at,omitempty"`
	AppliedBy      *string                 `json:"applied_by,omitempty"`
	RejectedAt     *time.Time              `json:"rejected_at,omitempty"`
	RejectedBy     *string                 `json:"rejected_by,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}
