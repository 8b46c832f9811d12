package constants

// ProcessingStatus is the OCR pipeline state of an ocr_results row.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	ProcessingPending   ProcessingStatus = "pending"    // accepted, waiting for a worker
	ProcessingRunning   ProcessingStatus = "processing" // claimed by a worker
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Settled reports whether the pipeline has finished with this result.
func (s ProcessingStatus) Settled() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

// ResolutionStatus is the human review outcome of an ocr_results row.
// It is independent of ProcessingStatus.
type ResolutionStatus string

const (
	ResolutionPending        ResolutionStatus = "pending"
	ResolutionCreatedPatient ResolutionStatus = "created_patient"
	ResolutionAddedToPatient ResolutionStatus = "added_to_patient"
	ResolutionSkipped        ResolutionStatus = "skipped"
)

// Terminal reports whether no further resolution transition is allowed.
func (s ResolutionStatus) Terminal() bool {
	return s != ResolutionPending
}

// MappingStatus is the review state of a single ocr_field_mappings row.
type MappingStatus string

const (
	MappingPending  MappingStatus = "pending"
	MappingApplied  MappingStatus = "applied"
	MappingRejected MappingStatus = "rejected"
)
