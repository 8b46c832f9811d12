package llm

import (
	"context"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// Completer is a natural-language backend: a prompt in, free-form text out.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Outcome tags an Extraction. Only OutcomeOK carries model-proposed fields.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeUnavailable Outcome = "backend_unavailable"
	OutcomeUnparseable Outcome = "unparseable"
)

// Extraction is always returned by Extract; backend failures are encoded in
// Outcome with all-null Data and zero confidence.
type Extraction struct {
	Outcome Outcome
	Data    entity.ExtractedData
}

// Degraded reports whether the backend failed to produce usable fields.
func (e Extraction) Degraded() bool {
	return e.Outcome != OutcomeOK
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	Extract(ctx context.Context, rawText string) Extraction
}
