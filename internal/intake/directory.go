package intake

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// PatientDirectory is the system of record for patients. The intake pipeline
// only reads from it to validate targets and asks it to create new patients.
type PatientDirectory interface {
	// FindByID returns nil, nil when no such patient exists.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Patient, error)
	Create(ctx context.Context, in entity.PatientInput) (*entity.Patient, error)
}
