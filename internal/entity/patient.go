package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// Patient is the subset of a patient record the intake pipeline reads.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	FirstName   *string   `json:"first_name,omitempty"`
	LastName    *string   `json:"last_name,omitempty"`
	DateOfBirth *string   `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Phone       *string   `json:"phone,omitempty"`
	Gender      *string   `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PatientInput is what the directory needs to create a patient.
type PatientInput struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}

// FieldValue returns the patient's current value for an extracted field, if any.
func (p *Patient) FieldValue(name constants.FieldName) *string {
	if p == nil {
		return nil
	}
	switch name {
	case constants.FieldFirstName:
		return p.FirstName
	case constants.FieldLastName:
		return p.LastName
	case constants.FieldDateOfBirth:
		return p.DateOfBirth
	case constants.FieldPhone:
		return p.Phone
	case constants.FieldGender:
		return p.Gender
	}
	return nil
}
