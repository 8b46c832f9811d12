package entity

import "github.com/joseph-ayodele/referral-intake/constants"

// PatientFields holds the identity fields proposed by structured extraction.
type PatientFields struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DateOfBirth *string `json:"dateOfBirth"` // YYYY-MM-DD
	Phone       *string `json:"phone"`
	Gender      *string `json:"gender"`
}

// ReferralFields holds referral metadata proposed by structured extraction.
type ReferralFields struct {
	ReferringPhysician *string `json:"referringPhysician"`
	ReferringFacility  *string `json:"referringFacility"`
	Reason             *string `json:"reason"`
}

// ExtractedData is the persisted extraction payload (ocr_results.extracted_data).
type ExtractedData struct {
	Patient     PatientFields  `json:"patient"`
	Referral    ReferralFields `json:"referral"`
	Confidence  float64        `json:"confidence"`
	Analysis    string         `json:"analysis"`
	RawResponse string         `json:"rawResponse,omitempty"`
}

// ExtractedField is a single non-null field of an ExtractedData.
type ExtractedField struct {
	Name  constants.FieldName
	Value string
}

// Fields returns the non-null fields in vocabulary order.
func (d ExtractedData) Fields() []ExtractedField {
	values := map[constants.FieldName]*string{
		constants.FieldFirstName:          d.Patient.FirstName,
		constants.FieldLastName:           d.Patient.LastName,
		constants.FieldDateOfBirth:        d.Patient.DateOfBirth,
		constants.FieldPhone:              d.Patient.Phone,
		constants.FieldGender:             d.Patient.Gender,
		constants.FieldReferringPhysician: d.Referral.ReferringPhysician,
		constants.FieldReferringFacility:  d.Referral.ReferringFacility,
		constants.FieldReasonForReferral:  d.Referral.Reason,
	}
	out := make([]ExtractedField, 0, len(values))
	for _, name := range constants.FieldNames {
		if v := values[name]; v != nil {
			out = append(out, ExtractedField{Name: name, Value: *v})
		}
	}
	return out
}

// PatientInput builds a directory create request from the identity fields.
func (d ExtractedData) PatientInput() PatientInput {
	return PatientInput{
		FirstName:   d.Patient.FirstName,
		LastName:    d.Patient.LastName,
		DateOfBirth: d.Patient.DateOfBirth,
		Phone:       d.Patient.Phone,
		Gender:      d.Patient.Gender,
	}
}
