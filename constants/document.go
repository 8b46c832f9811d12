package constants

// DocumentType is the classifier label stored on ocr_results.document_type.
type DocumentType string

const (
	DocumentReferral   DocumentType = "referral"
	DocumentLabResult  DocumentType = "lab_result"
	DocumentIntakeForm DocumentType = "intake_form"
	DocumentUnknown    DocumentType = "unknown"
)

// FieldName is the vocabulary of reviewable extracted fields.
type FieldName string

const (
	FieldFirstName          FieldName = "firstName"
	FieldLastName           FieldName = "lastName"
	FieldDateOfBirth        FieldName = "dateOfBirth"
	FieldPhone              FieldName = "phone"
	FieldGender             FieldName = "gender"
	FieldReferringPhysician FieldName = "referringPhysician"
	FieldReferringFacility  FieldName = "referringFacility"
	FieldReasonForReferral  FieldName = "reasonForReferral"
)

// FieldNames lists the vocabulary in display order.
var FieldNames = []FieldName{
	FieldFirstName,
	FieldLastName,
	FieldDateOfBirth,
	FieldPhone,
	FieldGender,
	FieldReferringPhysician,
	FieldReferringFacility,
	FieldReasonForReferral,
}

// PatientField reports whether the field maps onto a patient record attribute.
func (f FieldName) PatientField() bool {
	switch f {
	case FieldFirstName, FieldLastName, FieldDateOfBirth, FieldPhone, FieldGender:
		return true
	}
	return false
}
