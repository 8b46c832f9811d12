// Package classify labels aggregated OCR text with a document type using
// fixed keyword signals.
package classify

import (
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// keywordSet pairs a document type with the lower-case phrases that signal it.
type keywordSet struct {
	docType  constants.DocumentType
	keywords []string
}

// Checked in order; the first set with any match wins.
var rules = []keywordSet{
	{
		docType: constants.DocumentReferral,
		keywords: []string{
			"referral",
			"referring",
			"referred by",
			"referred to",
			"reason for consultation",
			"consultation request",
			"please see this patient",
		},
	},
	{
		docType: constants.DocumentLabResult,
		keywords: []string{
			"specimen",
			"reference range",
			"lab result",
			"laboratory report",
			"collected on",
			"test results",
			"abnormal flag",
		},
	},
	{
		docType: constants.DocumentIntakeForm,
		keywords: []string{
			"intake form",
			"patient intake",
			"new patient registration",
			"patient information form",
			"emergency contact",
			"insurance information",
			"medical history questionnaire",
		},
	},
}

// Classify returns the document type for text. It never fails.
func Classify(text string) constants.DocumentType {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.docType
			}
		}
	}
	return constants.DocumentUnknown
}
