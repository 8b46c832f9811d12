package llm

import "strings"

// maxPromptChars bounds the OCR text sent to the backend.
const maxPromptChars = 12000

// BuildSystemPrompt is the fixed instruction template for referral extraction.
func BuildSystemPrompt() string {
	parts := []string{
		"You extract structured data from OCR text of scanned medical referral letters.",
		"Return ONLY a single JSON object that matches the provided JSON Schema. No prose, no markdown.",
		"Use null for any field that is not clearly present in the text. Never guess.",
		"patient.dateOfBirth must be an ISO-8601 calendar date (YYYY-MM-DD).",
		"patient.gender is one of: male, female, other, unknown.",
		"patient.phone keeps the digits and a leading + if present.",
		"referral.referringPhysician is the clinician who wrote or signed the referral, not the recipient.",
		"referral.reason is a short summary of why the patient is being referred.",
		"confidence is your overall certainty from 0 to 1.",
		"analysis is one or two sentences describing what you found and anything ambiguous.",
		"OCR text can contain recognition errors; page breaks are marked with form feed characters.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the OCR text with the schema.
func BuildUserPrompt(rawText string) string {
	text := strings.TrimSpace(rawText)
	truncated := false
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
		truncated = true
	}

	var b strings.Builder
	b.WriteString("JSON Schema:\n")
	b.WriteString(mustJSON(BuildExtractedDataSchema()))
	b.WriteString("\n\nOCR text")
	if truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString(":\n")
	b.WriteString(text)
	return b.String()
}
