package llm

import "encoding/json"

// BuildExtractedDataSchema returns the JSON Schema the backend output must
// match. We send it in the prompt and validate against it locally.
func BuildExtractedDataSchema() map[string]any {
	patient := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"firstName":   nullableString(),
			"lastName":    nullableString(),
			"dateOfBirth": nullableString(),
			"phone":       nullableString(),
			"gender":      nullableString(),
		},
	}
	referral := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"referringPhysician": nullableString(),
			"referringFacility":  nullableString(),
			"reason":             nullableString(),
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patient":    patient,
			"referral":   referral,
			"confidence": map[string]any{"type": []string{"number", "null"}},
			"analysis":   nullableString(),
		},
		"required": []string{"patient", "referral"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
