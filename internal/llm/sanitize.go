package llm

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	reFence   = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\s*```\\s*$")
	rePhone   = regexp.MustCompile(`[^\d+]`)
	errNoJSON = errors.New("no JSON object in response")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the outermost {...} span of s after fence removal.
// Models sometimes wrap the object in a sentence.
func ExtractJSONObject(s string) ([]byte, error) {
	s = StripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	return []byte(s[start : end+1]), nil
}

// dobLayouts are tried in order; US month-first wins over day-first for ambiguous input.
var dobLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// NormalizeDate converts a date of birth to YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.After(time.Now()) || t.Year() < 1880 {
				return "", false
			}
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// NormalizeGender maps free-form gender values onto the closed vocabulary.
func NormalizeGender(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "man":
		return "male"
	case "f", "female", "woman":
		return "female"
	case "other", "non-binary", "nonbinary", "x":
		return "other"
	default:
		return "unknown"
	}
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(s string) string {
	s = rePhone.ReplaceAllString(strings.TrimSpace(s), "")
	lead := strings.HasPrefix(s, "+")
	s = strings.ReplaceAll(s, "+", "")
	if lead {
		s = "+" + s
	}
	return s
}

// cleanString turns blank or placeholder strings into nil.
func cleanString(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	switch strings.ToLower(v) {
	case "", "null", "n/a", "na", "none", "unknown", "-":
		return nil
	}
	return &v
}
