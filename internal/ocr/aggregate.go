package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/joseph-ayodele/referral-intake/internal/common"
)

// PageBreak separates page texts in aggregated output.
const PageBreak = "\n\f\n"

var ErrNoPages = errors.New("no pages produced")

// Document is the aggregated recognition output. Confidence is 0..1.
type Document struct {
	Text       string
	Confidence float64
	Pages      int
}

// RecognizePages runs r over pages in order and stops at the first failure,
// tagging it with the 1-based page number.
func RecognizePages(ctx context.Context, r Recognizer, pages []Page) ([]PageText, error) {
	out := make([]PageText, 0, len(pages))
	for i, p := range pages {
		pt, err := r.Recognize(ctx, p.Image)
		if err != nil {
			var re *common.RecognitionError
			if errors.As(err, &re) {
				if re.Page == 0 {
					re.Page = i + 1
				}
				return nil, re
			}
			return nil, &common.RecognitionError{Page: i + 1, Err: err}
		}
		out = append(out, pt)
	}
	return out, nil
}

// Aggregate joins page texts with PageBreak and averages their confidences.
func Aggregate(pages []PageText) (Document, error) {
	if len(pages) == 0 {
		return Document{}, ErrNoPages
	}
	texts := make([]string, len(pages))
	var sum float64
	for i, p := range pages {
		texts[i] = p.Text
		sum += p.Confidence
	}
	avg := sum / float64(len(pages)) / 100
	if avg < 0 {
		avg = 0
	}
	if avg > 1 {
		avg = 1
	}
	return Document{
		Text:       strings.Join(texts, PageBreak),
		Confidence: avg,
		Pages:      len(pages),
	}, nil
}
