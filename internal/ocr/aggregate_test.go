package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/referral-intake/internal/common"
)

func TestAggregateMeanConfidence(t *testing.T) {
	doc, err := Aggregate([]PageText{
		{Text: "one", Confidence: 80},
		{Text: "two", Confidence: 90},
		{Text: "three", Confidence: 100},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.90, doc.Confidence, 1e-9)
	assert.Equal(t, 3, doc.Pages)
	assert.Equal(t, []string{"one", "two", "three"}, strings.Split(doc.Text, PageBreak))
}

func TestAggregateTwoPageLetter(t *testing.T) {
	doc, err := Aggregate([]PageText{
		{Text: "Dear Dr. Smith, I am referring...", Confidence: 92},
		{Text: "patient DOB 1980-01-01", Confidence: 88},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.90, doc.Confidence, 1e-9)
	assert.Equal(t, "Dear Dr. Smith, I am referring..."+PageBreak+"patient DOB 1980-01-01", doc.Text)
}

func TestAggregateClampsConfidence(t *testing.T) {
	doc, err := Aggregate([]PageText{{Text: "x", Confidence: 140}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Confidence)

	doc, err = Aggregate([]PageText{{Text: "x", Confidence: -20}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.Confidence)
}

func TestAggregateNoPages(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoPages)
}

type scriptedRecognizer struct {
	results []PageText
	failOn  int // 1-based, 0 = never
	seen    [][]byte
}

func (s *scriptedRecognizer) Recognize(_ context.Context, page []byte) (PageText, error) {
	s.seen = append(s.seen, page)
	n := len(s.seen)
	if n == s.failOn {
		return PageText{}, errors.New("engine crashed")
	}
	return s.results[n-1], nil
}

func TestRecognizePagesKeepsOrder(t *testing.T) {
	rec := &scriptedRecognizer{results: []PageText{{Text: "a", Confidence: 50}, {Text: "b", Confidence: 60}}}
	pages := []Page{{Number: 1, Image: []byte("p1")}, {Number: 2, Image: []byte("p2")}}

	out, err := RecognizePages(context.Background(), rec, pages)
	require.NoError(t, err)
	assert.Equal(t, rec.results, out)
	assert.Equal(t, [][]byte{[]byte("p1"), []byte("p2")}, rec.seen)
}

func TestRecognizePagesTagsFailingPage(t *testing.T) {
	rec := &scriptedRecognizer{results: []PageText{{Text: "a"}, {Text: "b"}, {Text: "c"}}, failOn: 2}
	pages := []Page{{Number: 1}, {Number: 2}, {Number: 3}}

	_, err := RecognizePages(context.Background(), rec, pages)
	require.Error(t, err)
	var re *common.RecognitionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Page)
	assert.Len(t, rec.seen, 2, "recognition stops at the failing page")
}
