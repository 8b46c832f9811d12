package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/intake"
)

type staticSource struct {
	items []intake.ReviewItem
	err   error
	limit int
}

func (s *staticSource) ListReviewQueue(_ context.Context, limit int) ([]intake.ReviewItem, error) {
	s.limit = limit
	return s.items, s.err
}

func ptr[T any](v T) *T { return &v }

func TestReviewWorklistXLSX(t *testing.T) {
	id := uuid.New()
	src := &staticSource{items: []intake.ReviewItem{{
		Result: &entity.OcrResult{
			ID:               id,
			ProcessingStatus: constants.ProcessingCompleted,
			Confidence:       ptr(0.9),
			DocumentType:     ptr(constants.DocumentReferral),
			ExtractedData:    &entity.ExtractedData{Confidence: 0.6, Analysis: "date of birth only"},
			CreatedAt:        time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		Scan: &entity.ReferralScan{OriginalFilename: "letter.pdf"},
		Mappings: []*entity.FieldMapping{
			{FieldName: constants.FieldDateOfBirth, ExtractedValue: "1980-01-01", Confidence: ptr(0.6), Status: constants.MappingPending},
			{FieldName: constants.FieldPhone, ExtractedValue: "5550102233", Status: constants.MappingRejected},
		},
	}}}

	b, err := NewService(src, nil).ReviewWorklistXLSX(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, src.limit)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetQueue)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "OCR Result ID", rows[0][1])
	assert.Equal(t, "2026-03-01T09:30:00Z", rows[1][0])
	assert.Equal(t, id.String(), rows[1][1])
	assert.Equal(t, "letter.pdf", rows[1][2])
	assert.Equal(t, "referral", rows[1][3])
	assert.Equal(t, "1", rows[1][6])
	assert.Equal(t, "date of birth only", rows[1][7])
	assert.Equal(t, "completed", rows[1][8])

	mrows, err := f.GetRows(SheetMappings)
	require.NoError(t, err)
	require.Len(t, mrows, 3)
	assert.Equal(t, []string{id.String(), "dateOfBirth", "1980-01-01", "0.6", "pending"}, mrows[1])
	assert.Equal(t, "rejected", mrows[2][4])
}

func TestReviewWorklistIncludesFailedResults(t *testing.T) {
	id := uuid.New()
	src := &staticSource{items: []intake.ReviewItem{{
		Result: &entity.OcrResult{
			ID:               id,
			ProcessingStatus: constants.ProcessingFailed,
			ErrorMessage:     ptr("no pages produced from document"),
			CreatedAt:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
		Scan: &entity.ReferralScan{OriginalFilename: "blank.pdf"},
	}}}

	b, err := NewService(src, nil).ReviewWorklistXLSX(context.Background(), 0)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetQueue)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Error", rows[0][9])
	assert.Equal(t, id.String(), rows[1][1])
	assert.Equal(t, "0", rows[1][6])
	assert.Equal(t, "failed", rows[1][8])
	assert.Equal(t, "no pages produced from document", rows[1][9])

	mrows, err := f.GetRows(SheetMappings)
	require.NoError(t, err)
	assert.Len(t, mrows, 1)
}

func TestReviewWorklistEmptyAndError(t *testing.T) {
	b, err := NewService(&staticSource{}, nil).ReviewWorklistXLSX(context.Background(), 0)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	rows, err := f.GetRows(SheetQueue)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = NewService(&staticSource{err: errors.New("db down")}, nil).ReviewWorklistXLSX(context.Background(), 0)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
