package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
	"github.com/joseph-ayodele/referral-intake/internal/repository"
)

type stubPages struct {
	n   int
	err error
}

func (s stubPages) Normalize(_ context.Context, _, _ string) ([]ocr.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	pages := make([]ocr.Page, s.n)
	for i := range pages {
		pages[i] = ocr.Page{Number: i + 1, Image: []byte{byte(i + 1)}}
	}
	return pages, nil
}

// stubEngine answers by page image byte (1-based page number).
type stubEngine struct {
	pages  map[byte]ocr.PageText
	fail   map[byte]error
	panic  bool
	onCall func()
}

func (s *stubEngine) Recognize(_ context.Context, img []byte) (ocr.PageText, error) {
	if s.onCall != nil {
		s.onCall()
	}
	if s.panic {
		panic("engine exploded")
	}
	if err := s.fail[img[0]]; err != nil {
		return ocr.PageText{}, err
	}
	return s.pages[img[0]], nil
}

type stubBackend struct{ resp string }

func (s stubBackend) Name() string { return "stub" }

func (s stubBackend) Complete(context.Context, string, string) (string, error) {
	return s.resp, nil
}

const dobOnly = "```json\n" + `{"patient": {"firstName": null, "lastName": null, "dateOfBirth": "1980-01-01", "phone": null, "gender": null},
 "referral": {"referringPhysician": null, "referringFacility": null, "reason": null},
 "confidence": 0.6, "analysis": "date of birth only"}` + "\n```"

func letterEngine() *stubEngine {
	return &stubEngine{pages: map[byte]ocr.PageText{
		1: {Text: "Dear Dr. Smith, I am referring...", Confidence: 92},
		2: {Text: "patient DOB 1980-01-01", Confidence: 88},
	}}
}

type harness struct {
	results  repository.OcrResultRepository
	mappings repository.FieldMappingRepository
	scans    repository.ScanRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "pipeline.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return &harness{
		results:  repository.NewOcrResultRepository(db, nil),
		mappings: repository.NewFieldMappingRepository(db, nil),
		scans:    repository.NewScanRepository(db, nil),
	}
}

func (h *harness) enqueue(t *testing.T) uuid.UUID {
	t.Helper()
	_, res, err := h.scans.CreateWithResult(context.Background(), repository.NewScan{
		UploaderID:       "u1",
		StoredFilename:   "/scans/letter.pdf",
		OriginalFilename: "letter.pdf",
		MimeType:         constants.MimePDF,
		SizeBytes:        10,
	})
	require.NoError(t, err)
	return res.ID
}

func (h *harness) processor(t *testing.T, pages ocr.PageSource, engine ocr.Recognizer, backend llm.Completer) *Processor {
	t.Helper()
	ex, err := llm.NewExtractor(backend, nil)
	require.NoError(t, err)
	return NewProcessor(NewAnalyzer(pages, engine, ex, nil), h.scans, h.results, nil)
}

func (h *harness) result(t *testing.T, id uuid.UUID) *entity.OcrResult {
	t.Helper()
	r, err := h.results.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestProcessTwoPageReferral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t)

	p := h.processor(t, stubPages{n: 2}, letterEngine(), stubBackend{resp: dobOnly})
	require.NoError(t, p.Process(ctx, id))

	r := h.result(t, id)
	assert.Equal(t, constants.ProcessingCompleted, r.ProcessingStatus)
	assert.NotNil(t, r.ProcessedAt)
	assert.Nil(t, r.ErrorMessage)
	assert.InDelta(t, 0.90, *r.Confidence, 1e-9)
	assert.Equal(t, constants.DocumentReferral, *r.DocumentType)
	assert.Equal(t, "Dear Dr. Smith, I am referring..."+ocr.PageBreak+"patient DOB 1980-01-01", *r.RawText)
	require.NotNil(t, r.ExtractedData)
	assert.Nil(t, r.ExtractedData.Patient.LastName)
	assert.InDelta(t, 0.6, r.ExtractedData.Confidence, 1e-9)
	assert.Equal(t, constants.ResolutionPending, r.ResolutionStatus)

	ms, err := h.mappings.ListByResult(ctx, id)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, constants.FieldDateOfBirth, ms[0].FieldName)
	assert.Equal(t, "1980-01-01", ms[0].ExtractedValue)
	assert.Equal(t, constants.MappingPending, ms[0].Status)
	assert.InDelta(t, 0.6, *ms[0].Confidence, 1e-9)
}

func TestProcessCompletesWhenBackendUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t)
	before := testutil.ToFloat64(extractionOutcomes.WithLabelValues(string(llm.OutcomeUnavailable)))

	p := h.processor(t, stubPages{n: 2}, letterEngine(), nil)
	require.NoError(t, p.Process(ctx, id))

	r := h.result(t, id)
	assert.Equal(t, constants.ProcessingCompleted, r.ProcessingStatus)
	require.NotNil(t, r.RawText)
	assert.NotEmpty(t, *r.RawText)
	require.NotNil(t, r.ExtractedData)
	assert.Zero(t, r.ExtractedData.Confidence)
	assert.NotEmpty(t, r.ExtractedData.Analysis)
	assert.Empty(t, r.ExtractedData.Fields())

	ms, err := h.mappings.ListByResult(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.Equal(t, before+1, testutil.ToFloat64(extractionOutcomes.WithLabelValues(string(llm.OutcomeUnavailable))))
}

func TestProcessRecordsFailures(t *testing.T) {
	tests := []struct {
		name   string
		pages  ocr.PageSource
		engine *stubEngine
		want   string
	}{
		{
			name:   "conversion",
			pages:  stubPages{err: &common.ConversionError{Op: "rasterize", Err: errors.New("exit status 1")}},
			engine: letterEngine(),
			want:   "could not convert document",
		},
		{
			name:  "recognition on second page",
			pages: stubPages{n: 2},
			engine: &stubEngine{
				pages: letterEngine().pages,
				fail:  map[byte]error{2: errors.New("tesseract crashed")},
			},
			want: "page 2",
		},
		{
			name:   "no pages",
			pages:  stubPages{n: 0},
			engine: letterEngine(),
			want:   "no pages produced",
		},
		{
			name:   "panic",
			pages:  stubPages{n: 1},
			engine: &stubEngine{panic: true},
			want:   "internal error: engine exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.enqueue(t)
			before := testutil.ToFloat64(scansProcessedTotal.WithLabelValues("failed"))

			p := h.processor(t, tt.pages, tt.engine, stubBackend{resp: dobOnly})
			require.NoError(t, p.Process(context.Background(), id), "recorded failures are handled")

			r := h.result(t, id)
			assert.Equal(t, constants.ProcessingFailed, r.ProcessingStatus)
			require.NotNil(t, r.ErrorMessage)
			assert.True(t, strings.Contains(*r.ErrorMessage, tt.want), *r.ErrorMessage)
			assert.NotNil(t, r.ProcessedAt)
			assert.Nil(t, r.RawText)
			assert.Nil(t, r.Confidence)
			assert.Nil(t, r.DocumentType)
			assert.Equal(t, before+1, testutil.ToFloat64(scansProcessedTotal.WithLabelValues("failed")))
		})
	}
}

func TestProcessRecordsOutcomeAfterCancellation(t *testing.T) {
	h := newHarness(t)
	id := h.enqueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := letterEngine()
	engine.onCall = cancel
	engine.fail = map[byte]error{1: context.Canceled}
	p := h.processor(t, stubPages{n: 1}, engine, nil)

	require.NoError(t, p.Process(ctx, id))
	r := h.result(t, id)
	assert.Equal(t, constants.ProcessingFailed, r.ProcessingStatus)
	assert.NotNil(t, r.ErrorMessage)
}

func TestProcessClaimsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t)
	p := h.processor(t, stubPages{n: 2}, letterEngine(), nil)

	require.NoError(t, p.Process(ctx, id))
	assert.ErrorIs(t, p.Process(ctx, id), common.ErrInvalidState)
	assert.ErrorIs(t, p.Process(ctx, uuid.New()), common.ErrNotFound)
}

func TestAnalyzeWithoutStorage(t *testing.T) {
	ex, err := llm.NewExtractor(stubBackend{resp: dobOnly}, nil)
	require.NoError(t, err)
	a, err := NewAnalyzer(stubPages{n: 2}, letterEngine(), ex, nil).Analyze(context.Background(), "letter.pdf", constants.MimePDF)
	require.NoError(t, err)

	assert.Equal(t, 2, a.Pages)
	assert.Equal(t, constants.DocumentReferral, a.DocumentType)
	assert.Equal(t, llm.OutcomeOK, a.Outcome)
	assert.Equal(t, "1980-01-01", *a.ExtractedData.Patient.DateOfBirth)
}

func TestFailureMessage(t *testing.T) {
	panicked := fmt.Errorf("%w: %v", common.ErrInternal, "engine exploded")
	assert.ErrorIs(t, panicked, common.ErrInternal)
	assert.Equal(t, "internal error: engine exploded", failureMessage(panicked))

	assert.Equal(t, "no pages produced from document", failureMessage(fmt.Errorf("normalize: %w", ocr.ErrNoPages)))
	assert.Equal(t, "processing timed out", failureMessage(context.DeadlineExceeded))
	assert.Equal(t, "text recognition failed: recognition page 1: closed",
		failureMessage(&common.RecognitionError{Page: 1, Err: errors.New("closed")}))
}
