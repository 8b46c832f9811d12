package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/classify"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
	"github.com/joseph-ayodele/referral-intake/internal/repository"
)

// Analysis is the in-memory outcome of running one file through the stages.
type Analysis struct {
	Document      ocr.Document           `json:"-"`
	RawText       string                 `json:"rawText"`
	Confidence    float64                `json:"confidence"`
	Pages         int                    `json:"pages"`
	DocumentType  constants.DocumentType `json:"documentType"`
	Extraction    llm.Extraction         `json:"-"`
	Outcome       llm.Outcome            `json:"extractionOutcome"`
	ExtractedData entity.ExtractedData   `json:"extractedData"`
}

// Analyzer runs normalize, recognize, aggregate, classify and extract for a
// local file without touching storage.
type Analyzer struct {
	pages     ocr.PageSource
	engine    ocr.Recognizer
	extractor llm.FieldExtractor
	logger    *slog.Logger
}

func NewAnalyzer(pages ocr.PageSource, engine ocr.Recognizer, extractor llm.FieldExtractor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{pages: pages, engine: engine, extractor: extractor, logger: logger}
}

// Analyze fails only on conversion or recognition errors; a degraded
// extraction is part of a successful Analysis.
func (a *Analyzer) Analyze(ctx context.Context, path, mimeType string) (*Analysis, error) {
	pages, err := a.pages.Normalize(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}
	pagesPerScan.Observe(float64(len(pages)))

	texts, err := ocr.RecognizePages(ctx, a.engine, pages)
	if err != nil {
		return nil, err
	}
	doc, err := ocr.Aggregate(texts)
	if err != nil {
		return nil, err
	}
	docType := classify.Classify(doc.Text)
	a.logger.Info("pipeline.ocr.ok", "path", path, "pages", doc.Pages, "confidence", doc.Confidence, "document_type", docType)

	ex := a.extractor.Extract(ctx, doc.Text)
	extractionOutcomes.WithLabelValues(string(ex.Outcome)).Inc()

	return &Analysis{
		Document:     doc,
		RawText:      doc.Text,
		Confidence:   doc.Confidence,
		Pages:        doc.Pages,
		DocumentType: docType,
		Extraction:   ex,
		Outcome:      ex.Outcome,

		ExtractedData: ex.Data,
	}, nil
}

// Processor drives one OcrResult from pending to completed or failed.
type Processor struct {
	analyzer *Analyzer
	scans    repository.ScanRepository
	results  repository.OcrResultRepository
	logger   *slog.Logger
}

func NewProcessor(analyzer *Analyzer, scans repository.ScanRepository, results repository.OcrResultRepository, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{analyzer: analyzer, scans: scans, results: results, logger: logger}
}

// Process claims the result, runs every stage and records the outcome.
// Conversion and recognition failures are recorded on the result and are
// not returned; the returned error covers claim and storage problems only.
func (p *Processor) Process(ctx context.Context, resultID uuid.UUID) (err error) {
	start := time.Now()
	res, err := p.results.Claim(ctx, resultID)
	if err != nil {
		p.logger.Warn("pipeline.claim.failed", "ocr_result_id", resultID, "error", err)
		return err
	}
	log := p.logger.With("ocr_result_id", resultID, "scan_id", res.ScanID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.panic", "panic", r)
			err = p.fail(ctx, log, resultID, fmt.Errorf("%w: %v", common.ErrInternal, r), start)
		}
	}()

	scan, err := p.scans.GetByID(ctx, res.ScanID)
	if err != nil {
		return p.fail(ctx, log, resultID, err, start)
	}

	a, err := p.analyzer.Analyze(ctx, scan.StoredFilename, scan.MimeType)
	if err != nil {
		return p.fail(ctx, log, resultID, err, start)
	}

	data := a.Extraction.Data
	var conf *float64
	if !a.Extraction.Degraded() {
		conf = &data.Confidence
	}
	fields := data.Fields()
	mappings := make([]repository.NewMapping, 0, len(fields))
	for _, f := range fields {
		mappings = append(mappings, repository.NewMapping{
			FieldName:      f.Name,
			ExtractedValue: f.Value,
			Confidence:     conf,
		})
	}

	// The outcome must be recorded even if the caller has given up.
	if err := p.results.Complete(context.WithoutCancel(ctx), resultID, repository.Completion{
		RawText:      a.RawText,
		Confidence:   a.Confidence,
		DocumentType: a.DocumentType,
		Data:         &data,
		Mappings:     mappings,
	}); err != nil {
		log.Error("pipeline.complete.failed", "error", err)
		return err
	}

	elapsed := time.Since(start)
	scansProcessedTotal.WithLabelValues(string(constants.ProcessingCompleted)).Inc()
	processingDuration.WithLabelValues(string(constants.ProcessingCompleted)).Observe(elapsed.Seconds())
	documentConfidence.WithLabelValues(string(a.DocumentType)).Observe(a.Confidence)
	log.Info("pipeline.completed",
		"pages", a.Pages,
		"confidence", a.Confidence,
		"document_type", a.DocumentType,
		"extraction", a.Outcome,
		"mappings", len(mappings),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// fail records cause on the result. It returns nil when the failure was
// recorded, so the task boundary treats it as handled.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error, start time.Time) error {
	msg := failureMessage(cause)
	if err := p.results.Fail(context.WithoutCancel(ctx), id, msg); err != nil {
		log.Error("pipeline.fail.record_failed", "cause", cause, "error", err)
		return errors.Join(cause, err)
	}
	elapsed := time.Since(start)
	scansProcessedTotal.WithLabelValues(string(constants.ProcessingFailed)).Inc()
	processingDuration.WithLabelValues(string(constants.ProcessingFailed)).Observe(elapsed.Seconds())
	log.Error("pipeline.failed", "error", cause, "elapsed_ms", elapsed.Milliseconds())
	return nil
}

func failureMessage(err error) string {
	var (
		ce *common.ConversionError
		re *common.RecognitionError
	)
	switch {
	case errors.As(err, &ce):
		return "could not convert document to page images: " + ce.Error()
	case errors.As(err, &re):
		return "text recognition failed: " + re.Error()
	case errors.Is(err, ocr.ErrNoPages):
		return "no pages produced from document"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	default:
		return err.Error()
	}
}
