package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/async"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/intake"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/llm/openai"
	"github.com/joseph-ayodele/referral-intake/internal/llm/vertex"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
	"github.com/joseph-ayodele/referral-intake/internal/repository"
	"github.com/joseph-ayodele/referral-intake/internal/server"
)

// analysisStack is the storage-free part of the pipeline.
type analysisStack struct {
	engine   *ocr.TesseractEngine
	analyzer *pipeline.Analyzer
	closers  []func() error
}

func buildAnalysis(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*analysisStack, error) {
	runner := ocr.NewExecRunner(logger)
	normalizer := ocr.NewNormalizer(ocr.NormalizerConfig{
		Pdftoppm: cfg.OCR.Pdftoppm,
		DPI:      cfg.OCR.DPI,
		MaxPages: cfg.OCR.MaxPages,
		TempDir:  cfg.OCR.TempDir,
	}, logger, ocr.WithRunner(runner))
	engine := ocr.NewTesseractEngine(ocr.EngineConfig{
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		TempDir:     cfg.OCR.TempDir,
	}, runner, logger)

	st := &analysisStack{engine: engine, closers: []func() error{engine.Close}}

	var backend llm.Completer
	switch cfg.LLM.Provider {
	case "openai":
		backend = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	case "vertex":
		vc, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:   cfg.LLM.VertexProject,
			Location:    cfg.LLM.VertexLocation,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			_ = st.close()
			return nil, fmt.Errorf("vertex client: %w", err)
		}
		backend = vc
		st.closers = append(st.closers, vc.Close)
	}

	extractor, err := llm.NewExtractor(backend, logger)
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("extractor: %w", err)
	}
	if backend == nil {
		logger.Warn("no extraction backend configured; results will carry no proposed fields")
	}

	st.analyzer = pipeline.NewAnalyzer(normalizer, engine, extractor, logger)
	return st, nil
}

func (s *analysisStack) close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// app is the full service wiring shared by serve and ingest.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	db       *repository.DB
	analysis *analysisStack
	queue    *async.ProcessorQueue
	intake   *intake.Service
}

func newApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	analysis, err := buildAnalysis(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	scans := repository.NewScanRepository(db, logger)
	results := repository.NewOcrResultRepository(db, logger)
	mappings := repository.NewFieldMappingRepository(db, logger)
	patients := repository.NewPatientRepository(db, logger)

	proc := pipeline.NewProcessor(analysis.analyzer, scans, results, logger)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		analysis: analysis,
		queue:    queue,
		intake:   intake.NewService(scans, results, mappings, patients, queue, logger),
	}, nil
}

// Close drains the queue, then releases the engine and the database.
func (a *app) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.queue.Shutdown(ctx)
	if err := a.analysis.close(); err != nil {
		a.logger.Warn("engine close failed", "error", err)
	}
	a.db.Close()
}

// openReadOnly wires the intake service without a processing queue.
func openReadOnly(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*intake.Service, *repository.DB, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := intake.NewService(
		repository.NewScanRepository(db, logger),
		repository.NewOcrResultRepository(db, logger),
		repository.NewFieldMappingRepository(db, logger),
		repository.NewPatientRepository(db, logger),
		nil,
		logger,
	)
	return svc, db, nil
}
