package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/common"
)

// PageText is the recognition output for one page. Confidence is 0..100.
type PageText struct {
	Text       string
	Confidence float64
}

// Recognizer turns one encoded page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, page []byte) (PageText, error)
}

// Engine is a Recognizer that owns process-wide resources.
type Engine interface {
	Recognizer
	Close() error
}

var errEngineClosed = errors.New("recognition engine is closed")

type EngineConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "eng"; "eng+deu" style lists are allowed
	TessdataDir string
	PSM         int // page segmentation mode; 0 keeps tesseract's default
	OEM         int // 1 = LSTM; leave 0 to use default
	TempDir     string
}

// TesseractEngine is the shared recognition engine. The first Recognize call
// verifies the binary and language data; all calls are serialized.
type TesseractEngine struct {
	cfg    EngineConfig
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	ready  bool
	closed bool
}

func NewTesseractEngine(cfg EngineConfig, runner Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &TesseractEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractEngine) Recognize(ctx context.Context, page []byte) (PageText, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return PageText{}, &common.RecognitionError{Err: errEngineClosed}
	}
	if !e.ready {
		if err := e.init(ctx); err != nil {
			return PageText{}, &common.RecognitionError{Err: err}
		}
		e.ready = true
	}

	f, err := os.CreateTemp(e.cfg.TempDir, "ri-ocr-*.png")
	if err != nil {
		return PageText{}, &common.RecognitionError{Err: fmt.Errorf("stage page: %w", err)}
	}
	in := f.Name()
	defer func() {
		if err := os.Remove(in); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("ocr.engine.cleanup_failed", "path", in, "error", err)
		}
	}()
	_, werr := f.Write(page)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return PageText{}, &common.RecognitionError{Err: fmt.Errorf("stage page: %w", err)}
	}

	start := time.Now()
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tsvArgs(in)...)
	if err != nil {
		return PageText{}, &common.RecognitionError{Err: fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))}
	}
	pt := parseTSV(out)
	e.logger.Debug("ocr.engine.page_ok",
		"chars", len(pt.Text),
		"confidence", pt.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pt, nil
}

// Close releases the engine. Later Recognize calls fail.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.ready = false
	e.logger.Info("ocr.engine.closed")
	return nil
}

func (e *TesseractEngine) init(ctx context.Context) error {
	start := time.Now()
	args := []string{"--list-langs"}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return fmt.Errorf("tesseract unavailable: %w", err)
	}
	// older builds print the list on stderr
	installed := map[string]struct{}{}
	for _, ln := range strings.Split(string(out)+"\n"+string(errb), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.Contains(ln, " ") {
			continue
		}
		installed[ln] = struct{}{}
	}
	for _, lang := range strings.Split(e.cfg.Language, "+") {
		if _, ok := installed[lang]; !ok {
			return fmt.Errorf("tesseract language model %q not installed", lang)
		}
	}
	e.logger.Info("ocr.engine.initialized",
		"language", e.cfg.Language,
		"tessdata_dir", e.cfg.TessdataDir,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (e *TesseractEngine) tsvArgs(in string) []string {
	args := []string{in, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, "tsv")
}
