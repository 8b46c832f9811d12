package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
)

// Page is one enhanced, PNG-encoded page image. Number is 1-based.
type Page struct {
	Number int
	Image  []byte
}

// PageSource turns an uploaded file into ordered page images.
type PageSource interface {
	Normalize(ctx context.Context, path, mimeType string) ([]Page, error)
}

type NormalizerConfig struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for PDFs, default 300, never below common.MinRasterDPI
	MaxPages int    // 0 = no limit
	TempDir  string // parent for per-call scratch directories; "" = os.TempDir()
}

// PageCounter reports the number of pages in a PDF file.
type PageCounter func(path string) (int, error)

// Normalizer is the input stage: it rasterizes PDFs, loads raster images and
// enhances every page before recognition.
type Normalizer struct {
	cfg       NormalizerConfig
	runner    Runner
	pageCount PageCounter
	logger    *slog.Logger
}

type NormalizerOption func(*Normalizer)

func WithRunner(r Runner) NormalizerOption {
	return func(n *Normalizer) {
		if r != nil {
			n.runner = r
		}
	}
}

func WithPageCounter(pc PageCounter) NormalizerOption {
	return func(n *Normalizer) {
		if pc != nil {
			n.pageCount = pc
		}
	}
}

func NewNormalizer(cfg NormalizerConfig, logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.DPI < common.MinRasterDPI {
		cfg.DPI = common.MinRasterDPI
	}
	n := &Normalizer{
		cfg:       cfg,
		runner:    NewExecRunner(logger),
		pageCount: CountPDFPages,
		logger:    logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// CountPDFPages reads the page tree with pdfcpu.
func CountPDFPages(path string) (int, error) {
	return api.PageCountFile(path)
}

// DetectMime sniffs the content type of a file on disk.
func DetectMime(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return constants.NormalizeMime(mt.String()), nil
}

// ResolveMime returns the declared type unless it is generic, in which case
// the file content decides.
func ResolveMime(path, declared string) (string, error) {
	if !constants.IsGenericMime(declared) {
		return constants.NormalizeMime(declared), nil
	}
	return DetectMime(path)
}

// Normalize produces enhanced page images for path. All scratch files are
// removed before it returns.
func (n *Normalizer) Normalize(ctx context.Context, path, mimeType string) ([]Page, error) {
	start := time.Now()
	mt, err := ResolveMime(path, mimeType)
	if err != nil {
		return nil, &common.ConversionError{Op: "detect", Err: err}
	}

	var pages []Page
	switch constants.MapMimeToFormat(mt) {
	case constants.PDF:
		pages, err = n.rasterize(ctx, path)
	case constants.IMAGE:
		pages, err = n.loadImage(path)
	default:
		err = &common.ConversionError{Op: "detect", Err: fmt.Errorf("unsupported mime type %q", mt)}
	}
	if err != nil {
		n.logger.Error("ocr.normalize.failed", "path", path, "mime", mt, "error", err)
		return nil, err
	}
	n.logger.Info("ocr.normalize.ok",
		"path", path,
		"mime", mt,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func (n *Normalizer) loadImage(path string) ([]Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &common.ConversionError{Op: "read", Err: err}
	}
	img, err := EnhanceBytes(raw)
	if err != nil {
		return nil, &common.ConversionError{Op: "enhance", Err: err}
	}
	return []Page{{Number: 1, Image: img}}, nil
}

func (n *Normalizer) rasterize(ctx context.Context, path string) ([]Page, error) {
	count, err := n.pageCount(path)
	if err != nil {
		return nil, &common.ConversionError{Op: "inspect", Err: err}
	}
	if count == 0 {
		return nil, &common.ConversionError{Op: "inspect", Err: ErrNoPages}
	}
	last := count
	if n.cfg.MaxPages > 0 && count > n.cfg.MaxPages {
		n.logger.Warn("ocr.normalize.page_limit", "path", path, "pages", count, "max_pages", n.cfg.MaxPages)
		last = n.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp(n.cfg.TempDir, "ri-pages-*")
	if err != nil {
		return nil, &common.ConversionError{Op: "rasterize", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			n.logger.Warn("ocr.normalize.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png -f 1 -l <last> <in.pdf> <tmp/page>
	_, errb, err := n.runner.Run(ctx, n.cfg.Pdftoppm,
		"-r", strconv.Itoa(n.cfg.DPI), "-png", "-f", "1", "-l", strconv.Itoa(last), path, prefix)
	if err != nil {
		return nil, &common.ConversionError{Op: "rasterize", Err: fmt.Errorf("%w: %s", err, truncate(string(errb), 512))}
	}

	files, err := renderedPages(prefix)
	if err != nil {
		return nil, &common.ConversionError{Op: "rasterize", Err: err}
	}
	if len(files) == 0 {
		return nil, &common.ConversionError{Op: "rasterize", Err: ErrNoPages}
	}

	pages := make([]Page, 0, len(files))
	for i, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, &common.ConversionError{Op: "read", Err: err}
		}
		img, err := EnhanceBytes(raw)
		if err != nil {
			return nil, &common.ConversionError{Op: "enhance", Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		pages = append(pages, Page{Number: i + 1, Image: img})
	}
	return pages, nil
}

// renderedPages lists prefix-N.png files ordered by page number.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	num := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(p, prefix+"-"), ".png")
		v, err := strconv.Atoi(s)
		if err != nil {
			return -1
		}
		return v
	}
	matches = slices.DeleteFunc(matches, func(p string) bool { return num(p) < 0 })
	slices.SortFunc(matches, func(a, b string) int { return num(a) - num(b) })
	return matches, nil
}

var _ PageSource = (*Normalizer)(nil)
