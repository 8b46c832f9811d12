package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/intake"
)

// Ingestor hands files found on the local filesystem to the intake service.
// Content already seen is skipped so rescans of a folder are harmless.
type Ingestor struct {
	enq        Enqueuer
	uploaderID string
	logger     *slog.Logger
}

func NewIngestor(enq Enqueuer, uploaderID string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{enq: enq, uploaderID: uploaderID, logger: logger}
}

// IngestPath enqueues a single file.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("ingest.skip.extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("unsupported or missing extension %q", ext)
	}

	res, err := i.enq.EnqueueScan(ctx, intake.UploadInput{
		Path:             abs,
		OriginalFilename: filepath.Base(abs),
		UploaderID:       i.uploaderID,
		SkipDuplicate:    true,
	})
	if err != nil {
		i.logger.Error("ingest.enqueue.failed", "path", abs, "error", err)
		return out, err
	}

	out.ScanID = res.ScanID
	out.OcrResultID = res.OcrResultID
	out.Duplicate = res.Duplicate
	out.ContentHash = res.ContentHash
	out.MimeType = res.MimeType
	i.logger.Info("ingest.enqueued", "path", abs, "scan_id", res.ScanID, "ocr_result_id", res.OcrResultID, "duplicate", res.Duplicate)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each matching file. Per-file failures are collected, not fatal.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		if r.Duplicate {
			stats.Duplicates++
		} else {
			stats.Enqueued++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.directory.done",
		"root", root,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
