package ingest

import (
	"context"
	"log/slog"
	"time"
)

// HotFolderConfig configures folder ingestion.
type HotFolderConfig struct {
	Roots       []string
	Debounce    time.Duration
	InitialScan bool // ingest files already present before watching
}

// HotFolder enqueues every allowed file dropped into the watched roots.
type HotFolder struct {
	ingestor *Ingestor
	cfg      HotFolderConfig
	logger   *slog.Logger
}

func NewHotFolder(ingestor *Ingestor, cfg HotFolderConfig, logger *slog.Logger) *HotFolder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HotFolder{ingestor: ingestor, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done. The watcher starts before the initial scan
// so files landing during the scan are not missed; duplicates are skipped by
// content hash.
func (h *HotFolder) Run(ctx context.Context) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{Roots: h.cfg.Roots, Debounce: h.cfg.Debounce}, h.logger)
	if err != nil {
		return err
	}
	h.logger.Info("hotfolder.started", "roots", h.cfg.Roots, "debounce", h.cfg.Debounce)

	if h.cfg.InitialScan {
		for _, root := range h.cfg.Roots {
			if _, _, err := h.ingestor.IngestDirectory(ctx, root, true); err != nil && ctx.Err() == nil {
				h.logger.Error("hotfolder.initial_scan.failed", "root", root, "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hotfolder.stopped")
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := h.ingestor.IngestPath(ctx, p); err != nil {
				h.logger.Warn("hotfolder.ingest.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			h.logger.Warn("hotfolder.watch.error", "error", err)
		}
	}
}
