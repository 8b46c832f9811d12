package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots    []string      // directories to watch (recursive)
	Debounce time.Duration // coalesce rapid create/write bursts per path
}

// StartWatcher emits paths of allowed files created or rewritten under the
// roots. Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	for _, r := range cfg.Roots {
		if err := addTree(w, r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		deb := newDebouncer(cfg.Debounce)
		timer := time.NewTimer(time.Hour)
		timer.Stop()

		emit := func(paths []string) bool {
			for _, p := range paths {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		rearm := func() {
			if next, ok := deb.next(); ok {
				timer.Reset(max(time.Until(next), 0))
			}
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case <-timer.C:
				if !emit(deb.due(time.Now())) {
					return
				}
				rearm()

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := addTree(w, e.Name); err != nil {
							logger.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !AllowedExt(filepath.Ext(e.Name)) || IsHidden(e.Name) {
					continue
				}
				if !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Write) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !emit([]string{e.Name}) {
						return
					}
					continue
				}
				deb.touch(e.Name, time.Now())
				timer.Stop()
				rearm()

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// maxPendingFactor bounds how long a path that keeps changing can stay
// pending, as a multiple of the debounce window.
const maxPendingFactor = 10

type pendingPath struct {
	first, last time.Time
}

// debouncer tracks quiet periods per path. A path is due once it has been
// quiet for the window, or once it has been pending for maxPendingFactor
// windows, whichever comes first.
type debouncer struct {
	window  time.Duration
	pending map[string]pendingPath
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, pending: map[string]pendingPath{}}
}

func (d *debouncer) touch(path string, now time.Time) {
	p, ok := d.pending[path]
	if !ok {
		p.first = now
	}
	p.last = now
	d.pending[path] = p
}

func (d *debouncer) deadline(p pendingPath) time.Time {
	quiet := p.last.Add(d.window)
	capped := p.first.Add(maxPendingFactor * d.window)
	if capped.Before(quiet) {
		return capped
	}
	return quiet
}

// due removes and returns the paths whose deadline has passed, sorted.
func (d *debouncer) due(now time.Time) []string {
	var out []string
	for path, p := range d.pending {
		if !now.Before(d.deadline(p)) {
			out = append(out, path)
			delete(d.pending, path)
		}
	}
	slices.Sort(out)
	return out
}

// next reports the earliest pending deadline.
func (d *debouncer) next() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, p := range d.pending {
		if dl := d.deadline(p); !found || dl.Before(earliest) {
			earliest, found = dl, true
		}
	}
	return earliest, found
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && IsHidden(path) {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
