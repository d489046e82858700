// Package watch keeps the persisted artifact graph current while the
// corpus is being edited.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"artdep/internal/config"
	"artdep/internal/graph"
	"artdep/internal/scan"
	"artdep/internal/store"
)

// DefaultDebounce batches bursts of filesystem events into one
// incremental update.
const DefaultDebounce = 500 * time.Millisecond

// Watcher applies incremental graph updates as corpus files change.
type Watcher struct {
	repoRoot string
	cfg      *config.Config
	builder  *scan.Builder
	logger   *slog.Logger
	Debounce time.Duration
}

// New creates a Watcher. A nil logger selects slog's default.
func New(repoRoot string, cfg *config.Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		repoRoot: repoRoot,
		cfg:      cfg,
		builder:  scan.NewBuilder(cfg, nil),
		logger:   logger,
		Debounce: DefaultDebounce,
	}
}

// Run watches the configured roots and patches g in place as files
// change, persisting atomically after every applied batch. Update
// failures (for example a momentarily dangling reference while the
// author is still typing) are logged and retried with the next batch;
// Run returns when the context is cancelled.
func (w *Watcher) Run(ctx context.Context, g *graph.Graph, graphPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addRoots(watcher); err != nil {
		return err
	}

	excluded := make(map[string]bool, len(w.cfg.ExcludeDirs))
	for _, d := range w.cfg.ExcludeDirs {
		excluded[d] = true
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			relPath, err := filepath.Rel(w.repoRoot, event.Name)
			if err != nil {
				continue
			}
			relPath = filepath.ToSlash(relPath)
			if excludedPath(relPath, excluded) {
				continue
			}

			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						w.logger.Warn("watching new directory failed", "path", relPath, "error", err)
					}
					continue
				}
			}

			pending[relPath] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			flush = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-flush:
			flush = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			pending = make(map[string]struct{})

			if err := w.builder.Update(ctx, g, w.repoRoot, batch); err != nil {
				w.logger.Warn("incremental update failed; keeping previous graph",
					"files", len(batch), "error", err)
				// Carry the batch over so the next flush retries it.
				for _, p := range batch {
					pending[p] = struct{}{}
				}
				continue
			}
			if err := store.Save(g, graphPath); err != nil {
				w.logger.Warn("persisting graph failed", "error", err)
				continue
			}
			w.logger.Info("graph updated", "files", len(batch), "nodes", g.Len())
		}
	}
}

// addRoots registers every non-excluded directory under the configured
// roots, since fsnotify watches are not recursive.
func (w *Watcher) addRoots(watcher *fsnotify.Watcher) error {
	excluded := make(map[string]bool, len(w.cfg.ExcludeDirs))
	for _, d := range w.cfg.ExcludeDirs {
		excluded[d] = true
	}

	for _, root := range w.cfg.Roots {
		scanRoot := filepath.Join(w.repoRoot, filepath.FromSlash(root))
		err := filepath.Walk(scanRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				return nil
			}
			if excluded[info.Name()] {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func excludedPath(relPath string, excluded map[string]bool) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if excluded[seg] {
			return true
		}
	}
	return false
}
