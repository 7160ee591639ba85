package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-runs the pipeline whenever files under the directory change.
// Bursts of events collapse into a single run per quiet period.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	debounce time.Duration
	logger   *zap.Logger
}

func NewWatcher(pipeline *Pipeline, dir string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{pipeline: pipeline, dir: dir, debounce: debounce, logger: logger}
}

// Watch blocks until the context is canceled.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	// The timer starts stopped and drained; it only ticks once events have
	// settled for a full debounce window.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.logger.Info("watching for changes",
		zap.String("dir", w.dir),
		zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			w.logger.Debug("change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.logger.Info("changes settled, reingesting")
			if _, err := w.pipeline.Run(ctx, w.dir); err != nil {
				w.logger.Error("reingest failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
