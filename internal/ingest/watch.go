package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes to the job source.
const DefaultDebounce = 500 * time.Millisecond

// WatchJobs calls trigger once at start and again whenever a file matching
// the job source pattern is created or written, until ctx is cancelled.
// Bursts of events within debounce collapse into a single call.
func WatchJobs(ctx context.Context, pattern string, debounce time.Duration, logger *slog.Logger, trigger func(context.Context)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(pattern)
	if err != nil {
		return err
	}
	base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirs(w, filepath.FromSlash(base)); err != nil {
		return err
	}
	logger.Info("jobs watcher: started", slog.String("pattern", pattern))

	trigger(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("jobs watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			trigger(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				_ = addDirs(w, ev.Name)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			match, _ := doublestar.PathMatch(abs, ev.Name)
			if !match {
				continue
			}
			logger.Debug("jobs watcher: change", slog.String("path", ev.Name))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("jobs watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// addDirs watches root and every directory below it. Files are ignored.
func addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
