package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/storage"
)

const resyncDelay = 200 * time.Millisecond

// Watch keeps the index current while the vault changes underneath it,
// until ctx is cancelled. Writes are indexed as they happen; removals and
// renames schedule a short debounced Sync.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, vaultRoot); err != nil {
		return err
	}
	logger.Info("index watcher: started", slog.String("root", vaultRoot))

	var timer *time.Timer
	var resync <-chan time.Time
	scheduleSync := func() {
		if timer == nil {
			timer = time.NewTimer(resyncDelay)
		} else {
			timer.Reset(resyncDelay)
		}
		resync = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("index watcher: stopped")
			return nil

		case <-resync:
			resync = nil
			if _, err := Sync(db, store, logger); err != nil {
				logger.Warn("index watcher: resync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchTree(w, ev.Name); err != nil {
						logger.Warn("index watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					scheduleSync()
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, err := filepath.Rel(vaultRoot, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, err := store.Read(rel)
				if err != nil {
					// Atomic writes rename over the target; the file may already be gone.
					scheduleSync()
					continue
				}
				if err := indexFile(db, models.NoteMetadata{Path: rel, UpdatedAt: time.Now()}, data); err != nil {
					logger.Warn("index watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("index watcher: indexed", slog.String("path", rel))
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				scheduleSync()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("index watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// watchTree adds root and all directories below it to w.
func watchTree(w *fsnotify.Watcher, root string) error {
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
