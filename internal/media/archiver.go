// Package media downloads post attachments into the vault media tree.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/starford/birbbrain/internal/checksum"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/sanitize"
	"github.com/starford/birbbrain/internal/storage"
)

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
}

// Classify maps a file extension to a media kind. Anything that is not a
// known image extension is a video.
func Classify(ext string) models.MediaKind {
	if _, ok := imageExts[strings.ToLower(ext)]; ok {
		return models.MediaImage
	}
	return models.MediaVideo
}

// Target computes the vault-relative destination of a media URL.
func Target(sourceURL string) (string, models.MediaKind, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", 0, fmt.Errorf("media: parse %q: %w", sourceURL, err)
	}
	base := path.Base(u.Path)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		if format := u.Query().Get("format"); format != "" {
			ext = "." + sanitize.Filename(format)
		}
	}
	name := sanitize.Filename(stem)
	if name == "" {
		name = checksum.Short(sourceURL, 12)
	}
	kind := Classify(ext)
	dir := storage.DirVideos
	if kind == models.MediaImage {
		dir = storage.DirImages
	}
	return dir + "/" + name + ext, kind, nil
}

// Archiver stores each media file at most once per destination path.
type Archiver struct {
	store   storage.Provider
	getter  fetch.Getter
	logger  *slog.Logger
	metrics *metrics.Collector
	flight  singleflight.Group
}

// NewArchiver creates an Archiver writing into store.
func NewArchiver(store storage.Provider, getter fetch.Getter, logger *slog.Logger, m *metrics.Collector) *Archiver {
	return &Archiver{store: store, getter: getter, logger: logger, metrics: m}
}

// Archive downloads refs that are not yet in the vault and returns the
// stored paths in input order. Items that fail are logged and left out.
func (a *Archiver) Archive(ctx context.Context, refs []models.MediaRef) []models.StoredMedia {
	out := make([]models.StoredMedia, 0, len(refs))
	for _, ref := range refs {
		stored, err := a.archiveOne(ctx, ref)
		if err != nil {
			a.logger.Warn("media: skipped item",
				slog.String("url", ref.SourceURL),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, stored)
	}
	return out
}

func (a *Archiver) archiveOne(ctx context.Context, ref models.MediaRef) (models.StoredMedia, error) {
	rel, kind, err := Target(ref.SourceURL)
	if err != nil {
		a.metrics.MediaItem(kind.String(), metrics.OutcomeFailed)
		return models.StoredMedia{}, err
	}
	stored := models.StoredMedia{Path: rel, Kind: kind}

	// Concurrent callers for the same target share one check-and-download.
	_, err, _ = a.flight.Do(rel, func() (interface{}, error) {
		exists, err := a.store.Exists(rel)
		if err != nil {
			return nil, err
		}
		if exists {
			a.metrics.MediaItem(kind.String(), metrics.OutcomeCached)
			a.logger.Debug("media: already archived", slog.String("path", rel))
			return nil, nil
		}
		resp, err := a.getter.Get(ctx, ref.SourceURL, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("media: HTTP %d", resp.StatusCode)
		}
		if err := a.store.Write(rel, resp.Body); err != nil {
			return nil, err
		}
		a.metrics.MediaItem(kind.String(), metrics.OutcomeArchived)
		return nil, nil
	})
	if err != nil {
		a.metrics.MediaItem(kind.String(), metrics.OutcomeFailed)
		return models.StoredMedia{}, err
	}
	return stored, nil
}
