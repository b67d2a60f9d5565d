package index

import (
	"log/slog"

	"github.com/starford/birbbrain/internal/checksum"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/parser"
	"github.com/starford/birbbrain/internal/storage"
)

// SyncStats reports what a Sync pass changed.
type SyncStats struct {
	Indexed int
	Removed int
}

// Sync brings the index in line with the vault. Notes whose checksum
// changed are re-parsed; index entries without a file are dropped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("index: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m, data); err != nil {
			logger.Warn("index: upsert failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
	}

	for p := range checksums {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("index: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
	}

	logger.Debug("index: synced", slog.Int("indexed", stats.Indexed), slog.Int("removed", stats.Removed))
	return stats, nil
}

// indexFile parses a note and upserts it with its wikilinks and embeds.
func indexFile(db *DB, meta models.NoteMetadata, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if meta.Checksum == "" {
		meta.Checksum = checksum.Sum(data)
	}
	source, _ := res.Frontmatter["source"].(string)

	links := make([]models.Link, 0, len(res.Links)+len(res.Embeds))
	for _, target := range res.Links {
		links = append(links, models.Link{Source: meta.Path, Target: target, Type: "inline"})
	}
	for _, target := range res.Embeds {
		links = append(links, models.Link{Source: meta.Path, Target: target, Type: "embed"})
	}

	row := NoteRow{
		Path:      meta.Path,
		Title:     res.Title,
		Source:    source,
		Checksum:  meta.Checksum,
		Tags:      res.Tags,
		UpdatedAt: meta.UpdatedAt,
	}
	return db.UpsertNote(row, res.Body, links)
}
