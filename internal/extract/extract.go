// Package extract archives the resources linked from threads: repositories,
// articles and papers. Each extractor writes into one vault subdirectory and
// returns the note it wrote (or found already written).
package extract

import (
	"context"
	"fmt"

	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/parser"
	"github.com/starford/birbbrain/internal/storage"
)

// Extractor archives the resource behind rawURL into dir. A resource that
// does not exist upstream yields an error wrapping apperr.ErrNotFound.
type Extractor interface {
	Extract(ctx context.Context, rawURL, dir string) (*models.Note, error)
}

// writeIfAbsent renders note and writes it unless its path already exists.
// It reports whether a write happened.
func writeIfAbsent(store storage.Provider, note *models.Note) (bool, error) {
	exists, err := store.Exists(note.Path)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	data, err := parser.Render(note.Frontmatter, note.Body)
	if err != nil {
		return false, fmt.Errorf("render %s: %w", note.Path, err)
	}
	if err := store.Write(note.Path, data); err != nil {
		return false, err
	}
	return true, nil
}
