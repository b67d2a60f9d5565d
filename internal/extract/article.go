package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/sanitize"
	"github.com/starford/birbbrain/internal/storage"
)

// fallbackTitle names articles whose page yields no usable title.
const fallbackTitle = "article"

// Article archives the readable text of a newsletter or blog post.
type Article struct {
	store     storage.Provider
	getter    fetch.Getter
	converter *Converter
	logger    *slog.Logger
}

// NewArticle creates an Article extractor.
func NewArticle(store storage.Provider, getter fetch.Getter, logger *slog.Logger) *Article {
	return &Article{store: store, getter: getter, converter: NewConverter(), logger: logger}
}

// Extract implements Extractor. Only transport failures are errors: any
// response, whatever its status, is converted and archived, and this
// extractor never reports ErrNotFound.
func (a *Article) Extract(ctx context.Context, rawURL, dir string) (*models.Note, error) {
	resp, err := a.getter.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("article: fetch %s: %w", rawURL, err)
	}
	if !resp.OK() {
		a.logger.Warn("article page returned error status", "url", rawURL, "status", resp.StatusCode)
	}

	page, err := a.converter.Convert(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("article: convert %s: %w", rawURL, err)
	}
	title := page.Title
	if title == "" {
		title = fallbackTitle
	}
	name := sanitize.Filename(title)
	if name == "" {
		name = fallbackTitle
	}

	note := &models.Note{
		Title: title,
		Body:  "# " + title + "\n\n" + page.Markdown + "\n",
		Frontmatter: models.Frontmatter{
			Title:  title,
			Source: rawURL,
			Tags:   []string{"article"},
		},
		Path: dir + "/" + name + ".md",
	}
	wrote, err := writeIfAbsent(a.store, note)
	if err != nil {
		return nil, fmt.Errorf("article: %w", err)
	}
	if !wrote {
		a.logger.Debug("article already archived", "path", note.Path)
	}
	return note, nil
}
