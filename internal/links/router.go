package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/extract"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/parser"
	"github.com/starford/birbbrain/internal/storage"
)

// Backlink labels, one per extractor kind.
const (
	LabelRepository = "GitHub"
	LabelArticle    = "Article"
	LabelPaper      = "Paper"
)

// Extractors holds the extractor for each routable kind.
type Extractors struct {
	Repository extract.Extractor
	Article    extract.Extractor
	Paper      extract.Extractor
}

// Summary counts what one Route call did.
type Summary struct {
	Backlinks   int
	Unprocessed int
	NotFound    int
	Failed      int
}

// Router archives the resources linked from a note and records backlinks.
type Router struct {
	store      storage.Provider
	classifier Classifier
	extractors Extractors
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// NewRouter creates a Router. m may be nil.
func NewRouter(store storage.Provider, c Classifier, ex Extractors, logger *slog.Logger, m *metrics.Collector) *Router {
	return &Router{store: store, classifier: c, extractors: ex, logger: logger, metrics: m}
}

// Route processes the URLs in text left to right on behalf of the note at
// notePath. Extractor failures are logged and skipped; only storage
// failures while recording backlinks or unprocessed links are returned.
func (r *Router) Route(ctx context.Context, text, notePath string) (Summary, error) {
	nr := &noteRoute{Router: r, notePath: notePath}
	for _, l := range r.classifier.Scan(text) {
		if err := ctx.Err(); err != nil {
			return nr.summary, err
		}
		if err := l.Dispatch(ctx, nr); err != nil {
			return nr.summary, err
		}
	}
	return nr.summary, nil
}

// noteRoute is the Handler for links found in a single note.
type noteRoute struct {
	*Router
	notePath string
	summary  Summary
}

func (n *noteRoute) Repository(ctx context.Context, rawURL string) error {
	return n.archive(ctx, Repository, n.extractors.Repository, storage.DirGitHub, LabelRepository, rawURL)
}

func (n *noteRoute) Article(ctx context.Context, rawURL string) error {
	return n.archive(ctx, Article, n.extractors.Article, storage.DirArticles, LabelArticle, rawURL)
}

func (n *noteRoute) Paper(ctx context.Context, rawURL string) error {
	return n.archive(ctx, Paper, n.extractors.Paper, storage.DirPapers, LabelPaper, rawURL)
}

func (n *noteRoute) Unknown(_ context.Context, rawURL string) error {
	if err := n.store.AppendLine(storage.UnprocessedFile, rawURL); err != nil {
		n.metrics.Link(Unknown.String(), metrics.OutcomeFailed)
		return fmt.Errorf("links: record unprocessed %s: %w", rawURL, err)
	}
	n.summary.Unprocessed++
	n.metrics.Link(Unknown.String(), metrics.OutcomeSkipped)
	return nil
}

func (n *noteRoute) archive(ctx context.Context, kind Kind, ex extract.Extractor, dir, label, rawURL string) error {
	logger := n.logger.With("url", rawURL, "kind", kind.String())
	if ex == nil {
		return n.Unknown(ctx, rawURL)
	}

	note, err := ex.Extract(ctx, rawURL, dir)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logger.Info("linked resource not found")
		n.summary.NotFound++
		n.metrics.Link(kind.String(), metrics.OutcomeNotFound)
		return nil
	case err != nil:
		logger.Warn("extract failed", "error", err)
		n.summary.Failed++
		n.metrics.Link(kind.String(), metrics.OutcomeFailed)
		return nil
	}

	line := "\n\n" + label + ": " + parser.WikiLink(note.Path)
	if err := n.store.Append(n.notePath, []byte(line)); err != nil {
		return fmt.Errorf("links: backlink %s: %w", n.notePath, err)
	}
	n.summary.Backlinks++
	n.metrics.Link(kind.String(), metrics.OutcomeArchived)
	logger.Debug("backlink added", "target", note.Path)
	return nil
}
