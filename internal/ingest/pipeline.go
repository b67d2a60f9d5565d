package ingest

import (
	"log/slog"

	"github.com/starford/birbbrain/internal/extract"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/links"
	"github.com/starford/birbbrain/internal/media"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/storage"
	"github.com/starford/birbbrain/internal/thread"
)

// Endpoints locates the external services a pipeline talks to.
type Endpoints struct {
	ThreadService  string
	GitHubAPI      string
	GitHubToken    string
	ArXivAPI       string
	ArticleDomains []string
}

// NewPipeline wires the media archiver, extractors, link router and note
// builder around store and returns the Driver that runs them.
func NewPipeline(store storage.Provider, l *ledger.Ledger, getter fetch.Getter, ep Endpoints, logger *slog.Logger, m *metrics.Collector) *Driver {
	classifier := links.DefaultClassifier()
	if len(ep.ArticleDomains) > 0 {
		classifier.ArticleDomains = ep.ArticleDomains
	}
	router := links.NewRouter(store, classifier, links.Extractors{
		Repository: extract.NewGitHub(store, getter, ep.GitHubAPI, ep.GitHubToken, logger),
		Article:    extract.NewArticle(store, getter, logger),
		Paper:      extract.NewArXiv(store, getter, ep.ArXivAPI, logger),
	}, logger, m)
	builder := thread.NewBuilder(store, media.NewArchiver(store, getter, logger, m), router, logger)
	return NewDriver(l, thread.NewClient(getter, ep.ThreadService), builder, logger, m)
}
