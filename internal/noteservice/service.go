// Package noteservice is the read and ingest facade shared by the HTTP API
// and the MCP server.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/checksum"
	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/ingest"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/parser"
	"github.com/starford/birbbrain/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []string       `json:"links"`
	Embeds      []string       `json:"embeds"`
	Backlinks   []models.Link  `json:"backlinks"`
}

// IngestResult describes what happened to one submitted post.
type IngestResult struct {
	JobID     string         `json:"job_id"`
	Outcome   ingest.Outcome `json:"outcome"`
	Retryable bool           `json:"retryable,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Processor runs a single ingestion job.
type Processor interface {
	Process(ctx context.Context, job models.Job) (ingest.Outcome, error)
}

// Service coordinates storage, index and ingestion.
type Service struct {
	store     storage.Provider
	db        *index.DB
	processor Processor
	logger    *slog.Logger
}

// NewService creates a note service. processor may be nil, in which case
// Ingest is unavailable.
func NewService(store storage.Provider, db *index.DB, processor Processor, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, processor: processor, logger: logger}
}

// GetNote reads a note from the vault and enriches it with backlinks.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Kind:        index.KindOf(path),
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(res.Links),
		Embeds:      nonNilSlice(res.Embeds),
		Backlinks:   nonNilSlice(bl),
	}, nil
}

// ListNotes returns one page of indexed notes and the total match count.
func (s *Service) ListNotes(_ context.Context, q index.ListQuery) ([]index.NoteRow, int, error) {
	rows, total, err := s.db.ListNotes(q)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(rows), total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Backlinks returns the links pointing at target.
func (s *Service) Backlinks(_ context.Context, target string) ([]models.Link, error) {
	bl, err := s.db.Backlinks(target)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// ErrIngestDisabled is returned by Ingest when no processor is configured.
var ErrIngestDisabled = errors.New("noteservice: ingestion disabled")

// Ingest archives one post and brings the index up to date. Job-level
// failures are reported in the result; the error is reserved for invalid
// input and infrastructure problems.
func (s *Service) Ingest(ctx context.Context, job models.Job) (*IngestResult, error) {
	if s.processor == nil {
		return nil, ErrIngestDisabled
	}
	if err := ingest.Validate(job); err != nil {
		return nil, err
	}
	res := &IngestResult{JobID: job.ID()}
	outcome, err := s.processor.Process(ctx, job)
	res.Outcome = outcome
	if err != nil {
		res.Error = err.Error()
		res.Retryable = ingest.IsRetryable(err)
	}
	if outcome == ingest.Archived {
		if _, err := index.Sync(s.db, s.store, s.logger); err != nil {
			return res, fmt.Errorf("noteservice: reindex: %w", err)
		}
	}
	return res, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
