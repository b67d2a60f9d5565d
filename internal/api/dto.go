package api

import (
	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/noteservice"
)

// SubmitJobRequest is the request body for archiving one post.
type SubmitJobRequest struct {
	PostURL string `json:"post_url" example:"https://x.com/alice/status/111" validate:"required"`
	Author  string `json:"author" example:"alice"`
	Date    string `json:"date" example:"2024-01-01"`
}

func (r SubmitJobRequest) job() models.Job {
	return models.Job{PostURL: r.PostURL, Author: r.Author, Date: r.Date}
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// IngestResult is the response to a submitted job.
type IngestResult = noteservice.IngestResult

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []index.NoteRow `json:"notes" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse lists the notes that reference a target.
type BacklinksResponse struct {
	Target    string        `json:"target" example:"GitHub/widget.md"`
	Backlinks []models.Link `json:"backlinks" validate:"required"`
}
