package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/ingest"
	"github.com/starford/birbbrain/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the vault path from the wildcard part of the URL.
// Supports encoded slashes (e.g. GitHub%2Fwidget.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List indexed notes
//	@Tags			notes
//	@Produce		json
//	@Param			kind	query		string	false	"Note kind"	Enums(thread, repository, article, paper, other)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListNotes(r.Context(), index.ListQuery{
		Kind:   q.Get("kind"),
		Tag:    q.Get("tag"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: rows, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List notes linking to a vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Target path"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target := notePath(r)
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), target)
	if err != nil {
		slog.Error("backlinks failed", slog.String("path", target), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target, Backlinks: bl})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the vault
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// SubmitJob handles POST /api/jobs.
//
//	@Summary		Archive one post and its thread
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitJobRequest	true	"Post to archive"
//	@Success		201		{object}	IngestResult		"Archived"
//	@Success		200		{object}	IngestResult		"Already processed"
//	@Success		202		{object}	IngestResult		"Thread unavailable, retry later"
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	IngestResult
//	@Security		BearerAuth
//	@Router			/jobs [post]
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.PostURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("post_url is required"))
		return
	}

	res, err := h.svc.Ingest(r.Context(), req.job())
	switch {
	case errors.Is(err, ingest.ErrInvalidJob):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	case errors.Is(err, noteservice.ErrIngestDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("ingestion disabled"))
		return
	case err != nil && res == nil:
		slog.Error("ingest failed", slog.String("post_url", req.PostURL), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	case err != nil:
		slog.Warn("reindex after ingest failed", slog.String("job_id", res.JobID), slog.String("error", err.Error()))
	}

	writeJSON(w, outcomeStatus(res.Outcome), res)
}

func outcomeStatus(o ingest.Outcome) int {
	switch o {
	case ingest.Archived:
		return http.StatusCreated
	case ingest.Skipped:
		return http.StatusOK
	case ingest.Empty:
		return http.StatusAccepted
	default:
		return http.StatusBadGateway
	}
}
