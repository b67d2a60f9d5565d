// Package ingest runs archival jobs: it gates each job on the processed
// ledger, fetches the thread, builds its note and records the job.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/thread"
)

// Outcome is the result of processing one job.
type Outcome string

const (
	// Archived jobs were built and recorded in the ledger.
	Archived Outcome = metrics.OutcomeArchived
	// Skipped jobs were already in the ledger.
	Skipped Outcome = metrics.OutcomeSkipped
	// Empty jobs got no posts from the thread service and are retried next run.
	Empty Outcome = metrics.OutcomeEmpty
	// Failed jobs hit an error while building and are retried next run.
	Failed Outcome = metrics.OutcomeFailed
)

// NoteBuilder renders a fetched thread into the vault.
type NoteBuilder interface {
	Build(ctx context.Context, job models.Job, t models.Thread) (*models.Note, error)
}

// Report tallies the outcomes of a run.
type Report struct {
	Archived int `json:"archived"`
	Skipped  int `json:"skipped"`
	Empty    int `json:"empty"`
	Failed   int `json:"failed"`
}

func (r *Report) add(o Outcome) {
	switch o {
	case Archived:
		r.Archived++
	case Skipped:
		r.Skipped++
	case Empty:
		r.Empty++
	case Failed:
		r.Failed++
	}
}

// Driver processes jobs one at a time.
type Driver struct {
	ledger  *ledger.Ledger
	fetcher thread.Fetcher
	builder NoteBuilder
	logger  *slog.Logger
	metrics *metrics.Collector

	mu sync.Mutex
}

// NewDriver creates a Driver. m may be nil.
func NewDriver(l *ledger.Ledger, f thread.Fetcher, b NoteBuilder, logger *slog.Logger, m *metrics.Collector) *Driver {
	return &Driver{ledger: l, fetcher: f, builder: b, logger: logger, metrics: m}
}

// Run processes jobs in order. Job-level failures are counted, not returned;
// the returned error is only set when ctx is cancelled.
func (d *Driver) Run(ctx context.Context, jobs []models.Job) (Report, error) {
	var rep Report
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		outcome, _ := d.Process(ctx, job)
		rep.add(outcome)
	}
	d.logger.Info("run finished",
		slog.Int("archived", rep.Archived),
		slog.Int("skipped", rep.Skipped),
		slog.Int("empty", rep.Empty),
		slog.Int("failed", rep.Failed))
	return rep, nil
}

// Process handles a single job. The ledger is written only after the note
// and all of its link side effects are on disk.
func (d *Driver) Process(ctx context.Context, job models.Job) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := job.ID()
	logger := d.logger.With(slog.String("job_id", id))

	if d.ledger.Contains(id) {
		logger.Debug("already processed")
		d.metrics.Job(string(Skipped))
		return Skipped, nil
	}

	t, err := d.fetcher.Fetch(ctx, job.PostURL)
	if err == nil && t.Empty() {
		err = apperr.ErrEmptyThread
	}
	if err != nil {
		logger.Warn("thread unavailable, will retry", slog.String("error", err.Error()))
		d.metrics.Job(string(Empty))
		return Empty, err
	}

	note, err := d.builder.Build(ctx, job, t)
	if err != nil {
		logger.Error("build failed", slog.String("error", err.Error()))
		d.metrics.Job(string(Failed))
		return Failed, err
	}
	if err := d.ledger.Record(id); err != nil {
		logger.Error("ledger write failed", slog.String("error", err.Error()))
		d.metrics.Job(string(Failed))
		return Failed, err
	}

	logger.Info("job archived", slog.String("note", note.Path))
	d.metrics.Job(string(Archived))
	return Archived, nil
}

// IsRetryable reports whether err leaves the job eligible for the next run.
func IsRetryable(err error) bool {
	return errors.Is(err, apperr.ErrEmptyThread)
}

// ErrInvalidJob is returned for jobs that cannot be identified.
var ErrInvalidJob = errors.New("ingest: invalid job")

// Validate checks that job has a usable identifier.
func Validate(job models.Job) error {
	if id := job.ID(); id == "" || id == "." || id == "/" {
		return fmt.Errorf("%w: no id in %q", ErrInvalidJob, job.PostURL)
	}
	return nil
}
