// Package jobs reads ingestion jobs from CSV exports.
package jobs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/birbbrain/internal/models"
)

// Column headers of the job source.
const (
	ColumnURL       = "Tweet URL"
	ColumnAuthor    = "Author"
	ColumnDate      = "Date"
	ColumnTimestamp = "Timestamp"
)

// ErrNoSource is returned when the job pattern matches no file.
var ErrNoSource = errors.New("jobs: no source file")

type row struct {
	models.Job
}

func (r *row) Validate() error {
	return validation.ValidateStruct(&r.Job,
		validation.Field(&r.PostURL, validation.Required, is.URL),
		validation.Field(&r.Author, validation.Required),
		validation.Field(&r.Date, validation.Required),
	)
}

// Load reads every CSV file matching pattern (doublestar syntax) in sorted
// order and returns the valid rows. Invalid rows are logged and skipped; an
// unreadable source is an error.
func Load(pattern string, logger *slog.Logger) ([]models.Job, error) {
	files, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("jobs: glob %s: %w", pattern, err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, pattern)
	}

	var out []models.Job
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("jobs: open %s: %w", file, err)
		}
		jobs, err := Read(f, logger.With(slog.String("source", file)))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("jobs: %s: %w", file, err)
		}
		out = append(out, jobs...)
	}
	return out, nil
}

// Read parses one CSV document with a header row.
func Read(r io.Reader, logger *slog.Logger) ([]models.Job, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols[ColumnURL]; !ok {
		return nil, fmt.Errorf("missing %q column", ColumnURL)
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.Job
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		r := row{models.Job{
			PostURL:   field(rec, ColumnURL),
			Author:    field(rec, ColumnAuthor),
			Date:      field(rec, ColumnDate),
			Timestamp: field(rec, ColumnTimestamp),
		}}
		if err := r.Validate(); err != nil {
			logger.Warn("jobs: invalid row skipped", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		out = append(out, r.Job)
	}
	return out, nil
}
