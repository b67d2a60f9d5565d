// Package ledger records which source posts have already been archived.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/birbbrain/internal/storage"
)

// Ledger is an append-only set of job identifiers backed by a vault file.
// Duplicate lines in the file are harmless; Load collapses them.
type Ledger struct {
	store storage.Provider
	path  string
	seen  map[string]struct{}
}

// Open loads the ledger at path (relative to the vault root). A missing file
// yields an empty ledger.
func Open(store storage.Provider, path string) (*Ledger, error) {
	l := &Ledger{store: store, path: path}
	seen, err := l.Load()
	if err != nil {
		return nil, err
	}
	l.seen = seen
	return l, nil
}

// Load reads the backing file and returns the set of recorded identifiers.
func (l *Ledger) Load() (map[string]struct{}, error) {
	out := make(map[string]struct{})
	data, err := l.store.Read(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		id := strings.TrimSpace(line)
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// Contains reports whether id was recorded before or during this run.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Record durably appends id to the backing file.
func (l *Ledger) Record(id string) error {
	if err := l.store.AppendLine(l.path, id); err != nil {
		return fmt.Errorf("ledger: record %s: %w", id, err)
	}
	l.seen[id] = struct{}{}
	return nil
}

// Len returns the number of distinct recorded identifiers.
func (l *Ledger) Len() int { return len(l.seen) }
