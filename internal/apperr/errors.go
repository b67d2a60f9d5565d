// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyThread marks a thread fetch that returned no posts; the job is retried next run.
	ErrEmptyThread = errors.New("empty thread")
)
