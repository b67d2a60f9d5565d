package internal

import (
	"io"

	"github.com/starford/birbbrain/internal/fetch"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	jobsPath  string
	vaultPath string
	getter    fetch.Getter
	logOut    io.Writer
	out       io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithJobsPath overrides the configured job source pattern.
func WithJobsPath(p string) Option {
	return func(a *application) {
		a.jobsPath = p
	}
}

// WithVaultPath overrides the configured vault directory.
func WithVaultPath(p string) Option {
	return func(a *application) {
		a.vaultPath = p
	}
}

// WithGetter replaces the outbound HTTP client.
func WithGetter(g fetch.Getter) Option {
	return func(a *application) {
		a.getter = g
	}
}

// WithLogOutput sends structured logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithOutput sets where command results (e.g. search hits) are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
