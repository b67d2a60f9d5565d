// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/birbbrain/internal/api"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/ingest"
	"github.com/starford/birbbrain/internal/jobs"
	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/mcpserver"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/noteservice"
	"github.com/starford/birbbrain/internal/storage"
)

// Version is reported by the MCP server and the CLI.
var Version = "dev"

// runtime holds the collaborators shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	metrics *metrics.Collector
	driver  *ingest.Driver
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout, out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.jobsPath != "" {
		app.config.Jobs.Path = app.jobsPath
	}
	if app.vaultPath != "" {
		app.config.Vault.Path = app.vaultPath
	}
	return app, nil
}

// setup installs the logger, creates the vault layout and wires the
// ingestion pipeline.
func (app *application) setup() (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("jobs_path", cfg.Jobs.Path),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.Init(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	l, err := ledger.Open(store, storage.LedgerFile)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	m := metrics.NewCollector("birbbrain")
	getter := app.getter
	if getter == nil {
		getter = fetch.NewClient(cfg.HTTP.Options(), logger, m)
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		driver:  ingest.NewPipeline(store, l, getter, cfg.Endpoints(), logger, m),
	}, nil
}

// batch loads the job source, runs every job and refreshes the index.
func (rt *runtime) batch(ctx context.Context) (ingest.Report, error) {
	logger := rt.logger.With(slog.String("run_id", uuid.NewString()))

	list, err := jobs.Load(rt.cfg.Jobs.Path, logger)
	if err != nil {
		return ingest.Report{}, err
	}
	logger.Info("jobs loaded", slog.Int("count", len(list)))

	rep, err := rt.driver.Run(ctx, list)
	if err != nil {
		return rep, err
	}

	if err := rt.syncIndex(); err != nil {
		logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
	return rep, nil
}

func (rt *runtime) syncIndex() error {
	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = index.Sync(db, rt.store, rt.logger)
	return err
}

func (rt *runtime) writeMetrics() {
	if rt.cfg.Metrics.Textfile == "" {
		return
	}
	if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.Textfile); err != nil {
		rt.logger.Warn("metrics dump failed", slog.String("error", err.Error()))
	}
}

// Run processes the job source once.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.writeMetrics()

	if _, err := rt.batch(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// Watch runs the job source once and again whenever it changes, until ctx
// is cancelled or a shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return ingest.WatchJobs(ctx, rt.cfg.Jobs.Path, ingest.DefaultDebounce, rt.logger, func(ctx context.Context) {
		if _, err := rt.batch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("run failed", slog.String("error", err.Error()))
		}
		rt.writeMetrics()
	})
}

// Search syncs the index and prints the hits for query.
func Search(_ context.Context, query string, limit int, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	if _, err := index.Sync(db, rt.store, rt.logger); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	results, err := db.Search(query, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	for _, r := range results {
		fmt.Fprintf(app.out, "%s\t%s\n", r.Path, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(app.out, "\t%s\n", r.Snippet)
		}
	}
	return nil
}

// ServeMCP exposes the vault over MCP on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	if _, err := index.Sync(db, rt.store, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(ctx, db, rt.store, rt.store.Root(), rt.logger); err != nil {
			rt.logger.Error("index watcher failed", slog.String("error", err.Error()))
		}
	}()

	svc := noteservice.NewService(rt.store, db, rt.driver, rt.logger)
	return mcpserver.New(svc, Version).ServeStdio()
}

// Serve starts the HTTP API with the vault watcher until a shutdown signal.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	cfg, logger := rt.cfg, rt.logger

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if _, err := index.Sync(db, rt.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := noteservice.NewService(rt.store, db, rt.driver, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, db, rt.store, rt.store.Root(), logger)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or when another goroutine fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
