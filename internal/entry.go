// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/metacheck/internal/api"
	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/index"
	"github.com/starford/metacheck/internal/lims"
	"github.com/starford/metacheck/internal/mcpserver"
	"github.com/starford/metacheck/internal/metrics"
	"github.com/starford/metacheck/internal/reconcile"
	"github.com/starford/metacheck/internal/report"
	"github.com/starford/metacheck/internal/sse"
	"github.com/starford/metacheck/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger.
func newLogger(level slog.Level, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// components are the collaborators every command shares.
type components struct {
	store   storage.Provider
	fs      *storage.FS // nil unless the archive is local
	results *index.DB   // nil when persistence is disabled
	lims    *lims.Client
	metrics *metrics.Metrics
	checker *checker.Service
}

func (c *components) Close() {
	if c.results != nil {
		c.results.Close()
	}
	if c.lims != nil {
		c.lims.Close()
	}
}

func build(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...checker.Option) (*components, error) {
	c := &components{metrics: metrics.New()}

	switch cfg.Storage.Driver {
	case StorageS3:
		s3, err := storage.NewS3(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.store = s3
	default:
		fs, err := storage.NewFS(cfg.Storage.FS.Root)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.store, c.fs = fs, fs
	}

	engine, err := reconcile.NewEngine(cfg.EngineRules())
	if err != nil {
		return nil, fmt.Errorf("init rules: %w", err)
	}

	opts := []checker.Option{
		checker.WithLogger(logger),
		checker.WithConcurrency(cfg.App.Concurrency),
		checker.WithMetrics(c.metrics),
	}
	if cfg.Results.Path != "" {
		db, err := index.Open(cfg.Results.Path)
		if err != nil {
			return nil, fmt.Errorf("init results: %w", err)
		}
		c.results = db
		opts = append(opts, checker.WithRunStore(db))
	}
	if cfg.LIMS.Enabled() {
		client, err := lims.Open(ctx, cfg.LIMS)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init lims: %w", err)
		}
		c.lims = client
		opts = append(opts, checker.WithLIMS(client))
	}

	c.checker = checker.New(engine, c.store, append(opts, extra...)...)
	return c, nil
}

// RunCheck checks the requested files once, writes the report and returns
// the process exit code.
func RunCheck(ctx context.Context, req checker.Request, format string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return report.ExitFailure, err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stderr)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return report.ExitFailure, err
	}
	defer c.Close()

	rep, err := c.checker.Run(ctx, req)
	if err != nil {
		return report.ExitFailure, err
	}
	if err := report.Write(app.out, rep, format); err != nil {
		return report.ExitFailure, fmt.Errorf("write report: %w", err)
	}
	return report.ExitCode(rep), nil
}

// RunServe starts the HTTP API.
func RunServe(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("results_path", cfg.Results.Path),
		slog.Bool("lims", cfg.LIMS.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := build(ctx, cfg, logger, checker.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer c.Close()

	apiRouter := api.NewRouter(c.checker, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if app.watch {
		g.Go(func() error {
			return runWatcher(gCtx, cfg, c, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

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

// RunWatch re-checks files of a local archive whenever they change.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	return runWatcher(ctx, cfg, c, logger)
}

func runWatcher(ctx context.Context, cfg *Config, c *components, logger *slog.Logger) error {
	if c.fs == nil {
		return fmt.Errorf("watch: storage driver %q cannot be watched", cfg.Storage.Driver)
	}
	if c.results == nil {
		return fmt.Errorf("watch: results.path is required")
	}

	lock, err := index.LockWatcher(cfg.Results.Path)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	// Initial sync.
	if err := index.Sync(ctx, c.results, c.fs, logger, c.checker.CheckPaths); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return index.Watch(ctx, c.results, c.fs, logger, c.checker.CheckPaths, index.DefaultDebounce)
}

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg.App.LogLevel, os.Stderr)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(c.checker, app.version).ServeStdio()
}

// RunRuns prints one stored run, or the list of stored runs when id is empty.
func RunRuns(ctx context.Context, id string, limit, offset int, format string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	newLogger(cfg.App.LogLevel, os.Stderr)

	if cfg.Results.Path == "" {
		return fmt.Errorf("runs: results.path is required")
	}
	db, err := index.Open(cfg.Results.Path)
	if err != nil {
		return fmt.Errorf("init results: %w", err)
	}
	defer db.Close()

	if id != "" {
		rep, err := db.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("run %s: %w", id, err)
		}
		return report.Write(app.out, rep, format)
	}
	runs, total, err := db.ListRuns(ctx, limit, offset)
	if err != nil {
		return err
	}
	return report.WriteRuns(app.out, runs, total, format)
}
