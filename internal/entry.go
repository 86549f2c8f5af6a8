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

	"github.com/starford/uhskit/internal/api"
	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/mcpserver"
	"github.com/starford/uhskit/internal/sse"
	"github.com/starford/uhskit/internal/storage"
)

// library bundles what every surface needs to read hint files.
type library struct {
	store *storage.FS
	db    *index.DB
	opts  index.Options
	svc   *hintservice.Service
}

func (l *library) Close() error {
	return l.db.Close()
}

// openLibrary prepares storage and the catalog and runs the initial sync.
func openLibrary(ctx context.Context, cfg *Config, logger *slog.Logger) (*library, error) {
	opts, err := cfg.IndexOptions()
	if err != nil {
		return nil, fmt.Errorf("snapshot options: %w", err)
	}

	// Ensure library directory exists.
	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := hintservice.NewService(store, db, opts, logger)
	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &library{store: store, db: db, opts: opts, svc: svc}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server and the library watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newLogger(os.Stdout, cfg.App.LogLevel)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("snapshot_compression", cfg.Snapshot.Compression),
		slog.String("log_level", cfg.App.LogLevel.String()))

	lib, err := openLibrary(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer lib.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(lib.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker.PublishFileChange)

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
		if err := lib.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the library and forward changes to SSE clients.
	g.Go(func() error {
		err := index.Watch(gCtx, lib.db, lib.store, cfg.Library.Path, lib.opts, logger, broker.PublishFileChange)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var (
	errConfigRequired = errors.New("config is required")
	// errShutdown cancels the group so the watcher exits with the server.
	errShutdown = errors.New("shutdown")
)

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they
// never mix with protocol frames.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger := app.logger
	if logger == nil {
		logger = newLogger(os.Stderr, app.config.App.LogLevel)
	}

	lib, err := openLibrary(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer lib.Close()

	logger.Info("MCP server starting", slog.String("library_path", app.config.Library.Path))
	return mcpserver.New(lib.svc).ServeStdio()
}
