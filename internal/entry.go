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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/inkwell/internal/api"
	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/assets"
	"github.com/starford/inkwell/internal/index"
	"github.com/starford/inkwell/internal/mcpserver"
	"github.com/starford/inkwell/internal/notify"
	"github.com/starford/inkwell/internal/preview"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/watch"
	"github.com/starford/inkwell/internal/workspace"
)

// newApplication applies opts and installs the JSON logger as the default.
func newApplication(opts ...Option) (*application, *slog.Logger, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// newWorkspace wires the workspace to the database and the notification
// sinks. db and events may be nil.
func newWorkspace(cfg *Config, db *index.DB, events workspace.Publisher, sink notify.Sink, logger *slog.Logger) (*workspace.Workspace, error) {
	renderer, err := preview.New(cfg.Preview.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("init preview: %w", err)
	}
	opts := workspace.Options{
		ContentDir: cfg.Site.ContentDir,
		StaticDir:  cfg.Site.StaticDir,
		ImagesDir:  cfg.Site.ImagesDir,
		Sink:       sink,
		Preview:    renderer,
		Uploader: assets.Uploader{
			MaxBytes:  cfg.Uploads.MaxBytes,
			MaxWidth:  cfg.Uploads.MaxWidth,
			URLPrefix: cfg.Site.ImageURLPrefix,
		},
		Logger: logger,
	}
	if db != nil {
		opts.Grants = db
		opts.Mirror = db
	}
	if events != nil {
		opts.Events = events
	}
	return workspace.New(opts)
}

// openSite selects the configured root, or restores the remembered one.
// Having no site is not fatal: clients can select one later.
func openSite(ctx context.Context, ws *workspace.Workspace, cfg *Config, logger *slog.Logger) {
	var err error
	if cfg.Site.Root != "" {
		_, err = ws.Select(ctx, cfg.Site.Root)
	} else {
		_, err = ws.Restore(ctx)
	}
	switch {
	case err == nil:
		logger.Info("Site loaded", slog.String("site_root", ws.Root()))
	case errors.Is(err, apperr.ErrNotFound):
		logger.Info("No site selected yet")
	default:
		logger.Warn("Site not loaded", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("site_root", cfg.Site.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	ws, err := newWorkspace(cfg, db, broker, notify.Fanout{broker, notify.LogSink{Logger: logger}}, logger)
	if err != nil {
		return err
	}
	defer ws.Close()
	openSite(ctx, ws, cfg, logger)

	apiRouter := api.NewRouter(ws, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Images at the URL posts use, so previews resolve them.
	r.Get(strings.TrimRight(cfg.Site.ImageURLPrefix, "/")+"/*", api.NewHandler(ws).ServeMedia)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Follow the selected site on disk.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return ws.Watch(gCtx, watch.Options{Debounce: cfg.Watch.Debounce, Logger: logger})
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

		// Stops the watcher and any other worker tied to gCtx.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the configured
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	ws, err := newWorkspace(cfg, db, nil, notify.LogSink{Logger: logger}, logger)
	if err != nil {
		return err
	}
	defer ws.Close()
	openSite(ctx, ws, cfg, logger)

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(ws).ServeStdio()
}

// RunScan indexes the site at root once and prints its posts and the images
// no post references. The remembered site is left untouched.
func RunScan(ctx context.Context, root string, out io.Writer, opts ...Option) error {
	app, logger, err := newApplication(opts...)
	if err != nil {
		return err
	}
	ws, err := newWorkspace(app.config, nil, nil, notify.LogSink{Logger: logger}, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ix, err := ws.Select(ctx, root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	aix, err := ws.Assets(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	return writeReport(out, ix, aix)
}
