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
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardsync/internal/api"
	"github.com/starford/cardsync/internal/mcpserver"
	"github.com/starford/cardsync/internal/sse"
	"github.com/starford/cardsync/internal/watcher"
)

// Run starts the HTTP server, the initial index build and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := NewLogger(cfg.App, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("size_policy", cfg.Cards.SizePolicy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := Open(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial index build.
	g.Go(func() error {
		if _, err := rt.Service.Rebuild(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial index build failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start file watcher.
	g.Go(func() error {
		if err := watcher.Watch(gCtx, cfg.Vault.Path, logger, rt.Service, watcher.Config{}); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio while the watcher keeps the indexes
// current. Logs go to stderr unless a log file is configured, since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	logger := NewLogger(cfg.App, app.logOutput)
	slog.SetDefault(logger)

	rt, err := Open(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Service.Rebuild(ctx); err != nil {
		logger.Warn("initial index build failed", slog.String("error", err.Error()))
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error {
		return watcher.Watch(wctx, cfg.Vault.Path, logger, rt.Service, watcher.Config{})
	})

	logger.Info("mcp: serving on stdio", slog.String("version", app.version))
	serveErr := mcpserver.New(rt.Service, app.version).ServeStdio()
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn("watcher stopped", slog.String("error", err.Error()))
	}
	return serveErr
}
