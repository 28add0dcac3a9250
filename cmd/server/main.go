package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/D371L/asmodeus/internal/app"
	"github.com/D371L/asmodeus/internal/config"
	"github.com/D371L/asmodeus/internal/storage"
	httpTransport "github.com/D371L/asmodeus/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting asmodeus wheel server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
	)

	// Open the persistence backend
	store, err := storage.Open(context.Background(), cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(store, logger)

	// Create wheel hub and bring back persisted wheels
	hub := app.NewWheelHub(cfg, repo, logger)

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := hub.Restore(restoreCtx); err != nil {
		logger.Warn("failed to restore wheels", "error", err)
	} else {
		logger.Info("wheels restored", "count", n)
	}
	cancelRestore()

	if err := hub.StartJobs(); err != nil {
		logger.Error("failed to schedule background jobs", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	server := httpTransport.NewServer(cfg, hub, logger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Flushes unsaved wheels and closes the store
	hub.Close(ctx)

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
