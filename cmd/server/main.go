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

	"github.com/pauljones0/smart-shopper/internal/api"
	"github.com/pauljones0/smart-shopper/internal/app"
	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/logging"
)

const (
	reapInterval = time.Minute
	trimInterval = 15 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("Starting Smart Shopper server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Critical error initializing services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	registry := api.NewRegistry(a.NewSession, cfg.MaxSessions, cfg.SessionIdleTimeout, logger)
	defer registry.Close()
	go registry.Run(ctx, reapInterval)
	go a.TrimCache(ctx, trimInterval)

	srv := api.New(cfg, registry, a.Gateway, a.Analyzer, a.Validator, logger)

	// WriteTimeout leaves room for a full fetch cycle against slow sources.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	logger.Info("Listening on port", "port", cfg.Port, "docs", "/docs")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped.")
}
