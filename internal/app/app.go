// Package app assembles the collaborators shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pauljones0/smart-shopper/internal/backend"
	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/enricher"
	"github.com/pauljones0/smart-shopper/internal/gateway"
	"github.com/pauljones0/smart-shopper/internal/notifier"
	"github.com/pauljones0/smart-shopper/internal/scraper"
	"github.com/pauljones0/smart-shopper/internal/sentiment"
	"github.com/pauljones0/smart-shopper/internal/session"
	"github.com/pauljones0/smart-shopper/internal/storage"
	"github.com/pauljones0/smart-shopper/internal/validator"
)

// analysesPerChunk multiplies the chunk size into the process-wide cap on
// concurrent analyzer calls across all sessions.
const analysesPerChunk = 4

type App struct {
	Config    *config.Config
	Validator *validator.Validator
	Gateway   gateway.Gateway
	Analyzer  *sentiment.Analyzer
	Scheduler *enricher.Scheduler
	Cache     storage.Cache
	Notifier  session.RecommendationNotifier

	closers []io.Closer
	logger  *slog.Logger
}

// Build wires the gateway, classifier, cache, scheduler and notifier selected by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Validator: validator.New(), logger: logger}

	if cfg.SearchServiceURL != "" {
		a.Gateway = gateway.NewHTTPGateway(backend.NewClient(cfg.SearchServiceURL, cfg.RequestTimeout), a.Validator, logger)
		logger.Info("Using search service", "url", cfg.SearchServiceURL)
	} else {
		scrapers, err := scraper.New(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, scrapers)
		a.Gateway = gateway.NewScraperGateway(scrapers, a.Validator, cfg.RequestTimeout, logger)
	}

	var classifier sentiment.Classifier
	switch cfg.Classifier {
	case config.ClassifierGemini:
		gc, err := sentiment.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		classifier = gc
	default:
		classifier = sentiment.NewHTTPClassifier(backend.NewClient(cfg.AnalysisServiceURL, cfg.RequestTimeout))
	}
	logger.Info("Sentiment classifier configured", "classifier", cfg.Classifier)

	cache, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening verdict cache: %w", err)
	}
	var verdicts sentiment.VerdictCache
	if cache != nil {
		a.Cache = cache
		a.closers = append(a.closers, cache)
		verdicts = cache
	}

	a.Analyzer = sentiment.NewAnalyzer(a.Gateway, classifier, verdicts, logger)
	a.Scheduler = enricher.New(a.Analyzer, cfg.EnrichChunkSize, int64(cfg.EnrichChunkSize*analysesPerChunk), logger)

	if cfg.DiscordWebhookURL != "" {
		a.Notifier = notifier.New(cfg.DiscordWebhookURL)
	}
	return a, nil
}

// NewSession creates a search session controller using the shared collaborators.
func (a *App) NewSession() *session.Controller {
	return session.NewController(a.Gateway, a.Scheduler, session.Options{
		Sources:   a.Config.Sources,
		BatchSize: a.Config.SearchBatchSize,
		SortMode:  a.Config.DefaultSort,
		Notifier:  a.Notifier,
		Logger:    a.logger,
	})
}

// TrimCache keeps the verdict cache bounded every interval until ctx is cancelled.
func (a *App) TrimCache(ctx context.Context, interval time.Duration) {
	if a.Cache == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Cache.Trim(ctx, a.Config.MaxCachedVerdicts); err != nil {
				a.logger.Warn("Failed to trim verdict cache", "error", err)
			}
		}
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
