// Package storage persists sentiment verdicts between searches so a product
// page seen again is not re-scraped and re-classified.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/models"
)

// Cache is a verdict store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.Sentiment, bool, error)
	Set(ctx context.Context, key string, s models.Sentiment) error
	// Trim deletes the oldest entries until at most maxEntries remain.
	Trim(ctx context.Context, maxEntries int) error
	Close() error
}

// Open returns the cache selected by cfg.CacheBackend, or nil when caching is off.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheNone:
		return nil, nil
	case config.CacheSQLite:
		c, err := NewSQLiteCache(cfg.CacheDBPath, cfg.CacheTTL, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.CacheFirestore:
		c, err := NewFirestoreCache(ctx, cfg.ProjectID, cfg.CacheTTL, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

func expired(storedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(storedAt) > ttl
}
