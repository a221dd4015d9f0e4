package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/pauljones0/smart-shopper/internal/models"
)

const verdictsTable = "verdicts"

// SQLiteCache keeps verdicts in a local SQLite file.
type SQLiteCache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewSQLiteCache(dbPath string, ttl time.Duration, logger *slog.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open verdict cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdicts (
			key TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			stored_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create verdicts table: %w", err)
	}

	return &SQLiteCache{db: db, ttl: ttl, now: time.Now, logger: logger.With("component", "sqlite_cache")}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (models.Sentiment, bool, error) {
	var (
		verdict    string
		confidence int
		storedAt   int64
	)
	err := sq.Select("verdict", "confidence", "stored_at").
		From(verdictsTable).
		Where(sq.Eq{"key": key}).
		RunWith(c.db).
		QueryRowContext(ctx).
		Scan(&verdict, &confidence, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sentiment{}, false, nil
	}
	if err != nil {
		return models.Sentiment{}, false, fmt.Errorf("get verdict %s: %w", key, err)
	}

	if expired(time.Unix(storedAt, 0), c.now(), c.ttl) {
		return models.Sentiment{}, false, nil
	}

	v, err := models.ParseVerdict(verdict)
	if err != nil {
		c.logger.Warn("Discarding unreadable cached verdict", "key", key, "error", err)
		return models.Sentiment{}, false, nil
	}
	return models.Sentiment{Verdict: v, Confidence: confidence}, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, s models.Sentiment) error {
	_, err := sq.Insert(verdictsTable).
		Columns("key", "verdict", "confidence", "stored_at").
		Values(key, string(s.Verdict), s.Confidence, c.now().Unix()).
		Suffix("ON CONFLICT(key) DO UPDATE SET verdict = excluded.verdict, confidence = excluded.confidence, stored_at = excluded.stored_at").
		RunWith(c.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("store verdict %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Trim(ctx context.Context, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}
	res, err := sq.Delete(verdictsTable).
		Where(sq.Expr("key NOT IN (SELECT key FROM verdicts ORDER BY stored_at DESC, key LIMIT ?)", maxEntries)).
		RunWith(c.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("trim verdicts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Info("Trimmed verdict cache", "deleted", n, "max", maxEntries)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
