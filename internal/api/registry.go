package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/session"
)

// Registry holds the live search sessions keyed by an opaque ID.
type Registry struct {
	newSession  func() *session.Controller
	maxSessions int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Controller
}

func NewRegistry(newSession func() *session.Controller, maxSessions int, idleTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		newSession:  newSession,
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "registry"),
		sessions:    make(map[string]*session.Controller),
	}
}

// Create starts a new session, evicting the least recently active one when full.
func (r *Registry) Create() (string, *session.Controller) {
	id := uuid.NewString()
	c := r.newSession()

	var evicted *session.Controller
	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		var oldestID string
		var oldest time.Time
		for sid, s := range r.sessions {
			if last := s.LastActive(); oldestID == "" || last.Before(oldest) {
				oldestID, oldest = sid, last
			}
		}
		evicted = r.sessions[oldestID]
		delete(r.sessions, oldestID)
		r.logger.Info("Evicting least recently used session", "id", oldestID)
	}
	r.sessions[id] = c
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return id, c
}

func (r *Registry) Get(id string) (*session.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return c, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	c.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than the idle timeout and returns how many were removed.
func (r *Registry) Reap(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	var stale []*session.Controller
	r.mu.Lock()
	for id, c := range r.sessions {
		if now.Sub(c.LastActive()) > r.idleTimeout {
			stale = append(stale, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("Reaped idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run reaps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}

// Close shuts down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*session.Controller)
	r.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}
