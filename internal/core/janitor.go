package core

// janitor.go runs periodic session expiry. It removes sessions whose last
// activity is older than the TTL, in any status, along with their chunks
// and assembled files. It runs once on start and then every interval
// until its context is cancelled. Sweep failures are logged, never fatal.

import (
	"context"
	"log/slog"
	"time"
)

// Janitor defaults for zero config values.
const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultJanitorInterval = 10 * time.Minute
)

// Janitor expires idle sessions from a SessionStore.
type Janitor struct {
	store    *SessionStore
	ttl      time.Duration
	interval time.Duration
}

// NewJanitor returns a janitor for store.
func NewJanitor(store *SessionStore, ttl, interval time.Duration) *Janitor {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{store: store, ttl: ttl, interval: interval}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	slog.Info("session janitor started",
		"ttl", j.ttl.String(),
		"interval", j.interval.String(),
	)

	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one expiry pass and returns the number of sessions removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := time.Now()
	cutoff := j.store.now().Add(-j.ttl)

	removed, err := j.store.Expire(ctx, cutoff)
	if err != nil {
		slog.Error("session expiry failed", "error", err, "removed", removed)
		return removed
	}
	if removed > 0 {
		slog.Info("expired upload sessions",
			"removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return removed
}
