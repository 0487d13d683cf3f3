// Package ratelimit implements a fixed-window request counter per client,
// shared across instances through the cache store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"shortr/internal/platform/cache"
	"shortr/internal/platform/metrics"
)

const (
	keyPrefix = "rate_limit:"

	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Decision describes a client's standing in the current window.
type Decision struct {
	Count     int64
	Limit     int64
	Remaining int64
	// Reset is the time left until the window closes.
	Reset time.Duration
}

type ExceededError struct {
	Limit      int64
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per %s exceeded, retry after %s", e.Limit, e.Window, e.RetryAfter)
}

type Limiter struct {
	store  cache.Store
	limit  int64
	window time.Duration
	log    zerolog.Logger
}

func NewLimiter(store cache.Store, limit int64, window time.Duration, log zerolog.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		log:    log.With().Str("component", "rate_limiter").Logger(),
	}
}

func Key(clientID string) string {
	return keyPrefix + clientID
}

// Admit counts one request for clientID. Requests over the limit get an
// *ExceededError alongside the decision; rejected requests still count.
// Errors from the store are returned as-is for the caller to decide on.
func (l *Limiter) Admit(ctx context.Context, clientID string) (Decision, error) {
	key := Key(clientID)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("increment %s: %w", key, err)
	}

	reset := l.window
	if count == 1 {
		// First request opens the window. Only this writer sets the expiry.
		if _, err := l.store.Expire(ctx, key, l.window); err != nil {
			l.log.Warn().Err(err).Str("client", clientID).Msg("failed to start rate limit window")
		}
	} else if ttl, err := l.store.TTL(ctx, key); err != nil {
		l.log.Warn().Err(err).Str("client", clientID).Msg("failed to read rate limit window")
	} else if ttl > 0 {
		reset = ttl
	}

	d := Decision{
		Count:     count,
		Limit:     l.limit,
		Remaining: l.limit - count,
		Reset:     reset,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}

	if count <= l.limit {
		return d, nil
	}

	l.repairWindow(ctx, key)
	metrics.RateLimitRejections.Inc()
	return d, &ExceededError{Limit: l.limit, Window: l.window, RetryAfter: reset}
}

// repairWindow puts an expiry back on a counter that lost it, so a crash
// between INCR and EXPIRE cannot lock a client out for good. It never
// touches an existing expiry.
func (l *Limiter) repairWindow(ctx context.Context, key string) {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl > 0 {
		return
	}
	if _, err := l.store.Expire(ctx, key, l.window); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to repair rate limit window")
		return
	}
	l.log.Warn().Str("key", key).Msg("rate limit counter had no expiry; restored window")
}
