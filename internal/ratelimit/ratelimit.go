// Package ratelimit implements a sliding-window request limiter keyed by
// arbitrary strings. The timestamp store is injected so a process-local
// in-memory store and a shared Redis store are interchangeable.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store persists request timestamps per key.
type Store interface {
	// Get returns the timestamps recorded for key that are after cutoff.
	Get(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error)

	// Add records a timestamp for key. The bound is the longest window any
	// caller uses and lets the store expire entries on its own.
	Add(ctx context.Context, key string, ts time.Time, bound time.Duration) error

	// Sweep removes keys with no timestamps after cutoff.
	Sweep(ctx context.Context, cutoff time.Time) error
}

// Result describes the outcome of a limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// SweepBound is the retention horizon for stored timestamps. No caller uses
// a window longer than 24h.
const SweepBound = 24 * time.Hour

// Limiter is a sliding-window rate limiter.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a Limiter backed by the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
	}
}

// CheckLimit records a request for key if fewer than max requests happened
// inside the window, and reports the remaining quota. On denial the result
// carries the time at which the oldest surviving request leaves the window.
func (l *Limiter) CheckLimit(ctx context.Context, key string, max int, window time.Duration) (Result, error) {
	now := l.now()

	times, err := l.store.Get(ctx, key, now.Add(-window))
	if err != nil {
		return Result{}, err
	}

	if len(times) >= max {
		oldest := times[0]
		for _, t := range times[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		return Result{Allowed: false, ResetAt: oldest.Add(window)}, nil
	}

	if err := l.store.Add(ctx, key, now, SweepBound); err != nil {
		return Result{}, err
	}

	return Result{Allowed: true, Remaining: max - len(times) - 1}, nil
}

// Count returns the number of requests recorded for key inside the window
// without consuming a slot.
func (l *Limiter) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	times, err := l.store.Get(ctx, key, l.now().Add(-window))
	if err != nil {
		return 0, err
	}
	return len(times), nil
}

// StartSweeper periodically purges keys with no activity inside SweepBound
// until the context is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, every time.Duration, logger *zerolog.Logger) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.store.Sweep(ctx, l.now().Add(-SweepBound)); err != nil {
					logger.Warn().Err(err).Msg("rate limit sweep failed")
				}
			}
		}
	}()
}
