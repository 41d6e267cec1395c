package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter() (*Limiter, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(NewMemoryStore())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckLimit_AllowsUpToMax(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	ctx := context.Background()

	for i := range 5 {
		res, err := l.CheckLimit(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed, "call %d should be allowed", i+1)
		require.Equal(t, 4-i, res.Remaining)
	}

	res, err := l.CheckLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.False(t, res.ResetAt.IsZero())
}

func TestCheckLimit_WindowSlides(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter()
	ctx := context.Background()

	for range 5 {
		res, err := l.CheckLimit(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := l.CheckLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	*now = now.Add(61 * time.Second)

	res, err = l.CheckLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCheckLimit_ResetAtDerivedFromOldest(t *testing.T) {
	t.Parallel()

	l, now := newTestLimiter()
	ctx := context.Background()
	start := *now

	_, err := l.CheckLimit(ctx, "k", 2, time.Hour)
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)
	_, err = l.CheckLimit(ctx, "k", 2, time.Hour)
	require.NoError(t, err)

	res, err := l.CheckLimit(ctx, "k", 2, time.Hour)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, start.Add(time.Hour), res.ResetAt)
}

func TestCheckLimit_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	ctx := context.Background()

	res, err := l.CheckLimit(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.CheckLimit(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = l.CheckLimit(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestCount_DoesNotConsume(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	ctx := context.Background()

	_, err := l.CheckLimit(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	for range 3 {
		n, err := l.Count(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
}

func TestMemoryStore_SweepDropsIdleKeys(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-25 * time.Hour)

	require.NoError(t, store.Add(ctx, "stale", old, SweepBound))
	require.NoError(t, store.Add(ctx, "fresh", time.Now(), SweepBound))

	require.NoError(t, store.Sweep(ctx, time.Now().Add(-SweepBound)))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotContains(t, store.requests, "stale")
	require.Contains(t, store.requests, "fresh")
}
