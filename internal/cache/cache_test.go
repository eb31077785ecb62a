package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock) *Cache {
	t.Helper()
	c := New(Config{DefaultTTL: time.Hour, SweepInterval: time.Hour}, clock, nil)
	t.Cleanup(c.Close)
	return c
}

func TestGetOrCompute_ComputesOncePerTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrCompute(context.Background(), "amazon:https://amazon.com/dp/B0TEST", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "value", v)

	v, err = c.GetOrCompute(context.Background(), "amazon:https://amazon.com/dp/B0TEST", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "value", v)
	require.Equal(t, 1, calls)

	clock.Advance(61 * time.Second)
	_, err = c.GetOrCompute(context.Background(), "amazon:https://amazon.com/dp/B0TEST", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestGetOrCompute_FailureIsNotCached(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	boom := errors.New("fetch failed")
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	_, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, c.Len())

	v, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestGet_LazyEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("k", 1, time.Minute)
	clock.Advance(2 * time.Minute)

	_, ok := c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestInvalidate_Idempotent(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("k", 1, time.Minute)
	c.Invalidate("k")
	c.Invalidate("k")
	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestSetTTL_ExtendsWithoutChangingValue(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("k", "original", time.Minute)
	require.True(t, c.SetTTL("k", time.Hour))
	require.False(t, c.SetTTL("missing", time.Hour))

	clock.Advance(30 * time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "original", v)
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("stale", 1, time.Minute)
	c.Set("fresh", 2, time.Hour)
	clock.Advance(10 * time.Minute)

	require.Equal(t, 1, c.sweep())
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	require.True(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "key"
			if n%2 == 0 {
				c.Set(key, n, time.Minute)
			} else {
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}
