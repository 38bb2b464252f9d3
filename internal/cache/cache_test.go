package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCacheBasicGetSet(t *testing.T) {
	c := New[string](3, time.Minute)

	c.Set("a", "A")
	c.Set("b", "B")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](3, time.Minute)

	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")
	c.Set("k4", "v4") // evicts k1

	_, ok := c.Get("k1")
	assert.False(t, ok, "k1 should have been evicted")

	for _, k := range []string{"k2", "k3", "k4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should survive", k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCacheAccessPromotesEntry(t *testing.T) {
	c := New[string](2, time.Minute)

	c.Set("a", "A")
	c.Set("b", "B")

	// Touch "a" so "b" becomes least recently used.
	c.Get("a")
	c.Set("c", "C")

	_, ok := c.Get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestCacheUpdateRefreshesEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock[string](2, time.Minute, clock)

	c.Set("a", "A1")
	clock.Advance(50 * time.Second)
	c.Set("a", "A2")
	clock.Advance(30 * time.Second)

	// 80s after first write but only 30s after the refresh.
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock[string](10, time.Minute, clock)

	c.Set("a", "A")
	clock.Advance(59 * time.Second)

	_, ok := c.Get("a")
	assert.True(t, ok, "entry still within TTL")

	clock.Advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expired")
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on access")
}

func TestCacheCleanExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock[string](10, time.Minute, clock)

	c.Set("old1", "x")
	c.Set("old2", "x")
	clock.Advance(2 * time.Minute)
	c.Set("fresh", "x")

	removed := c.CleanExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCacheClearAndStats(t *testing.T) {
	c := New[int](4, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	stats := c.GetStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
	assert.InDelta(t, 0.5, stats.Utilization, 1e-9)

	c.Clear()
	assert.Equal(t, 0, c.Len())

	// The cache is still usable after Clear.
	c.Set("c", 3)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
