package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type cachedRoute struct {
	Distance float64 `json:"distance"`
	Steps    []string
}

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	c := NewCache(zaptest.NewLogger(t))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Set("route:a:b", cachedRoute{Distance: 1200, Steps: []string{"Head north"}}, time.Minute, "osrm"))

	var out cachedRoute
	found, err := c.Get("route:a:b", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1200.0, out.Distance)
	assert.Equal(t, []string{"Head north"}, out.Steps)

	found, err = c.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_Expiry(t *testing.T) {
	c, now := newTestCache(t)

	require.NoError(t, c.Set("k", 1, time.Minute, "test"))
	assert.False(t, c.IsStale("k"))

	*now = now.Add(2 * time.Minute)
	assert.True(t, c.IsStale("k"))

	var out int
	found, err := c.Get("k", &out)
	require.NoError(t, err)
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, 1, stats.StaleEntries)
	assert.Equal(t, 1, c.CleanupStale())
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_UnmarshalError(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Set("k", "text", time.Minute, "test"))

	var out int
	_, err := c.Get("k", &out)
	assert.Error(t, err)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Set("a", 1, time.Minute, "test"))
	require.NoError(t, c.Set("b", 2, time.Minute, "test"))

	c.Delete("a")
	assert.True(t, c.IsStale("a"))
	assert.Equal(t, 1, c.Stats().TotalEntries)

	c.Clear()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_PeriodicCleanupStopsWithContext(t *testing.T) {
	c := NewCache(zaptest.NewLogger(t))
	require.NoError(t, c.Set("short", 1, time.Millisecond, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartPeriodicCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Stats().TotalEntries == 0
	}, time.Second, 5*time.Millisecond)
}
