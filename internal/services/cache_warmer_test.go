package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCacheWarmer_WarmsEveryLeg(t *testing.T) {
	places := newPlaces(t)
	ctx := context.Background()
	for _, id := range []string{"1", "4", "5"} {
		_, err := places.AddToItinerary(ctx, id)
		require.NoError(t, err)
	}

	router := &stubRouter{}
	w := NewCacheWarmer(router, places, zaptest.NewLogger(t))

	result, err := w.WarmItinerary(ctx)
	require.NoError(t, err)
	assert.Equal(t, WarmResult{Legs: 2, Warmed: 2}, result)
	assert.Equal(t, 2, router.Calls())
}

func TestCacheWarmer_SkipsShortItinerary(t *testing.T) {
	places := newPlaces(t)
	_, err := places.AddToItinerary(context.Background(), "1")
	require.NoError(t, err)

	router := &stubRouter{}
	result, err := NewCacheWarmer(router, places, nil).WarmItinerary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Legs)
	assert.Zero(t, router.Calls())
}

func TestCacheWarmer_ReportsFailedLegs(t *testing.T) {
	places := newPlaces(t)
	ctx := context.Background()
	for _, id := range []string{"1", "4"} {
		_, err := places.AddToItinerary(ctx, id)
		require.NoError(t, err)
	}

	router := &stubRouter{err: assert.AnError}
	result, err := NewCacheWarmer(router, places, zaptest.NewLogger(t)).WarmItinerary(ctx)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, WarmResult{Legs: 1, Failed: 1}, result)
}
