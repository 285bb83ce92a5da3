package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
)

func TestPlacesService_Itinerary(t *testing.T) {
	s := newPlaces(t)
	ctx := context.Background()

	places, err := s.AddToItinerary(ctx, "5")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "5", places[0].ID)

	places, err = s.AddToItinerary(ctx, "5")
	require.NoError(t, err)
	assert.Len(t, places, 1)

	_, err = s.AddToItinerary(ctx, "404")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	ok, err := s.InItinerary(ctx, "5")
	require.NoError(t, err)
	assert.True(t, ok)

	places, err = s.RemoveFromItinerary(ctx, "5")
	require.NoError(t, err)
	assert.Empty(t, places)

	_, err = s.AddToItinerary(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, s.ClearItinerary(ctx))
	places, err = s.Itinerary(ctx)
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestPlacesService_Resolve(t *testing.T) {
	s := newPlaces(t)
	ctx := context.Background()

	place, err := s.Resolve(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, iskcon, place.Location)

	saved := place
	saved.Name = "ISKCON (saved)"
	_, err = s.itinerary.Add(ctx, saved)
	require.NoError(t, err)

	place, err = s.Resolve(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "ISKCON (saved)", place.Name)

	_, err = s.Resolve(ctx, "404")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestPlacesService_CatalogPassthrough(t *testing.T) {
	s := newPlaces(t)
	ctx := context.Background()

	results, err := s.Search(ctx, "Ahmedabad")
	require.NoError(t, err)
	assert.Len(t, results, 8)

	popular, err := s.Popular(ctx)
	require.NoError(t, err)
	assert.Len(t, popular, 10)

	nearby, err := s.Nearby(ctx, kalupur, 1500)
	require.NoError(t, err)
	assert.Len(t, nearby, 3)

	assert.Len(t, s.Categories(), 6)
}
