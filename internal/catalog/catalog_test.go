package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(Delays{}, nil)
	require.NoError(t, err)
	return c
}

func ids(places []Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	c := loadCatalog(t)
	ctx := context.Background()

	tests := []struct {
		query string
		want  int
	}{
		{"Ahmedabad", 8},
		{"ahmedabad", 8},
		{"  AHMEDABAD ", 8},
		{"AHMED", 0},
		{"a", 0},
		{"Things to do in Ahmedabad", 8},
		{"Mumbai", 0},
		{"", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			places, err := c.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.NotNil(t, places)
			assert.Len(t, places, tt.want)
		})
	}
}

func TestSearch_DelayHonoursContext(t *testing.T) {
	c, err := Load(Delays{Search: time.Hour}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "Ahmedabad")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetails(t *testing.T) {
	c := loadCatalog(t)

	place, err := c.Details(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "ISKCON Temple", place.Name)
	assert.Equal(t, geo.Point{Latitude: 23.0727, Longitude: 72.5175}, place.Location)
	require.NotNil(t, place.BusinessFeatures)
	assert.Equal(t, "+91 79 2685 1945", place.BusinessFeatures.Phone)

	_, err = c.Details(context.Background(), "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilters(t *testing.T) {
	c := loadCatalog(t)
	ctx := context.Background()

	business, err := c.BusinessFriendly(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "7", "8"}, ids(business))

	religious, err := c.ByCategory(ctx, "Religious Site")
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, ids(religious))

	none, err := c.ByCategory(ctx, "religious site")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Contains(t, c.Categories(), "Historic Site")
	assert.Len(t, c.Categories(), 6)
}

func TestPopular(t *testing.T) {
	c := loadCatalog(t)
	popular, err := c.Popular(context.Background())
	require.NoError(t, err)
	require.Len(t, popular, 10)
	assert.Equal(t, "Ahmedabad", popular[0])

	popular[0] = "Changed"
	again, _ := c.Popular(context.Background())
	assert.Equal(t, "Ahmedabad", again[0])
}

func TestNearby(t *testing.T) {
	c := loadCatalog(t)
	kalupur := geo.Point{Latitude: 23.025, Longitude: 72.571}

	near, err := c.Nearby(context.Background(), kalupur, 1500)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "8"}, ids(near))

	wide, err := c.Nearby(context.Background(), kalupur, 50000)
	require.NoError(t, err)
	assert.Len(t, wide, 8)
	assert.Equal(t, "1", wide[0].ID)
	assert.Equal(t, "6", wide[7].ID, "Adalaj is the farthest")

	_, err = c.Nearby(context.Background(), geo.Point{Latitude: 100}, 10)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestNew_RejectsBadPlaces(t *testing.T) {
	_, err := New([]Place{{ID: "1", Location: geo.Point{}}, {ID: "1"}}, nil, Delays{}, nil)
	assert.ErrorContains(t, err, "duplicate place id")

	_, err = New([]Place{{ID: "1", Location: geo.Point{Latitude: -91}}}, nil, Delays{}, nil)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	_, err = New([]Place{{Name: "Nameless"}}, nil, Delays{}, nil)
	assert.Error(t, err)
}

func TestPlace_Pin(t *testing.T) {
	c := loadCatalog(t)
	place, err := c.Details(context.Background(), "8")
	require.NoError(t, err)

	pin := place.Pin()
	assert.Equal(t, "The House of MG", pin.Name)
	assert.True(t, pin.BusinessFriendly)
	assert.Equal(t, "The House of MG\nAccommodation\n4.6/5 ★\nBusiness Friendly", pin.PopupText())
	assert.Len(t, Pins([]Place{place, place}), 2)
}
