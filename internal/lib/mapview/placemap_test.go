package mapview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

var (
	sabarmatiAshram = Pin{ID: "1", Name: "Sabarmati Ashram", Category: "Attraction", Rating: 4.5,
		Location: geo.Point{Latitude: 23.0608, Longitude: 72.5807}}
	kankariaLake = Pin{ID: "2", Name: "Kankaria Lake", Category: "Attraction", Rating: 4,
		Location: geo.Point{Latitude: 22.9986, Longitude: 72.6015}}
	hyattRegency = Pin{ID: "3", Name: "Hyatt Regency", Category: "Hotel", Rating: 4.6, BusinessFriendly: true,
		Location: geo.Point{Latitude: 23.0396, Longitude: 72.5316}}
)

func newTestPlaceMap(t *testing.T, scheduler *FrameScheduler) (*PlaceMap, *Canvas) {
	t.Helper()
	canvas := NewCanvas(800, 500)
	opts := DefaultPlaceMapOptions()
	opts.Scheduler = scheduler
	m, err := NewPlaceMap(canvas, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return m, canvas
}

func TestPin_PopupText(t *testing.T) {
	assert.Equal(t, "Sabarmati Ashram\nAttraction\n4.5/5 ★", sabarmatiAshram.PopupText())
	assert.Equal(t, "Kankaria Lake\nAttraction\n4/5 ★", kankariaLake.PopupText())
	assert.Equal(t, "Hyatt Regency\nHotel\n4.6/5 ★\nBusiness Friendly", hyattRegency.PopupText())
}

func TestPlaceMap_InitialView(t *testing.T) {
	_, canvas := newTestPlaceMap(t, nil)
	s := canvas.Snapshot()
	assert.Equal(t, geo.Point{Latitude: 23.0225, Longitude: 72.5714}, s.Center)
	assert.Equal(t, 12.0, s.Zoom)
	assert.Equal(t, DefaultTileSet().Standard, s.Tiles)
}

func TestPlaceMap_SetPlacesFitsBounds(t *testing.T) {
	m, canvas := newTestPlaceMap(t, nil)
	require.NoError(t, m.SetPlaces([]Pin{sabarmatiAshram, kankariaLake, {ID: "bad", Location: geo.Point{Latitude: 200}}}))

	s := canvas.Snapshot()
	require.Len(t, s.Markers, 2)
	assert.Equal(t, DefaultIconSet().Place, s.Markers[0].Options.Icon)
	assert.InDelta(t, (23.0608+22.9986)/2, s.Center.Latitude, 1e-9)
	assert.Len(t, m.Places(), 2)

	// Replacing places removes the old markers
	require.NoError(t, m.SetPlaces([]Pin{hyattRegency}))
	s = canvas.Snapshot()
	require.Len(t, s.Markers, 1)
	assert.Equal(t, MarkerID("place:3"), s.Markers[0].ID)
}

func TestPlaceMap_HoverHighlightsOnePlace(t *testing.T) {
	m, canvas := newTestPlaceMap(t, nil)
	require.NoError(t, m.SetPlaces([]Pin{sabarmatiAshram, kankariaLake}))
	icons := DefaultIconSet()

	m.Hover("2")

	hovered, _ := canvas.Marker("place:2")
	other, _ := canvas.Marker("place:1")
	assert.Equal(t, icons.PlaceHighlighted, hovered.Options.Icon)
	assert.True(t, hovered.Options.PopupOpen)
	assert.Equal(t, kankariaLake.Location, canvas.Snapshot().Center)
	assert.Equal(t, icons.Place, other.Options.Icon)
	assert.False(t, other.Options.PopupOpen)

	m.Hover("")
	hovered, _ = canvas.Marker("place:2")
	assert.Equal(t, icons.Place, hovered.Options.Icon)
	assert.False(t, hovered.Options.PopupOpen)
	assert.Equal(t, "", m.Hovered())
}

func TestPlaceMap_HoverIsDebouncedPerFrame(t *testing.T) {
	scheduler := NewFrameScheduler(time.Hour)
	m, canvas := newTestPlaceMap(t, scheduler)
	require.NoError(t, m.SetPlaces([]Pin{sabarmatiAshram, kankariaLake, hyattRegency}))

	m.Hover("1")
	m.Hover("2")
	m.Hover("3")
	assert.Equal(t, uint64(2), scheduler.Dropped())

	before, _ := canvas.Marker("place:3")
	assert.False(t, before.Options.PopupOpen)

	require.True(t, scheduler.Flush())
	for id, open := range map[MarkerID]bool{"place:1": false, "place:2": false, "place:3": true} {
		marker, _ := canvas.Marker(id)
		assert.Equal(t, open, marker.Options.PopupOpen, id)
	}
}

func TestPlaceMap_UserLocation(t *testing.T) {
	m, canvas := newTestPlaceMap(t, nil)

	require.NoError(t, m.SetUserLocation(origin))
	require.NoError(t, m.SetUserLocation(destination))
	assert.ErrorIs(t, m.SetUserLocation(geo.Point{Latitude: 91}), geo.ErrInvalidCoordinate)

	user, ok := canvas.Marker("user")
	require.True(t, ok)
	assert.Equal(t, destination, user.Position)
	assert.Equal(t, "Your Location", user.Options.Tooltip)
	assert.Equal(t, DefaultIconSet().User, user.Options.Icon)
}

func TestPlaceMap_ToggleModeAndClose(t *testing.T) {
	m, canvas := newTestPlaceMap(t, nil)

	mode, err := m.ToggleMode()
	require.NoError(t, err)
	assert.Equal(t, Satellite, mode)
	assert.Equal(t, DefaultTileSet().Satellite, canvas.Snapshot().Tiles)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.True(t, canvas.Snapshot().Removed)

	_, err = m.ToggleMode()
	assert.ErrorIs(t, err, ErrSurfaceRemoved)
	assert.ErrorIs(t, m.SetPlaces(nil), ErrSurfaceRemoved)
	assert.NotPanics(t, func() { m.Hover("1") })
}
