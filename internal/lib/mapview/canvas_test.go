package mapview

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

var (
	origin      = geo.Point{Latitude: 23.0, Longitude: 72.5}
	destination = geo.Point{Latitude: 23.05, Longitude: 72.55}
)

func TestCanvas_Markers(t *testing.T) {
	c := NewCanvas(0, 0)
	icons := DefaultIconSet()

	require.NoError(t, c.AddMarker("user", origin, MarkerOptions{Icon: icons.Navigator, ZIndexOffset: 1000}))
	assert.ErrorIs(t, c.AddMarker("user", origin, MarkerOptions{}), ErrDuplicateMarker)

	require.NoError(t, c.MoveMarker("user", destination))
	require.NoError(t, c.SetMarkerIcon("user", icons.User))
	require.NoError(t, c.SetPopupOpen("user", true))

	m, ok := c.Marker("user")
	require.True(t, ok)
	assert.Equal(t, destination, m.Position)
	assert.Equal(t, icons.User, m.Options.Icon)
	assert.True(t, m.Options.PopupOpen)
	assert.Equal(t, 1000, m.Options.ZIndexOffset)

	assert.ErrorIs(t, c.MoveMarker("missing", origin), ErrUnknownMarker)
	require.NoError(t, c.RemoveMarker("user"))
	assert.ErrorIs(t, c.RemoveMarker("user"), ErrUnknownMarker)
}

func TestCanvas_SnapshotIsACopy(t *testing.T) {
	c := NewCanvas(800, 500)
	require.NoError(t, c.AddMarker("b", destination, MarkerOptions{}))
	require.NoError(t, c.AddMarker("a", origin, MarkerOptions{}))
	route := []geo.Point{origin, destination}
	require.NoError(t, c.SetRouteLine(route, DefaultRouteStyle))

	s := c.Snapshot()
	require.Len(t, s.Markers, 2)
	assert.Equal(t, MarkerID("a"), s.Markers[0].ID)
	assert.Equal(t, MarkerID("b"), s.Markers[1].ID)
	require.NotNil(t, s.RouteStyle)
	assert.Equal(t, "#4C1D95", s.RouteStyle.Color)

	route[0] = geo.Point{}
	s.Route[1] = geo.Point{}
	assert.Equal(t, []geo.Point{origin, destination}, c.Snapshot().Route)

	version := s.Version
	require.NoError(t, c.ClearRouteLine())
	after := c.Snapshot()
	assert.Greater(t, after.Version, version)
	assert.Empty(t, after.Route)
	assert.Nil(t, after.RouteStyle)
}

func TestCanvas_FitBounds(t *testing.T) {
	c := NewCanvas(800, 500)
	bounds, err := geo.BoundsOf(origin, destination)
	require.NoError(t, err)

	require.NoError(t, c.FitBounds(bounds, FitOptions{Padding: 50, MaxZoom: 15}))
	s := c.Snapshot()
	assert.Equal(t, 13.0, s.Zoom)
	assert.InDelta(t, 23.025, s.Center.Latitude, 1e-9)
	assert.InDelta(t, 72.525, s.Center.Longitude, 1e-9)

	// A single point cannot be fitted tighter than the zoom cap
	point, err := geo.BoundsOf(origin)
	require.NoError(t, err)
	require.NoError(t, c.FitBounds(point, FitOptions{Padding: 50, MaxZoom: 15}))
	assert.Equal(t, 15.0, c.Snapshot().Zoom)

	require.NoError(t, c.FitBounds(point, FitOptions{}))
	assert.Equal(t, 19.0, c.Snapshot().Zoom)
}

func TestFitZoom_WholeWorld(t *testing.T) {
	world := geo.Bounds{
		SouthWest: geo.Point{Latitude: -85, Longitude: -180},
		NorthEast: geo.Point{Latitude: 85, Longitude: 180},
	}
	assert.Equal(t, 2.0, fitZoom(world, 1024, 1024, 0, 19))
	assert.Equal(t, 0.0, fitZoom(world, 800, 500, 0, 19))
	assert.Equal(t, 0.0, fitZoom(world, 100, 100, 50, 19))
}

func TestCanvas_Remove(t *testing.T) {
	c := NewCanvas(800, 500)
	require.NoError(t, c.AddMarker("user", origin, MarkerOptions{}))
	require.NoError(t, c.Invalidate())
	require.NoError(t, c.Invalidate())
	assert.Equal(t, 2, c.Snapshot().Invalidations)

	require.NoError(t, c.Remove())
	require.NoError(t, c.Remove())

	s := c.Snapshot()
	assert.True(t, s.Removed)
	assert.Empty(t, s.Markers)

	assert.ErrorIs(t, c.PanTo(origin), ErrSurfaceRemoved)
	assert.ErrorIs(t, c.Invalidate(), ErrSurfaceRemoved)
	assert.ErrorIs(t, c.SetTileLayer(DefaultTileSet().Standard), ErrSurfaceRemoved)
	assert.ErrorIs(t, c.WriteKML(&bytes.Buffer{}, "route"), ErrSurfaceRemoved)
}

func TestCanvasFactory(t *testing.T) {
	var created []*Canvas
	factory := CanvasFactory(640, 480, func(c *Canvas) { created = append(created, c) })

	s, err := factory(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Same(t, created[0], s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = factory(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, created, 1)
}

func TestTileMode(t *testing.T) {
	mode, err := ParseTileMode("satellite")
	require.NoError(t, err)
	assert.Equal(t, Satellite, mode)
	assert.Equal(t, Standard, mode.Toggle())
	assert.Equal(t, Satellite, Standard.Toggle())

	_, err = ParseTileMode("terrain")
	assert.Error(t, err)

	tiles := DefaultTileSet()
	assert.Contains(t, tiles.Layer(Standard).URL, "openstreetmap")
	assert.Contains(t, tiles.Layer(Satellite).URL, "World_Imagery")
}
