package mapview

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

func TestCanvas_WriteKML(t *testing.T) {
	c := NewCanvas(800, 500)
	icons := DefaultIconSet()
	require.NoError(t, c.AddMarker("destination", destination, MarkerOptions{Icon: icons.Destination, Popup: "Your destination"}))
	require.NoError(t, c.AddMarker("user", origin, MarkerOptions{Icon: icons.Navigator, Tooltip: "You"}))
	require.NoError(t, c.SetRouteLine([]geo.Point{origin, {Latitude: 23.0, Longitude: 72.52}, destination}, DefaultRouteStyle))

	var buf bytes.Buffer
	require.NoError(t, c.WriteKML(&buf, "Navigation"))
	out := buf.String()

	assert.Contains(t, out, "<name>Navigation</name>")
	assert.Contains(t, out, `<Style id="route-line">`)
	assert.Contains(t, out, "<color>cc951d4c</color>")
	assert.Contains(t, out, "<width>5</width>")
	assert.Contains(t, out, "<styleUrl>#route-line</styleUrl>")
	assert.Contains(t, out, "<coordinates>72.5,23 72.52,23 72.55,23.05</coordinates>")
	assert.Contains(t, out, "<description>Your destination</description>")
	assert.Contains(t, out, "<name>You</name>")
	assert.Contains(t, out, "<href>navigator</href>")
}

func TestCanvas_WriteKMLWithoutRoute(t *testing.T) {
	c := NewCanvas(800, 500)
	require.NoError(t, c.AddMarker("user", origin, MarkerOptions{}))

	var buf bytes.Buffer
	require.NoError(t, c.WriteKML(&buf, "Explore"))
	assert.NotContains(t, buf.String(), "<LineString>")
	assert.Contains(t, buf.String(), "<name>user</name>")
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#4C1D95", 0.8)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x4c), c.R)
	assert.Equal(t, uint8(0x1d), c.G)
	assert.Equal(t, uint8(0x95), c.B)
	assert.Equal(t, uint8(204), c.A)

	c, err = parseHexColor("4338ca", 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.A)

	_, err = parseHexColor("#fff", 1)
	assert.Error(t, err)
	_, err = parseHexColor("#zzzzzz", 1)
	assert.Error(t, err)
}
