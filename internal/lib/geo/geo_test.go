package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	kalupur  = Point{Latitude: 23.025, Longitude: 72.571}
	ashram   = Point{Latitude: 23.0591, Longitude: 72.5754}
	kankaria = Point{Latitude: 23.0079, Longitude: 72.6028}
	adalaj   = Point{Latitude: 23.1645, Longitude: 72.5803}
)

func TestDistanceMeters_Equator(t *testing.T) {
	d := DistanceMeters(Point{0, 0}, Point{0, 1})
	assert.InDelta(t, 111320, d, 111320*0.01, "one degree of longitude at the equator is ~111.32km")
}

func TestDistanceMeters_IdentityAndSymmetry(t *testing.T) {
	pairs := [][2]Point{
		{kalupur, ashram},
		{kankaria, adalaj},
		{{Latitude: -33.8688, Longitude: 151.2093}, {Latitude: 51.5074, Longitude: -0.1278}},
		{{Latitude: 89.9, Longitude: 0}, {Latitude: -89.9, Longitude: 179.9}},
	}

	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		assert.Equal(t, 0.0, DistanceMeters(a, a))
		assert.Equal(t, 0.0, DistanceMeters(b, b))
		assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-6)
	}

	// Kalupur to Sabarmati Ashram is roughly 3.8km
	assert.InDelta(t, 3810, DistanceMeters(kalupur, ashram), 100)
}

func TestBearingDegrees_Range(t *testing.T) {
	points := []Point{kalupur, ashram, kankaria, adalaj, {0, 0}, {0, 179.9}, {-45, -170}}
	for _, a := range points {
		for _, b := range points {
			bearing := BearingDegrees(a, b)
			assert.GreaterOrEqual(t, bearing, 0.0)
			assert.Less(t, bearing, 360.0)
		}
	}
}

func TestBearingDegrees_Reverse(t *testing.T) {
	pairs := [][2]Point{
		{kalupur, ashram},
		{kankaria, adalaj},
		{{Latitude: 23.0, Longitude: 72.5}, {Latitude: 23.05, Longitude: 72.55}},
	}

	for _, pair := range pairs {
		forward := BearingDegrees(pair[0], pair[1])
		back := BearingDegrees(pair[1], pair[0])
		diff := math.Mod(math.Abs(forward-back), 360)
		assert.InDelta(t, 180, diff, 1, "reverse bearing should differ by ~180 degrees")
	}
}

func TestBearingDegrees_Cardinal(t *testing.T) {
	origin := Point{0, 0}
	assert.InDelta(t, 0, BearingDegrees(origin, Point{1, 0}), 1e-9)
	assert.InDelta(t, 90, BearingDegrees(origin, Point{0, 1}), 1e-9)
	assert.InDelta(t, 180, BearingDegrees(origin, Point{-1, 0}), 1e-9)
	assert.InDelta(t, 270, BearingDegrees(origin, Point{0, -1}), 1e-9)

	// Undefined direction is stable and not an error
	assert.Equal(t, 0.0, BearingDegrees(kalupur, kalupur))
}

func TestCompassLabel(t *testing.T) {
	cases := map[float64]string{
		0:   "N",
		22:  "N",
		23:  "NE",
		45:  "NE",
		90:  "E",
		135: "SE",
		180: "S",
		225: "SW",
		270: "W",
		315: "NW",
		337: "NW",
		338: "N",
		359: "N",
	}
	for bearing, want := range cases {
		assert.Equal(t, want, CompassLabel(bearing), "bearing %v", bearing)
	}

	assert.Equal(t, "N", CompassLabel(math.NaN()))
	assert.Equal(t, "W", CompassLabel(-90))
}

func TestNearestIndex(t *testing.T) {
	points := []Point{kalupur, ashram, kankaria, ashram}

	idx, d := NearestIndex(ashram, points)
	assert.Equal(t, 1, idx, "ties resolve to the first occurrence")
	assert.Equal(t, 0.0, d)

	idx, _ = NearestIndex(Point{Latitude: 23.0, Longitude: 72.61}, points)
	assert.Equal(t, 2, idx)

	idx, _ = NearestIndex(kalupur, nil)
	assert.Equal(t, -1, idx)
}

func TestDistanceToPolyline(t *testing.T) {
	line := []Point{{Latitude: 23.0, Longitude: 72.5}, {Latitude: 23.0, Longitude: 72.6}}

	onLine, err := DistanceToPolyline(Point{Latitude: 23.0, Longitude: 72.55}, line)
	require.NoError(t, err)
	assert.Less(t, onLine, 5.0)

	offset, err := DistanceToPolyline(Point{Latitude: 23.01, Longitude: 72.55}, line)
	require.NoError(t, err)
	assert.InDelta(t, 1112, offset, 15, "0.01 degree of latitude is ~1.1km")

	beyond, err := DistanceToPolyline(Point{Latitude: 23.0, Longitude: 72.7}, line)
	require.NoError(t, err)
	assert.InDelta(t, DistanceMeters(Point{Latitude: 23.0, Longitude: 72.7}, line[1]), beyond, 1)

	_, err = DistanceToPolyline(kalupur, nil)
	assert.Error(t, err)

	_, err = DistanceToPolyline(Point{Latitude: 200, Longitude: 0}, line)
	assert.Error(t, err)
}

func TestBoundsOf(t *testing.T) {
	b, err := BoundsOf(kalupur, ashram, kankaria)
	require.NoError(t, err)

	assert.Equal(t, 23.0079, b.SouthWest.Latitude)
	assert.Equal(t, 72.571, b.SouthWest.Longitude)
	assert.Equal(t, 23.0591, b.NorthEast.Latitude)
	assert.Equal(t, 72.6028, b.NorthEast.Longitude)
	assert.True(t, b.Contains(b.Center()))
	assert.False(t, b.Contains(adalaj))

	_, err = BoundsOf()
	assert.Error(t, err)
}

func TestPolylineRoundTrip(t *testing.T) {
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-5)

	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", EncodePolyline(points))

	_, err = DecodePolyline("")
	assert.Error(t, err)
}

func TestGeohash(t *testing.T) {
	hash := Geohash(kalupur, 6)
	assert.Len(t, hash, 6)
	assert.Len(t, GeohashNeighbors(hash), 8)
	assert.Equal(t, Geohash(kalupur, 5), hash[:5])
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(23.0, 72.5)
	require.NoError(t, err)
	assert.True(t, p.Valid())

	_, err = NewPoint(91, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = NewPoint(0, -181)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}
