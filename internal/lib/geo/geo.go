package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean Earth radius used by all distance calculations
const EarthRadiusMeters = 6371000

var compassLabels = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// DistanceMeters calculates great-circle distance between two points using the Haversine formula.
// It never fails; identical points yield 0.
func DistanceMeters(a, b Point) float64 {
	if a.Equal(b) {
		return 0
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dlat := lat2 - lat1
	dlon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial compass bearing from a to b, normalized to [0, 360).
// Identical points yield 0.
func BearingDegrees(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dlon := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return normalizeBearing(math.Atan2(y, x) * 180 / math.Pi)
}

// CompassLabel maps a bearing to one of N, NE, E, SE, S, SW, W, NW.
// NaN and infinite bearings map to "N".
func CompassLabel(bearing float64) string {
	if math.IsNaN(bearing) || math.IsInf(bearing, 0) {
		return compassLabels[0]
	}
	idx := int(math.Round(bearing/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return compassLabels[idx]
}

// NearestIndex returns the index of the point in points closest to p and its distance.
// Ties resolve to the lowest index. Returns -1 for an empty slice.
func NearestIndex(p Point, points []Point) (int, float64) {
	best := -1
	bestDistance := math.Inf(1)

	for i, candidate := range points {
		d := DistanceMeters(p, candidate)
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}

	return best, bestDistance
}

// DistanceToPolyline calculates minimum distance from point to polyline in meters
func DistanceToPolyline(point Point, points []Point) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	switch len(points) {
	case 0:
		return 0, errors.New("polyline has no points")
	case 1:
		return DistanceMeters(point, points[0]), nil
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(points)-1; i++ {
		d := pointToSegmentDistance(point, points[i], points[i+1])
		if d < minDistance {
			minDistance = d
		}
	}

	return minDistance, nil
}

// pointToSegmentDistance calculates cross-track distance from point to a great-circle segment
func pointToSegmentDistance(point, segmentStart, segmentEnd Point) float64 {
	if segmentStart.Equal(segmentEnd) {
		return DistanceMeters(point, segmentStart)
	}

	distanceToStart := DistanceMeters(point, segmentStart)
	distanceToEnd := DistanceMeters(point, segmentEnd)
	segmentLength := DistanceMeters(segmentStart, segmentEnd)

	if segmentLength < 1 {
		return math.Min(distanceToStart, distanceToEnd)
	}

	d13 := distanceToStart / EarthRadiusMeters
	bearing13 := toRadians(BearingDegrees(segmentStart, segmentEnd))
	bearing12 := toRadians(BearingDegrees(segmentStart, point))

	dxt := math.Asin(math.Sin(d13) * math.Sin(bearing12-bearing13))
	crossTrackDistance := math.Abs(dxt) * EarthRadiusMeters

	// Projection falls before the segment start
	if math.Cos(bearing12-bearing13) < 0 {
		return distanceToStart
	}

	ratio := math.Max(-1, math.Min(1, math.Cos(d13)/math.Cos(dxt)))
	dat := math.Acos(ratio)
	if dat*EarthRadiusMeters > segmentLength {
		return distanceToEnd
	}

	return crossTrackDistance
}

// Interpolate returns the point a fraction t along the straight line from start to end.
// Linear interpolation is adequate for road-scale segments.
func Interpolate(start, end Point, t float64) Point {
	return Point{
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
	}
}

// BoundsOf returns the smallest box containing all points
func BoundsOf(points ...Point) (Bounds, error) {
	if len(points) == 0 {
		return Bounds{}, errors.New("bounds require at least one point")
	}

	b := Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b.SouthWest.Latitude = math.Min(b.SouthWest.Latitude, p.Latitude)
		b.SouthWest.Longitude = math.Min(b.SouthWest.Longitude, p.Longitude)
		b.NorthEast.Latitude = math.Max(b.NorthEast.Latitude, p.Latitude)
		b.NorthEast.Longitude = math.Max(b.NorthEast.Longitude, p.Longitude)
	}
	return b, nil
}

// DecodePolyline decodes a Google encoded polyline (precision 5) to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes points as a Google encoded polyline
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, ErrInvalidCoordinate
	}
	return point, nil
}

// Geohash encodes p as a geohash string of the given precision
func Geohash(p Point, precision uint) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, precision)
}

// GeohashNeighbors returns the eight cells surrounding hash
func GeohashNeighbors(hash string) []string {
	return geohash.Neighbors(hash)
}

func normalizeBearing(deg float64) float64 {
	b := math.Mod(deg+360, 360)
	if b >= 360 {
		b -= 360
	}
	return b
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
