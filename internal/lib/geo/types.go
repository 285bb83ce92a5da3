package geo

import "errors"

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid reports whether the point lies within latitude [-90, 90] and longitude [-180, 180]
func (p Point) Valid() bool {
	return isValidCoordinate(p)
}

// Equal reports whether two points have identical coordinates
func (p Point) Equal(o Point) bool {
	return p.Latitude == o.Latitude && p.Longitude == o.Longitude
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
	Points          []Point `json:"points"`
}

// Bounds is an axis-aligned lat/lng box
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// Center returns the midpoint of the box
func (b Bounds) Center() Point {
	return Point{
		Latitude:  (b.SouthWest.Latitude + b.NorthEast.Latitude) / 2,
		Longitude: (b.SouthWest.Longitude + b.NorthEast.Longitude) / 2,
	}
}

// Contains reports whether p lies inside the box, edges included
func (b Bounds) Contains(p Point) bool {
	return p.Latitude >= b.SouthWest.Latitude && p.Latitude <= b.NorthEast.Latitude &&
		p.Longitude >= b.SouthWest.Longitude && p.Longitude <= b.NorthEast.Longitude
}

// Span returns the latitude and longitude extent of the box in degrees
func (b Bounds) Span() (latSpan, lngSpan float64) {
	return b.NorthEast.Latitude - b.SouthWest.Latitude, b.NorthEast.Longitude - b.SouthWest.Longitude
}
