package mapview

import (
	"errors"
	"fmt"
)

// ErrUnknownTileMode is returned for mode names other than standard and satellite
var ErrUnknownTileMode = errors.New("unknown map mode")

// TileMode selects the raster tile source
type TileMode string

const (
	Standard  TileMode = "standard"
	Satellite TileMode = "satellite"
)

// ParseTileMode validates a mode name
func ParseTileMode(s string) (TileMode, error) {
	switch TileMode(s) {
	case Standard, Satellite:
		return TileMode(s), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTileMode, s)
	}
}

// Toggle returns the other mode
func (m TileMode) Toggle() TileMode {
	if m == Satellite {
		return Standard
	}
	return Satellite
}

// TileLayer is a raster tile source
type TileLayer struct {
	URL         string `json:"url" yaml:"url"`
	Attribution string `json:"attribution" yaml:"attribution"`
	MaxZoom     int    `json:"max_zoom" yaml:"max_zoom"`
}

// TileSet holds the two interchangeable tile sources.
// It is configuration: built at startup and copied into each view, never mutated.
type TileSet struct {
	Standard  TileLayer `json:"standard" yaml:"standard"`
	Satellite TileLayer `json:"satellite" yaml:"satellite"`
}

// DefaultTileSet returns OpenStreetMap street tiles and Esri World Imagery
func DefaultTileSet() TileSet {
	return TileSet{
		Standard: TileLayer{
			URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
			MaxZoom:     19,
		},
		Satellite: TileLayer{
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: `&copy; <a href="https://www.esri.com/en-us/home">Esri</a>`,
			MaxZoom:     19,
		},
	}
}

// Layer returns the tile layer for mode
func (t TileSet) Layer(mode TileMode) TileLayer {
	if mode == Satellite {
		return t.Satellite
	}
	return t.Standard
}

// Icon describes a marker glyph
type Icon struct {
	Name   string `json:"name" yaml:"name"`
	Color  string `json:"color" yaml:"color"`
	Size   [2]int `json:"size" yaml:"size"`
	Anchor [2]int `json:"anchor" yaml:"anchor"`
	Pulse  bool   `json:"pulse,omitempty" yaml:"pulse"`
}

// IconSet is the read-only registry of marker icons shared by views
type IconSet struct {
	Place            Icon `json:"place" yaml:"place"`
	PlaceHighlighted Icon `json:"place_highlighted" yaml:"place_highlighted"`
	User             Icon `json:"user" yaml:"user"`
	Navigator        Icon `json:"navigator" yaml:"navigator"`
	Destination      Icon `json:"destination" yaml:"destination"`
}

// DefaultIconSet returns the stock icons
func DefaultIconSet() IconSet {
	return IconSet{
		Place:            Icon{Name: "place", Color: "accent", Size: [2]int{24, 24}, Anchor: [2]int{12, 24}},
		PlaceHighlighted: Icon{Name: "place-highlighted", Color: "primary", Size: [2]int{32, 32}, Anchor: [2]int{16, 32}, Pulse: true},
		User:             Icon{Name: "user", Color: "blue-600", Size: [2]int{24, 24}, Anchor: [2]int{12, 12}, Pulse: true},
		Navigator:        Icon{Name: "navigator", Color: "primary", Size: [2]int{32, 32}, Anchor: [2]int{16, 32}, Pulse: true},
		Destination:      Icon{Name: "destination", Color: "accent", Size: [2]int{32, 32}, Anchor: [2]int{16, 32}},
	}
}
