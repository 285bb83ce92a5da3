package mapview

import (
	"context"
	"errors"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

var (
	// ErrSurfaceRemoved is returned by every operation on a removed surface
	ErrSurfaceRemoved = errors.New("map surface removed")
	// ErrUnknownMarker is returned when a marker id is not on the surface
	ErrUnknownMarker = errors.New("unknown marker")
	// ErrDuplicateMarker is returned when adding a marker id twice
	ErrDuplicateMarker = errors.New("marker already exists")
)

// MarkerID names a marker on a surface
type MarkerID string

// MarkerOptions describe how a marker is drawn
type MarkerOptions struct {
	Icon           Icon    `json:"icon"`
	Popup          string  `json:"popup,omitempty"`
	PopupOpen      bool    `json:"popup_open,omitempty"`
	Tooltip        string  `json:"tooltip,omitempty"`
	ZIndexOffset   int     `json:"z_index_offset,omitempty"`
	AccuracyRadius float64 `json:"accuracy_radius,omitempty"`
}

// FitOptions control FitBounds
type FitOptions struct {
	Padding int     `json:"padding"`
	MaxZoom float64 `json:"max_zoom,omitempty"`
}

// LineStyle describes a route polyline
type LineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// DefaultRouteStyle is the navigation route line
var DefaultRouteStyle = LineStyle{Color: "#4C1D95", Weight: 5, Opacity: 0.8}

// Surface is an interactive map the server drives on behalf of a client.
// A Surface is owned by exactly one component at a time (see Host).
type Surface interface {
	SetTileLayer(layer TileLayer) error

	AddMarker(id MarkerID, at geo.Point, opts MarkerOptions) error
	MoveMarker(id MarkerID, to geo.Point) error
	SetMarkerIcon(id MarkerID, icon Icon) error
	SetPopupOpen(id MarkerID, open bool) error
	RemoveMarker(id MarkerID) error

	FitBounds(bounds geo.Bounds, opts FitOptions) error
	PanTo(center geo.Point) error
	SetView(center geo.Point, zoom float64) error

	SetRouteLine(points []geo.Point, style LineStyle) error
	ClearRouteLine() error

	// Invalidate forces the client to re-measure and redraw
	Invalidate() error
	// Remove releases the surface; it is safe to call more than once
	Remove() error
}

// Factory creates and attaches a new surface
type Factory func(ctx context.Context) (Surface, error)
