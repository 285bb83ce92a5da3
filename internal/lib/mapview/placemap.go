package mapview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

const userMarkerID MarkerID = "user"

// Pin is a place shown on an explore map
type Pin struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Rating           float64   `json:"rating"`
	BusinessFriendly bool      `json:"business_friendly"`
	Location         geo.Point `json:"location"`
}

// PopupText renders the marker popup for a pin
func (p Pin) PopupText() string {
	lines := []string{p.Name, p.Category, strconv.FormatFloat(p.Rating, 'f', -1, 64) + "/5 ★"}
	if p.BusinessFriendly {
		lines = append(lines, "Business Friendly")
	}
	return strings.Join(lines, "\n")
}

// PlaceMapOptions configure a PlaceMap
type PlaceMapOptions struct {
	Tiles         TileSet
	Icons         IconSet
	Mode          TileMode
	DefaultCenter geo.Point
	DefaultZoom   float64
	FitPadding    int
	// Scheduler debounces hover highlighting; nil applies it immediately
	Scheduler *FrameScheduler
}

// DefaultPlaceMapOptions centers on Ahmedabad at city zoom
func DefaultPlaceMapOptions() PlaceMapOptions {
	return PlaceMapOptions{
		Tiles:         DefaultTileSet(),
		Icons:         DefaultIconSet(),
		Mode:          Standard,
		DefaultCenter: geo.Point{Latitude: 23.0225, Longitude: 72.5714},
		DefaultZoom:   12,
		FitPadding:    50,
	}
}

// PlaceMap shows a set of places with an optional user marker and a
// highlighted place driven by hover.
type PlaceMap struct {
	surface   Surface
	opts      PlaceMapOptions
	scheduler *FrameScheduler
	logger    *zap.Logger

	mu      sync.Mutex
	pins    []Pin
	hovered string
	user    *geo.Point
	mode    TileMode
	closed  bool
}

// NewPlaceMap prepares surface with the tile layer and default view
func NewPlaceMap(surface Surface, opts PlaceMapOptions, logger *zap.Logger) (*PlaceMap, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = Standard
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = NewFrameScheduler(0)
	}

	m := &PlaceMap{
		surface:   surface,
		opts:      opts,
		scheduler: scheduler,
		logger:    logger,
		mode:      opts.Mode,
	}

	if err := surface.SetTileLayer(opts.Tiles.Layer(opts.Mode)); err != nil {
		return nil, fmt.Errorf("failed to set tile layer: %w", err)
	}
	if err := surface.SetView(opts.DefaultCenter, opts.DefaultZoom); err != nil {
		return nil, fmt.Errorf("failed to set initial view: %w", err)
	}
	return m, nil
}

// SetPlaces replaces the displayed places and fits the view around them
func (m *PlaceMap) SetPlaces(pins []Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSurfaceRemoved
	}

	var err error
	for _, p := range m.pins {
		if rmErr := m.surface.RemoveMarker(placeMarkerID(p.ID)); rmErr != nil && !errors.Is(rmErr, ErrUnknownMarker) {
			err = multierr.Append(err, rmErr)
		}
	}

	m.pins = make([]Pin, 0, len(pins))
	points := make([]geo.Point, 0, len(pins))
	for _, p := range pins {
		if !p.Location.Valid() {
			m.logger.Warn("Skipping place with invalid location", zap.String("place_id", p.ID))
			continue
		}
		opts := MarkerOptions{Icon: m.opts.Icons.Place, Popup: p.PopupText()}
		if addErr := m.surface.AddMarker(placeMarkerID(p.ID), p.Location, opts); addErr != nil {
			err = multierr.Append(err, addErr)
			continue
		}
		m.pins = append(m.pins, p)
		points = append(points, p.Location)
	}

	if len(points) > 0 {
		bounds, boundsErr := geo.BoundsOf(points...)
		if boundsErr == nil {
			err = multierr.Append(err, m.surface.FitBounds(bounds, FitOptions{Padding: m.opts.FitPadding}))
		}
	}

	if m.hovered != "" && m.indexOf(m.hovered) < 0 {
		m.hovered = ""
	}
	if m.hovered != "" {
		err = multierr.Append(err, m.applyHoverLocked())
	}
	return err
}

// SetUserLocation adds or moves the user marker
func (m *PlaceMap) SetUserLocation(p geo.Point) error {
	if !p.Valid() {
		return geo.ErrInvalidCoordinate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSurfaceRemoved
	}
	if m.user != nil {
		if err := m.surface.MoveMarker(userMarkerID, p); err != nil {
			return err
		}
	} else {
		opts := MarkerOptions{Icon: m.opts.Icons.User, Tooltip: "Your Location"}
		if err := m.surface.AddMarker(userMarkerID, p, opts); err != nil {
			return err
		}
	}
	m.user = &p
	return nil
}

// Hover highlights the place with id, or clears the highlight when id is empty.
// The surface update runs on the next frame; earlier pending hovers are dropped.
func (m *PlaceMap) Hover(id string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.hovered = id
	m.mu.Unlock()

	m.scheduler.Request(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		if err := m.applyHoverLocked(); err != nil {
			m.logger.Warn("Failed to apply hover highlight", zap.String("place_id", id), zap.Error(err))
		}
	})
}

// Hovered returns the currently highlighted place id
func (m *PlaceMap) Hovered() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hovered
}

// ToggleMode swaps between standard and satellite tiles
func (m *PlaceMap) ToggleMode() (TileMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.mode, ErrSurfaceRemoved
	}
	next := m.mode.Toggle()
	if err := m.surface.SetTileLayer(m.opts.Tiles.Layer(next)); err != nil {
		return m.mode, err
	}
	m.mode = next
	return next, nil
}

// Mode returns the current tile mode
func (m *PlaceMap) Mode() TileMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Places returns the displayed places
func (m *PlaceMap) Places() []Pin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pin(nil), m.pins...)
}

// Detach marks the map closed without touching the surface
func (m *PlaceMap) Detach() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.scheduler.Stop()
}

// Close detaches the map and removes the surface
func (m *PlaceMap) Close() error {
	m.mu.Lock()
	already := m.closed
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Stop()
	if already {
		return nil
	}
	return m.surface.Remove()
}

func (m *PlaceMap) applyHoverLocked() error {
	var err error
	for _, p := range m.pins {
		id := placeMarkerID(p.ID)
		if p.ID == m.hovered {
			err = multierr.Combine(err,
				m.surface.SetMarkerIcon(id, m.opts.Icons.PlaceHighlighted),
				m.surface.SetPopupOpen(id, true),
				m.surface.PanTo(p.Location),
			)
			continue
		}
		err = multierr.Combine(err,
			m.surface.SetMarkerIcon(id, m.opts.Icons.Place),
			m.surface.SetPopupOpen(id, false),
		)
	}
	return err
}

func (m *PlaceMap) indexOf(id string) int {
	for i, p := range m.pins {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func placeMarkerID(id string) MarkerID {
	return MarkerID("place:" + id)
}
