package mapview

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

const (
	tileSize       = 256
	defaultMaxZoom = 19
)

// Marker is a marker as recorded by a Canvas
type Marker struct {
	ID       MarkerID      `json:"id"`
	Position geo.Point     `json:"position"`
	Options  MarkerOptions `json:"options"`
}

// Snapshot is a point-in-time copy of a Canvas, suitable for rendering by a client
type Snapshot struct {
	Version       uint64      `json:"version"`
	Tiles         TileLayer   `json:"tiles"`
	Center        geo.Point   `json:"center"`
	Zoom          float64     `json:"zoom"`
	Markers       []Marker    `json:"markers"`
	Route         []geo.Point `json:"route,omitempty"`
	RouteStyle    *LineStyle  `json:"route_style,omitempty"`
	Invalidations int         `json:"invalidations"`
	Removed       bool        `json:"removed"`
}

// Canvas is an in-memory Surface. Clients render its snapshots.
type Canvas struct {
	width  int
	height int

	mu            sync.RWMutex
	version       uint64
	tiles         TileLayer
	center        geo.Point
	zoom          float64
	markers       map[MarkerID]*Marker
	route         []geo.Point
	routeStyle    *LineStyle
	invalidations int
	removed       bool
}

// NewCanvas creates a canvas for a viewport of width x height pixels
func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 500
	}
	return &Canvas{
		width:   width,
		height:  height,
		markers: make(map[MarkerID]*Marker),
	}
}

// CanvasFactory returns a Factory producing canvases of the given size.
// Each created canvas is passed to onCreate, when set, so callers can expose it.
func CanvasFactory(width, height int, onCreate func(*Canvas)) Factory {
	return func(ctx context.Context) (Surface, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := NewCanvas(width, height)
		if onCreate != nil {
			onCreate(c)
		}
		return c, nil
	}
}

func (c *Canvas) SetTileLayer(layer TileLayer) error {
	return c.mutate(func() error {
		c.tiles = layer
		return nil
	})
}

func (c *Canvas) AddMarker(id MarkerID, at geo.Point, opts MarkerOptions) error {
	return c.mutate(func() error {
		if _, exists := c.markers[id]; exists {
			return ErrDuplicateMarker
		}
		c.markers[id] = &Marker{ID: id, Position: at, Options: opts}
		return nil
	})
}

func (c *Canvas) MoveMarker(id MarkerID, to geo.Point) error {
	return c.withMarker(id, func(m *Marker) { m.Position = to })
}

func (c *Canvas) SetMarkerIcon(id MarkerID, icon Icon) error {
	return c.withMarker(id, func(m *Marker) { m.Options.Icon = icon })
}

func (c *Canvas) SetPopupOpen(id MarkerID, open bool) error {
	return c.withMarker(id, func(m *Marker) { m.Options.PopupOpen = open })
}

func (c *Canvas) RemoveMarker(id MarkerID) error {
	return c.mutate(func() error {
		if _, exists := c.markers[id]; !exists {
			return ErrUnknownMarker
		}
		delete(c.markers, id)
		return nil
	})
}

func (c *Canvas) FitBounds(bounds geo.Bounds, opts FitOptions) error {
	return c.mutate(func() error {
		c.center = bounds.Center()
		c.zoom = fitZoom(bounds, c.width, c.height, opts.Padding, opts.MaxZoom)
		return nil
	})
}

func (c *Canvas) PanTo(center geo.Point) error {
	return c.mutate(func() error {
		c.center = center
		return nil
	})
}

func (c *Canvas) SetView(center geo.Point, zoom float64) error {
	return c.mutate(func() error {
		c.center = center
		c.zoom = zoom
		return nil
	})
}

func (c *Canvas) SetRouteLine(points []geo.Point, style LineStyle) error {
	return c.mutate(func() error {
		c.route = append([]geo.Point(nil), points...)
		c.routeStyle = &style
		return nil
	})
}

func (c *Canvas) ClearRouteLine() error {
	return c.mutate(func() error {
		c.route = nil
		c.routeStyle = nil
		return nil
	})
}

func (c *Canvas) Invalidate() error {
	return c.mutate(func() error {
		c.invalidations++
		return nil
	})
}

// Remove detaches the canvas; later operations fail with ErrSurfaceRemoved
func (c *Canvas) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removed {
		return nil
	}
	c.removed = true
	c.markers = make(map[MarkerID]*Marker)
	c.route = nil
	c.routeStyle = nil
	c.version++
	return nil
}

// Snapshot returns a copy of the canvas state with markers sorted by id
func (c *Canvas) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Version:       c.version,
		Tiles:         c.tiles,
		Center:        c.center,
		Zoom:          c.zoom,
		Markers:       make([]Marker, 0, len(c.markers)),
		Route:         append([]geo.Point(nil), c.route...),
		Invalidations: c.invalidations,
		Removed:       c.removed,
	}
	if c.routeStyle != nil {
		style := *c.routeStyle
		s.RouteStyle = &style
	}
	for _, m := range c.markers {
		s.Markers = append(s.Markers, *m)
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].ID < s.Markers[j].ID })
	return s
}

// Marker returns a single marker
func (c *Canvas) Marker(id MarkerID) (Marker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.markers[id]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

func (c *Canvas) mutate(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removed {
		return ErrSurfaceRemoved
	}
	if err := fn(); err != nil {
		return err
	}
	c.version++
	return nil
}

func (c *Canvas) withMarker(id MarkerID, fn func(*Marker)) error {
	return c.mutate(func() error {
		m, ok := c.markers[id]
		if !ok {
			return ErrUnknownMarker
		}
		fn(m)
		return nil
	})
}

// fitZoom finds the largest whole web-mercator zoom at which bounds fits the padded viewport
func fitZoom(b geo.Bounds, width, height, padding int, maxZoom float64) float64 {
	if maxZoom <= 0 {
		maxZoom = defaultMaxZoom
	}

	w := math.Max(float64(width-2*padding), 1)
	h := math.Max(float64(height-2*padding), 1)

	lngFraction := (b.NorthEast.Longitude - b.SouthWest.Longitude) / 360
	latFraction := (mercatorY(b.NorthEast.Latitude) - mercatorY(b.SouthWest.Latitude)) / (2 * math.Pi)

	zoom := maxZoom
	if lngFraction > 0 {
		zoom = math.Min(zoom, math.Log2(w/(tileSize*lngFraction)))
	}
	if latFraction > 0 {
		zoom = math.Min(zoom, math.Log2(h/(tileSize*latFraction)))
	}
	return math.Max(0, math.Floor(zoom))
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}
