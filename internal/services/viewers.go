package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
)

// Viewer is one client screen. It owns a single map surface that navigation
// sessions and explore views take turns holding.
type Viewer struct {
	ID   string
	host *mapview.Host

	mu       sync.Mutex
	lastSeen time.Time
	lastFix  *position.Fix
}

// Host returns the surface host of the viewer
func (v *Viewer) Host() *mapview.Host {
	return v.host
}

// Canvas returns the surface held by owner, if owner still holds it
func (v *Viewer) Canvas(owner string) (*mapview.Canvas, bool) {
	if v.host.Owner() != owner {
		return nil, false
	}
	surface, ok := v.host.Current()
	if !ok {
		return nil, false
	}
	canvas, ok := surface.(*mapview.Canvas)
	return canvas, ok
}

// rememberFix records p as the device position at receipt time
func (v *Viewer) rememberFix(p geo.Point, now time.Time) {
	v.mu.Lock()
	v.lastFix = &position.Fix{Point: p, Timestamp: now}
	v.mu.Unlock()
}

// LastFix returns the most recent device position reported through any of the viewer's views
func (v *Viewer) LastFix() (position.Fix, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastFix == nil {
		return position.Fix{}, false
	}
	return *v.lastFix, true
}

func (v *Viewer) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Viewer) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Viewers is the registry of connected screens
type Viewers struct {
	factory mapview.Factory
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	viewers map[string]*Viewer
}

// NewViewers creates a registry whose viewers draw on canvases of width x height pixels
func NewViewers(width, height int, logger *zap.Logger) *Viewers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Viewers{
		factory: mapview.CanvasFactory(width, height, nil),
		logger:  logger,
		now:     time.Now,
		viewers: make(map[string]*Viewer),
	}
}

// Get returns the viewer with id, creating it on first use. An empty id allocates a new viewer.
func (vs *Viewers) Get(id string) *Viewer {
	if id == "" {
		id = uuid.NewString()
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	v, ok := vs.viewers[id]
	if !ok {
		v = &Viewer{
			ID:   id,
			host: mapview.NewHost(vs.factory, vs.logger.With(zap.String("viewer_id", id))),
		}
		vs.viewers[id] = v
		vs.logger.Debug("Viewer registered", zap.String("viewer_id", id))
	}
	v.touch(vs.now())
	return v
}

// Lookup returns an existing viewer
func (vs *Viewers) Lookup(id string) (*Viewer, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.viewers[id]
	return v, ok
}

// Len returns the number of registered viewers
func (vs *Viewers) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.viewers)
}

// ReapIdle forgets viewers whose surface is free and that have not been used for idle
func (vs *Viewers) ReapIdle(now time.Time, idle time.Duration) int {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	reaped := 0
	for id, v := range vs.viewers {
		if v.host.Owner() != "" || now.Sub(v.idleSince()) < idle {
			continue
		}
		delete(vs.viewers, id)
		reaped++
	}
	return reaped
}
