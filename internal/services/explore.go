package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/metrics"
)

const exploreKind = "explore"

// ErrViewNotFound is returned for unknown explore view ids
var ErrViewNotFound = errors.New("explore view not found")

// ExploreService manages the place maps shown while browsing
type ExploreService struct {
	places        *PlacesService
	viewers       *Viewers
	opts          mapview.PlaceMapOptions
	frameInterval time.Duration
	metrics       *metrics.Collector
	logger        *zap.Logger
	now           func() time.Time

	mu    sync.Mutex
	views map[string]*ExploreView
}

// ExploreView is a place map owned by one viewer
type ExploreView struct {
	ID        string
	ViewerID  string
	CreatedAt time.Time

	viewer   *Viewer
	placeMap *mapview.PlaceMap

	mu           sync.Mutex
	query        string
	lastActivity time.Time
	detached     bool
}

// ExploreSnapshot is the client view of an explore map
type ExploreSnapshot struct {
	ID       string            `json:"id"`
	ViewerID string            `json:"viewer_id"`
	Query    string            `json:"query,omitempty"`
	Places   []mapview.Pin     `json:"places"`
	Hovered  string            `json:"hovered,omitempty"`
	Mode     mapview.TileMode  `json:"map_mode"`
	Detached bool              `json:"detached"`
	Map      *mapview.Snapshot `json:"map,omitempty"`
}

// NewExploreService creates a new explore service. frameInterval paces hover highlighting.
func NewExploreService(places *PlacesService, viewers *Viewers, opts mapview.PlaceMapOptions, frameInterval time.Duration, m *metrics.Collector, logger *zap.Logger) *ExploreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExploreService{
		places:        places,
		viewers:       viewers,
		opts:          opts,
		frameInterval: frameInterval,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
		views:         make(map[string]*ExploreView),
	}
}

// Open claims the viewer's map for a new place map
func (s *ExploreService) Open(ctx context.Context, viewerID string) (*ExploreView, error) {
	viewer := s.viewers.Get(viewerID)
	now := s.now()
	view := &ExploreView{
		ID:           uuid.NewString(),
		ViewerID:     viewer.ID,
		CreatedAt:    now,
		viewer:       viewer,
		lastActivity: now,
	}

	surface, err := viewer.host.Claim(ctx, view.ID, view.detach)
	if err != nil {
		return nil, err
	}

	opts := s.opts
	opts.Scheduler = mapview.NewFrameScheduler(s.frameInterval)
	logger := s.logger.With(zap.String("view_id", view.ID), zap.String("viewer_id", viewer.ID))
	pm, err := mapview.NewPlaceMap(surface, opts, logger)
	if err != nil {
		_ = viewer.host.Release(view.ID)
		return nil, err
	}

	view.mu.Lock()
	view.placeMap = pm
	if view.detached {
		pm.Detach()
	}
	view.mu.Unlock()

	s.mu.Lock()
	s.views[view.ID] = view
	s.mu.Unlock()
	s.metrics.SessionOpened(exploreKind)

	logger.Info("Explore view opened")
	return view, nil
}

// Get returns an open view
func (s *ExploreService) Get(id string) (*ExploreView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	return view, nil
}

// Search shows the catalog results for query on the view
func (s *ExploreService) Search(ctx context.Context, id, query string) ([]catalog.Place, error) {
	view, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	places, err := s.places.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	view.setQuery(query, s.now())
	return places, s.show(view, places)
}

// ShowCategory shows the places of one category on the view
func (s *ExploreService) ShowCategory(ctx context.Context, id, category string) ([]catalog.Place, error) {
	view, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	places, err := s.places.ByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	view.setQuery("category:"+category, s.now())
	return places, s.show(view, places)
}

// ShowBusinessFriendly shows the business friendly places on the view
func (s *ExploreService) ShowBusinessFriendly(ctx context.Context, id string) ([]catalog.Place, error) {
	view, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	places, err := s.places.BusinessFriendly(ctx)
	if err != nil {
		return nil, err
	}
	view.setQuery("business", s.now())
	return places, s.show(view, places)
}

// SetUserLocation places the user marker
func (s *ExploreService) SetUserLocation(id string, p geo.Point) error {
	view, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := view.placeMap.SetUserLocation(p); err != nil {
		return err
	}
	now := s.now()
	view.touch(now)
	view.viewer.rememberFix(p, now)
	return nil
}

// Hover highlights a place; an empty placeID clears the highlight
func (s *ExploreService) Hover(id, placeID string) error {
	view, err := s.Get(id)
	if err != nil {
		return err
	}
	view.touch(s.now())
	view.placeMap.Hover(placeID)
	return nil
}

// ToggleMode swaps the tile source of the view
func (s *ExploreService) ToggleMode(id string) (mapview.TileMode, error) {
	view, err := s.Get(id)
	if err != nil {
		return "", err
	}
	view.touch(s.now())
	return view.placeMap.ToggleMode()
}

// Snapshot returns the state of a view
func (s *ExploreService) Snapshot(id string) (ExploreSnapshot, error) {
	view, err := s.Get(id)
	if err != nil {
		return ExploreSnapshot{}, err
	}
	return view.Snapshot(), nil
}

// Close releases a view and its map surface
func (s *ExploreService) Close(id string) error {
	s.mu.Lock()
	view, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	s.metrics.SessionClosed(exploreKind)
	view.placeMap.Detach()
	return view.viewer.host.Release(view.ID)
}

// CloseAll releases every view
func (s *ExploreService) CloseAll() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var err error
	for _, id := range ids {
		if closeErr := s.Close(id); closeErr != nil && !errors.Is(closeErr, ErrViewNotFound) {
			err = multierr.Append(err, closeErr)
		}
	}
	return err
}

// ReapIdle closes views without activity for idle, and views that lost their map
func (s *ExploreService) ReapIdle(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	var stale []string
	for id, view := range s.views {
		last, detached := view.state()
		if detached || now.Sub(last) >= idle {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		if err := s.Close(id); err != nil && !errors.Is(err, ErrViewNotFound) {
			s.logger.Warn("Error closing idle explore view", zap.String("view_id", id), zap.Error(err))
		}
	}
	return len(stale)
}

func (s *ExploreService) show(view *ExploreView, places []catalog.Place) error {
	if err := view.placeMap.SetPlaces(catalog.Pins(places)); err != nil {
		return fmt.Errorf("failed to show places: %w", err)
	}
	return nil
}

// Snapshot returns the view state with its map model while it holds the surface
func (v *ExploreView) Snapshot() ExploreSnapshot {
	v.mu.Lock()
	query, detached := v.query, v.detached
	v.mu.Unlock()

	snap := ExploreSnapshot{
		ID:       v.ID,
		ViewerID: v.ViewerID,
		Query:    query,
		Places:   v.placeMap.Places(),
		Hovered:  v.placeMap.Hovered(),
		Mode:     v.placeMap.Mode(),
		Detached: detached,
	}
	if canvas, ok := v.viewer.Canvas(v.ID); ok {
		m := canvas.Snapshot()
		snap.Map = &m
	}
	return snap
}

// detach runs under the viewer host lock when another view takes the map
func (v *ExploreView) detach() error {
	v.mu.Lock()
	v.detached = true
	pm := v.placeMap
	v.mu.Unlock()

	if pm != nil {
		pm.Detach()
	}
	return nil
}

func (v *ExploreView) setQuery(q string, now time.Time) {
	v.mu.Lock()
	v.query = q
	v.lastActivity = now
	v.mu.Unlock()
	v.viewer.touch(now)
}

func (v *ExploreView) touch(now time.Time) {
	v.mu.Lock()
	v.lastActivity = now
	v.mu.Unlock()
	v.viewer.touch(now)
}

func (v *ExploreView) state() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActivity, v.detached
}
