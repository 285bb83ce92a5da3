package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/itinerary"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

var (
	kalupur = geo.Point{Latitude: 23.025, Longitude: 72.571}
	iskcon  = geo.Point{Latitude: 23.0727, Longitude: 72.5175}
)

type stubRouter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRouter) Route(_ context.Context, origin, destination geo.Point) routing.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return routing.Failed(r.err)
	}
	return routing.Found(routing.Route{
		Coordinates: []geo.Point{origin, {Latitude: 23.05, Longitude: 72.54}, destination},
		Instructions: []routing.Instruction{
			{PolylineIndex: 0, Text: "Head north on Relief Road", DistanceMeters: 3200, DurationSeconds: 420, ManeuverType: "depart"},
			{PolylineIndex: 2, Text: "You have arrived at your destination", ManeuverType: "arrive"},
		},
		TotalDistanceMeters:  6800,
		TotalDurationSeconds: 900,
	})
}

func (r *stubRouter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testNavigationConfig() navigation.Config {
	cfg := navigation.DefaultConfig()
	cfg.MapReadyDelay = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RedrawWindow = 0
	return cfg
}

func newPlaces(t *testing.T) *PlacesService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	c, err := catalog.Load(catalog.Delays{}, logger)
	require.NoError(t, err)
	store := itinerary.NewStore(itinerary.NewMemoryKV(), itinerary.DefaultKey, logger)
	return NewPlacesService(c, store, logger)
}

type fixture struct {
	router     *stubRouter
	places     *PlacesService
	viewers    *Viewers
	navigation *NavigationService
	explore    *ExploreService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{
		router:  &stubRouter{},
		places:  newPlaces(t),
		viewers: NewViewers(800, 500, logger),
	}

	nav, err := NewNavigationService(NavigationOptions{
		Config:  testNavigationConfig(),
		Router:  f.router,
		Places:  f.places,
		Viewers: f.viewers,
		Logger:  logger,
	})
	require.NoError(t, err)
	f.navigation = nav
	f.explore = NewExploreService(f.places, f.viewers, mapview.DefaultPlaceMapOptions(), 0, nil, logger)

	t.Cleanup(func() {
		_ = f.navigation.CloseAll()
		_ = f.explore.CloseAll()
	})
	return f
}

func waitForState(t *testing.T, sess *Session, want navigation.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.engine.State() == want
	}, 2*time.Second, time.Millisecond, "session never reached %s", want)
}

func waitForGuidance(t *testing.T, sess *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := sess.engine.Guidance()
		return ok
	}, 2*time.Second, time.Millisecond)
}
