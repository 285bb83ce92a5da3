package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNoMapSurface    = errors.New("session does not hold a map surface")
)

const navigationKind = "navigation"

// Command is a user action on a navigation session
type Command string

const (
	CommandToggleFollow Command = "toggle_follow"
	CommandRecenter     Command = "recenter"
	CommandToggleMode   Command = "toggle_mode"
	CommandRetry        Command = "retry"
)

// CommandResult reports the outcome of a Command
type CommandResult struct {
	Command    Command          `json:"command"`
	State      navigation.State `json:"state"`
	AutoFollow bool             `json:"auto_follow"`
	Mode       mapview.TileMode `json:"map_mode"`
}

// CreateSessionRequest opens navigation towards a destination point or a place id.
// Without an origin the session asks the tracker for one fix and falls back to the
// first pushed fix.
type CreateSessionRequest struct {
	ViewerID    string           `json:"viewer_id,omitempty"`
	PlaceID     string           `json:"place_id,omitempty"`
	Destination *geo.Point       `json:"destination,omitempty"`
	Origin      *geo.Point       `json:"origin,omitempty"`
	Mode        mapview.TileMode `json:"map_mode,omitempty"`
}

// ChangeDestinationRequest points a session somewhere else, forcing a full restart
type ChangeDestinationRequest struct {
	PlaceID     string           `json:"place_id,omitempty"`
	Destination *geo.Point       `json:"destination,omitempty"`
	Mode        mapview.TileMode `json:"map_mode,omitempty"`
}

// NavigationOptions wires a NavigationService
type NavigationOptions struct {
	Config  navigation.Config
	Router  navigation.RouteRequester
	Places  *PlacesService
	Viewers *Viewers
	Metrics *metrics.Collector
	Logger  *zap.Logger

	// AcquireTimeout bounds the one-shot origin fetch; the tracker's own limit applies when zero
	AcquireTimeout time.Duration
}

// NavigationService owns the live navigation sessions
type NavigationService struct {
	cfg     navigation.Config
	router  navigation.RouteRequester
	places  *PlacesService
	viewers *Viewers
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
	acquire time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewNavigationService creates a new navigation service
func NewNavigationService(opts NavigationOptions) (*NavigationService, error) {
	if opts.Router == nil {
		return nil, errors.New("navigation service requires a router")
	}
	if opts.Viewers == nil {
		return nil, errors.New("navigation service requires a viewer registry")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &NavigationService{
		cfg:      opts.Config,
		router:   opts.Router,
		places:   opts.Places,
		viewers:  opts.Viewers,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
		acquire:  opts.AcquireTimeout,
		sessions: make(map[string]*Session),
	}, nil
}

// Create opens a session and starts navigation when the origin is known
func (s *NavigationService) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	mode, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.Origin != nil && !req.Origin.Valid() {
		return nil, fmt.Errorf("invalid origin: %w", geo.ErrInvalidCoordinate)
	}
	destination, placeID, err := s.resolveDestination(ctx, req.PlaceID, req.Destination)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	viewer := s.viewers.Get(req.ViewerID)
	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id), zap.String("viewer_id", viewer.ID))
	now := s.now()

	feed := position.NewFeed()
	if fix, ok := viewer.LastFix(); ok {
		feed.Seed(fix)
	}
	sess := &Session{
		ID:           id,
		ViewerID:     viewer.ID,
		CreatedAt:    now,
		viewer:       viewer,
		feed:         feed,
		tracker:      position.NewTracker(feed, logger),
		hub:          newEventHub(logger),
		logger:       logger,
		now:          s.now,
		placeID:      placeID,
		destination:  destination,
		mode:         mode,
		lastActivity: now,
	}

	engine, err := navigation.New(s.cfg, navigation.Options{
		Router:   s.router,
		Surfaces: sess.claimSurface,
		Sink:     sess,
		Metrics:  s.metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	sess.engine = engine

	sub, err := sess.tracker.StartWatch(sess.onFix, sess.onLocationError)
	if err != nil {
		feed.Close()
		return nil, fmt.Errorf("failed to start position watch: %w", err)
	}
	sess.sub = sub

	if req.Origin != nil {
		if err := engine.Start(req.Origin, &destination, mode); err != nil {
			_ = sess.Close()
			return nil, err
		}
	} else {
		acquireCtx, cancel := context.WithCancel(context.Background())
		if s.acquire > 0 {
			acquireCtx, cancel = context.WithTimeout(context.Background(), s.acquire)
		}
		sess.acquireCancel = cancel
		sess.acquired = make(chan struct{})
		go sess.acquireOrigin(acquireCtx)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened(navigationKind)

	logger.Info("Navigation session created",
		zap.String("place_id", placeID),
		zap.Float64("destination_lat", destination.Latitude),
		zap.Float64("destination_lng", destination.Longitude),
		zap.Bool("origin_known", req.Origin != nil))
	return sess, nil
}

// Get returns a live session
func (s *NavigationService) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns snapshots of all sessions ordered by creation time
func (s *NavigationService) List() []SessionSnapshot {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	out := make([]SessionSnapshot, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Snapshot()
	}
	return out
}

// ChangeDestination restarts navigation of a session towards a new destination
func (s *NavigationService) ChangeDestination(ctx context.Context, id string, req ChangeDestinationRequest) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return err
	}
	destination, placeID, err := s.resolveDestination(ctx, req.PlaceID, req.Destination)
	if err != nil {
		return err
	}
	return sess.changeDestination(placeID, destination, mode)
}

// Close disposes a session and forgets it. Closing an unknown id reports ErrSessionNotFound.
func (s *NavigationService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.metrics.SessionClosed(navigationKind)
	return sess.Close()
}

// CloseAll disposes every session and refuses new ones
func (s *NavigationService) CloseAll() error {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	var err error
	for _, sess := range sessions {
		s.metrics.SessionClosed(navigationKind)
		err = multierr.Append(err, sess.Close())
	}
	return err
}

// ReapIdle closes sessions without activity for idle, and sessions whose map was taken over
func (s *NavigationService) ReapIdle(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	var stale []string
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity()) >= idle || sess.engine.State() == navigation.Disposed {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	reaped := 0
	for _, id := range stale {
		if err := s.Close(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			s.logger.Warn("Error closing idle navigation session", zap.String("session_id", id), zap.Error(err))
		}
		reaped++
	}
	return reaped
}

func (s *NavigationService) resolveDestination(ctx context.Context, placeID string, point *geo.Point) (geo.Point, string, error) {
	switch {
	case point != nil:
		if !point.Valid() {
			return geo.Point{}, "", fmt.Errorf("invalid destination: %w", geo.ErrInvalidCoordinate)
		}
		return *point, placeID, nil
	case placeID != "":
		if s.places == nil {
			return geo.Point{}, "", navigation.ErrDataMissing
		}
		place, err := s.places.Resolve(ctx, placeID)
		if err != nil {
			return geo.Point{}, "", err
		}
		return place.Location, place.ID, nil
	default:
		return geo.Point{}, "", navigation.ErrDataMissing
	}
}

func parseMode(mode mapview.TileMode) (mapview.TileMode, error) {
	if mode == "" {
		return "", nil
	}
	return mapview.ParseTileMode(string(mode))
}

// Session is one navigation session: a position feed, its tracker and the engine
type Session struct {
	ID        string
	ViewerID  string
	CreatedAt time.Time

	viewer  *Viewer
	feed    *position.Feed
	tracker *position.Tracker
	engine  *navigation.Engine
	hub     *eventHub
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.Mutex
	placeID      string
	destination  geo.Point
	mode         mapview.TileMode
	sub          *position.Subscription
	lastActivity time.Time
	closed       bool

	acquireCancel context.CancelFunc
	acquired      chan struct{}
}

// SessionSnapshot is the client view of a session
type SessionSnapshot struct {
	ID           string               `json:"id"`
	ViewerID     string               `json:"viewer_id"`
	PlaceID      string               `json:"place_id,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	LastActivity time.Time            `json:"last_activity"`
	Tracking     string               `json:"tracking"`
	Navigation   navigation.Snapshot  `json:"navigation"`
	Guidance     *navigation.Guidance `json:"guidance,omitempty"`
	Map          *mapview.Snapshot    `json:"map,omitempty"`
}

// PushFix feeds a device fix into the session
func (s *Session) PushFix(fix position.Fix) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.touch()
	if err := s.feed.Push(fix); err != nil {
		return err
	}
	s.viewer.rememberFix(fix.Point, s.now())
	return nil
}

// PushLocationError reports a device location failure
func (s *Session) PushLocationError(code position.Code, message string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.touch()
	s.feed.Fail(position.NewError(code, message))
	return nil
}

// Execute runs a user command against the engine
func (s *Session) Execute(cmd Command) (CommandResult, error) {
	if s.isClosed() {
		return CommandResult{}, ErrSessionClosed
	}
	s.touch()

	var err error
	switch cmd {
	case CommandToggleFollow:
		_, err = s.engine.ToggleAutoFollow()
	case CommandRecenter:
		err = s.engine.Recenter()
	case CommandToggleMode:
		var mode mapview.TileMode
		if mode, err = s.engine.ToggleMapMode(); err == nil {
			s.mu.Lock()
			s.mode = mode
			s.mu.Unlock()
		}
	case CommandRetry:
		err = s.engine.Retry()
	default:
		return CommandResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return CommandResult{}, err
	}

	snap := s.engine.Snapshot()
	return CommandResult{Command: cmd, State: snap.State, AutoFollow: snap.AutoFollow, Mode: snap.Mode}, nil
}

// Subscribe streams engine events until the returned cancel func is called or the session closes
func (s *Session) Subscribe(buffer int) (<-chan navigation.Event, func()) {
	return s.hub.subscribe(buffer)
}

// Snapshot returns the session state with the map model when the session holds the surface
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	placeID, last := s.placeID, s.lastActivity
	s.mu.Unlock()

	snap := SessionSnapshot{
		ID:           s.ID,
		ViewerID:     s.ViewerID,
		PlaceID:      placeID,
		CreatedAt:    s.CreatedAt,
		LastActivity: last,
		Tracking:     s.tracker.State().String(),
		Navigation:   s.engine.Snapshot(),
	}
	if g, ok := s.engine.Guidance(); ok {
		snap.Guidance = &g
	}
	if canvas, ok := s.viewer.Canvas(s.ID); ok {
		m := canvas.Snapshot()
		snap.Map = &m
	}
	return snap
}

// WriteKML exports the session's map as a KML document
func (s *Session) WriteKML(w io.Writer) error {
	canvas, ok := s.viewer.Canvas(s.ID)
	if !ok {
		return ErrNoMapSurface
	}
	return canvas.WriteKML(w, "Odyssey navigation "+s.ID)
}

// LastActivity returns the time of the last client interaction
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Close stops the position watch, disposes the engine and releases the map surface.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if s.acquireCancel != nil {
		s.acquireCancel()
		<-s.acquired
	}
	s.tracker.StopWatch(sub)
	err := s.engine.Dispose()
	s.engine.Wait()
	err = multierr.Append(err, s.viewer.host.Release(s.ID))
	s.feed.Close()
	s.hub.close()

	s.logger.Info("Navigation session closed")
	return err
}

func (s *Session) changeDestination(placeID string, destination geo.Point, mode mapview.TileMode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if mode == "" {
		mode = s.mode
	}
	s.placeID = placeID
	s.destination = destination
	s.mode = mode
	s.lastActivity = s.now()
	s.mu.Unlock()

	origin := s.engine.Snapshot().Origin
	if origin == nil {
		if fix, ok := s.tracker.Latest(); ok {
			origin = &fix.Point
		}
	}
	if origin == nil {
		// started by the next fix
		return nil
	}
	return s.engine.Start(origin, &destination, mode)
}

// Emit forwards engine events to subscribers. A failed initialization has
// already removed its surface, so the viewer's map is handed back.
func (s *Session) Emit(ev navigation.Event) {
	if ev.Kind == navigation.EventState && ev.State == navigation.Failed {
		if err := s.viewer.host.Release(s.ID); err != nil {
			s.logger.Warn("Failed to release map after initialization failure", zap.Error(err))
		}
	}
	s.hub.Emit(ev)
}

// claimSurface is the engine's surface factory: it takes over the viewer's map
func (s *Session) claimSurface(ctx context.Context) (mapview.Surface, error) {
	return s.viewer.host.Claim(ctx, s.ID, s.displaced)
}

// displaced runs under the viewer host lock when another view takes the map
func (s *Session) displaced() error {
	s.logger.Info("Navigation map taken over by another view")
	return s.engine.Dispose()
}

// acquireOrigin starts navigation from a one-shot fix. On failure the error is
// reported and the position watch stays in place to start on the first fix.
func (s *Session) acquireOrigin(ctx context.Context) {
	defer close(s.acquired)
	defer s.acquireCancel()

	fix, err := s.tracker.AcquireOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, position.ErrClosed) || s.isClosed() {
			return
		}
		s.logger.Warn("Failed to acquire origin", zap.Error(err))
		// device-reported errors already reach the engine through the watch
		if perr, ok := position.AsError(err); ok && perr.Code == position.Timeout {
			s.engine.NotifyLocationError(err)
		}
		return
	}

	s.mu.Lock()
	destination, mode := s.destination, s.mode
	s.mu.Unlock()

	if s.engine.State() != navigation.Uninitialized {
		return
	}
	origin := fix.Point
	if err := s.engine.Start(&origin, &destination, mode); err != nil && !errors.Is(err, navigation.ErrDisposed) {
		s.logger.Warn("Failed to start navigation from acquired fix", zap.Error(err))
	}
}

func (s *Session) onFix(fix position.Fix) {
	s.mu.Lock()
	destination, mode := s.destination, s.mode
	s.mu.Unlock()

	switch s.engine.State() {
	case navigation.Uninitialized:
		origin := fix.Point
		if err := s.engine.Start(&origin, &destination, mode); err != nil {
			s.logger.Warn("Failed to start navigation from first fix", zap.Error(err))
		}
	case navigation.Disposed:
		return
	default:
		if err := s.engine.UpdatePosition(fix.Point); err != nil && !errors.Is(err, navigation.ErrDisposed) {
			s.logger.Warn("Failed to apply position update", zap.Error(err))
		}
	}
}

func (s *Session) onLocationError(err error) {
	s.engine.NotifyLocationError(err)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
	s.viewer.touch(s.now())
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
