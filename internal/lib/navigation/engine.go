package navigation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

const (
	userMarker        mapview.MarkerID = "navigator"
	destinationMarker mapview.MarkerID = "destination"
)

// RouteRequester computes a route between two waypoints
type RouteRequester interface {
	Route(ctx context.Context, origin, destination geo.Point) routing.Result
}

// Options wires an Engine to its collaborators
type Options struct {
	Router   RouteRequester
	Surfaces mapview.Factory
	Sink     EventSink
	Metrics  Metrics
	Logger   *zap.Logger
}

// Engine is the navigation state machine of one session. It owns the map
// surface while initialized, keeps the active route and derives the current
// step from live positions.
type Engine struct {
	cfg      Config
	router   RouteRequester
	surfaces mapview.Factory
	sink     EventSink
	metrics  Metrics
	logger   *zap.Logger
	matcher  routing.StepMatcher

	mu          sync.Mutex
	state       State
	epoch       uint64
	ctx         context.Context
	cancel      context.CancelFunc
	origin      *geo.Point
	destination *geo.Point
	mode        mapview.TileMode
	autoFollow  bool
	heading     float64
	counter     int
	route       *routing.Route
	progress    routing.Progress
	stepIndex   int
	issuedSeq   uint64
	appliedSeq  uint64
	surface     mapview.Surface
	lastErr     error

	wg sync.WaitGroup
}

// New creates an engine in the uninitialized state
func New(cfg Config, opts Options) (*Engine, error) {
	if opts.Router == nil {
		return nil, errors.New("navigation engine requires a router")
	}
	if opts.Surfaces == nil {
		return nil, errors.New("navigation engine requires a map surface factory")
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cfg = cfg.withDefaults()
	matcher := routing.NewStepMatcher()
	if cfg.OffRouteThresholdMeters > 0 {
		matcher.SetOffRouteThreshold(cfg.OffRouteThresholdMeters)
	}

	return &Engine{
		cfg:      cfg,
		router:   opts.Router,
		surfaces: opts.Surfaces,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		matcher:  matcher,
		state:    Uninitialized,
		mode:     cfg.InitialMode,
	}, nil
}

// Start begins navigation from origin to destination. Calling Start again for
// the same destination and mode while initializing or ready is a no-op; a
// different destination or mode tears the session down and starts over.
func (e *Engine) Start(origin, destination *geo.Point, mode mapview.TileMode) error {
	if mode == "" {
		mode = e.cfg.InitialMode
	}
	if _, err := mapview.ParseTileMode(string(mode)); err != nil {
		return err
	}

	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	if origin == nil || destination == nil {
		events := []Event{e.notifyLocked(dataMissingNotification())}
		e.mu.Unlock()
		e.emit(events)
		return ErrDataMissing
	}
	if !origin.Valid() || !destination.Valid() {
		e.mu.Unlock()
		return fmt.Errorf("cannot start navigation: %w", geo.ErrInvalidCoordinate)
	}
	if e.activeLocked() && e.destination.Equal(*destination) && e.mode == mode {
		e.mu.Unlock()
		return nil
	}

	var teardownErr error
	if e.state != Uninitialized {
		e.logger.Info("Restarting navigation",
			zap.Stringer("previous_state", e.state),
			zap.String("mode", string(mode)))
		teardownErr = e.teardownLocked()
	}

	o, d := *origin, *destination
	e.origin = &o
	e.destination = &d
	e.mode = mode
	e.autoFollow = true
	e.heading = 0
	e.counter = 0
	e.lastErr = nil
	events := e.beginInitLocked()
	e.mu.Unlock()

	e.emit(events)
	if teardownErr != nil {
		e.logger.Warn("Error releasing previous navigation map", zap.Error(teardownErr))
	}
	return nil
}

// UpdatePosition feeds a new origin. Before the map is ready the position is
// only recorded; afterwards the marker, viewport, heading and current step follow it
// and every RerouteEvery-th update requests a fresh route.
func (e *Engine) UpdatePosition(p geo.Point) error {
	if !p.Valid() {
		return fmt.Errorf("invalid position: %w", geo.ErrInvalidCoordinate)
	}

	e.mu.Lock()
	switch e.state {
	case Disposed:
		e.mu.Unlock()
		return ErrDisposed
	case Ready:
	default:
		e.trackOriginLocked(p)
		e.mu.Unlock()
		return nil
	}

	e.state = Updating
	if err := e.surface.MoveMarker(userMarker, p); err != nil {
		e.logger.Warn("Failed to move user marker", zap.Error(err))
	}
	if e.autoFollow {
		if err := e.surface.PanTo(p); err != nil {
			e.logger.Warn("Failed to follow user position", zap.Error(err))
		}
	}
	e.trackOriginLocked(p)
	e.recomputeStepLocked()
	e.counter++

	reroute := e.counter%e.cfg.RerouteEvery == 0 && e.destination != nil
	var (
		ctx   context.Context
		epoch uint64
		seq   uint64
		dest  geo.Point
	)
	if reroute {
		ctx, epoch, seq, dest = e.ctx, e.epoch, e.nextSeqLocked(), *e.destination
		e.wg.Add(1)
	}
	e.state = Ready

	var events []Event
	if g, ok := e.guidanceLocked(); ok {
		events = append(events, Event{Kind: EventGuidance, State: e.state, Guidance: &g})
	}
	e.mu.Unlock()

	e.metrics.PositionUpdated()
	e.emit(events)
	if reroute {
		e.logger.Debug("Requesting re-route", zap.Uint64("sequence", seq))
		e.requestRoute(ctx, epoch, seq, p, dest, "reroute")
	}
	return nil
}

// ToggleAutoFollow flips auto-follow without moving the viewport
func (e *Engine) ToggleAutoFollow() (bool, error) {
	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return false, ErrDisposed
	}
	e.autoFollow = !e.autoFollow
	enabled := e.autoFollow

	title := "Manual navigation mode"
	if enabled {
		title = "Auto-follow mode enabled"
	}
	events := []Event{e.notifyLocked(Notification{Level: LevelInfo, Title: title})}
	e.mu.Unlock()

	e.emit(events)
	return enabled, nil
}

// Recenter moves the viewport to the origin, or to the destination when no
// origin is known, and redraws. Recentering on the origin re-enables auto-follow.
func (e *Engine) Recenter() error {
	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	if e.surface == nil {
		e.mu.Unlock()
		return ErrNotReady
	}

	var (
		target geo.Point
		title  string
	)
	switch {
	case e.origin != nil:
		target, title = *e.origin, "Map recentered on your location"
		e.autoFollow = true
	case e.destination != nil:
		target, title = *e.destination, "Map centered on destination"
	default:
		e.mu.Unlock()
		return ErrDataMissing
	}

	if err := multierr.Combine(e.surface.SetView(target, e.cfg.RecenterZoom), e.surface.Invalidate()); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to recenter map: %w", err)
	}
	events := []Event{e.notifyLocked(Notification{Level: LevelSuccess, Title: title})}
	e.mu.Unlock()

	e.emit(events)
	return nil
}

// ToggleMapMode swaps the tile source and redraws; the route is kept
func (e *Engine) ToggleMapMode() (mapview.TileMode, error) {
	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return e.cfg.InitialMode, ErrDisposed
	}

	next := e.mode.Toggle()
	if e.surface != nil {
		if err := multierr.Combine(e.surface.SetTileLayer(e.cfg.Tiles.Layer(next)), e.surface.Invalidate()); err != nil {
			current := e.mode
			e.mu.Unlock()
			return current, fmt.Errorf("failed to switch map mode: %w", err)
		}
	}
	e.mode = next
	events := []Event{e.notifyLocked(Notification{Level: LevelInfo, Title: fmt.Sprintf("Switched to %s view", next)})}
	e.mu.Unlock()

	e.emit(events)
	return next, nil
}

// Retry restarts initialization after it failed
func (e *Engine) Retry() error {
	e.mu.Lock()
	switch {
	case e.state == Disposed:
		e.mu.Unlock()
		return ErrDisposed
	case e.state != Failed:
		e.mu.Unlock()
		return ErrNotRetryable
	case e.origin == nil || e.destination == nil:
		e.mu.Unlock()
		return ErrDataMissing
	}
	e.lastErr = nil
	events := e.beginInitLocked()
	e.mu.Unlock()

	e.emit(events)
	return nil
}

// Dispose releases the map surface and abandons pending work.
// Replies that arrive afterwards are ignored. Safe to call more than once.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return nil
	}
	err := e.teardownLocked()
	e.state = Disposed
	events := []Event{e.stateEventLocked()}
	e.mu.Unlock()

	e.emit(events)
	return err
}

// NotifyLocationError surfaces a position error with its guidance text
func (e *Engine) NotifyLocationError(err error) {
	perr, ok := position.AsError(err)
	if !ok {
		perr = position.NewError(position.PositionUnavailable, err.Error())
	}
	title, hint := perr.Guidance()
	level := LevelWarning
	if perr.Terminal() {
		level = LevelError
	}

	e.mu.Lock()
	if e.state == Disposed {
		e.mu.Unlock()
		return
	}
	events := []Event{e.notifyLocked(Notification{Level: level, Title: title, Detail: hint, Code: perr.Code.String()})}
	e.mu.Unlock()

	e.emit(events)
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the session state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:         e.state,
		Route:         summarize(e.route),
		StepIndex:     e.stepIndex,
		AutoFollow:    e.autoFollow,
		Heading:       e.heading,
		Mode:          e.mode,
		UpdateCounter: e.counter,
	}
	if e.origin != nil {
		o := *e.origin
		s.Origin = &o
	}
	if e.destination != nil {
		d := *e.destination
		s.Destination = &d
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

// Guidance returns the turn-by-turn panel, or false without an active route
func (e *Engine) Guidance() (Guidance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guidanceLocked()
}

// Wait blocks until background work started by the engine has finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) activeLocked() bool {
	return e.state == Initializing || e.state == Ready || e.state == Updating
}

func (e *Engine) beginInitLocked() []Event {
	e.epoch++
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.state = Initializing

	ctx, epoch := e.ctx, e.epoch
	origin, destination, mode := *e.origin, *e.destination, e.mode

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.initialize(ctx, epoch, origin, destination, mode)
	}()
	return []Event{e.stateEventLocked()}
}

func (e *Engine) initialize(ctx context.Context, epoch uint64, origin, destination geo.Point, mode mapview.TileMode) {
	if !sleepContext(ctx, e.cfg.MapReadyDelay) {
		return
	}

	var (
		surface mapview.Surface
		err     error
	)
	for attempt := 1; attempt <= e.cfg.InitAttempts; attempt++ {
		surface, err = e.buildSurface(ctx, origin, destination, mode)
		e.metrics.InitAttempt(err == nil)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("Navigation map initialization attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.InitAttempts),
			zap.Error(err))
		if attempt < e.cfg.InitAttempts && !sleepContext(ctx, e.cfg.RetryBackoff) {
			return
		}
	}

	e.mu.Lock()
	if epoch != e.epoch || e.state != Initializing {
		e.mu.Unlock()
		if surface != nil {
			_ = releaseSurface(surface)
		}
		return
	}

	if err != nil {
		e.state = Failed
		e.lastErr = fmt.Errorf("%w after %d attempts: %w", ErrInitializationFailed, e.cfg.InitAttempts, err)
		e.cancel()
		events := []Event{
			e.stateEventLocked(),
			e.notifyLocked(Notification{
				Level:  LevelError,
				Title:  "Failed to load navigation map",
				Detail: "Please try again or refresh the page",
				Code:   "initialization_failed",
			}),
		}
		e.mu.Unlock()

		e.logger.Error("Navigation map initialization failed", zap.Error(err))
		e.emit(events)
		return
	}

	e.surface = surface
	e.state = Ready
	// The session may have moved on while the surface was being built
	if !e.origin.Equal(origin) {
		if err := surface.MoveMarker(userMarker, *e.origin); err != nil {
			e.logger.Warn("Failed to move user marker", zap.Error(err))
		}
	}
	if e.mode != mode {
		if err := surface.SetTileLayer(e.cfg.Tiles.Layer(e.mode)); err != nil {
			e.logger.Warn("Failed to apply map mode", zap.Error(err))
		}
	}
	routeOrigin := *e.origin
	seq := e.nextSeqLocked()
	e.wg.Add(1)
	events := []Event{e.stateEventLocked()}
	e.mu.Unlock()

	e.logger.Info("Navigation map ready",
		zap.Float64("origin_lat", routeOrigin.Latitude),
		zap.Float64("origin_lng", routeOrigin.Longitude),
		zap.Float64("destination_lat", destination.Latitude),
		zap.Float64("destination_lng", destination.Longitude))
	e.emit(events)

	e.startRedraw(ctx, epoch)
	e.requestRoute(ctx, epoch, seq, routeOrigin, destination, "initial")
}

// buildSurface attaches a surface with both markers and a fitted viewport.
// On failure the surface is removed again.
func (e *Engine) buildSurface(ctx context.Context, origin, destination geo.Point, mode mapview.TileMode) (mapview.Surface, error) {
	surface, err := e.surfaces(ctx)
	if err != nil {
		return nil, err
	}

	bounds, err := geo.BoundsOf(origin, destination)
	if err == nil {
		err = multierr.Combine(
			surface.SetTileLayer(e.cfg.Tiles.Layer(mode)),
			surface.AddMarker(userMarker, origin, mapview.MarkerOptions{
				Icon:           e.cfg.Icons.Navigator,
				ZIndexOffset:   1000,
				AccuracyRadius: e.cfg.AccuracyRadius,
			}),
			surface.AddMarker(destinationMarker, destination, mapview.MarkerOptions{
				Icon:  e.cfg.Icons.Destination,
				Popup: "Your destination",
			}),
			surface.FitBounds(bounds, mapview.FitOptions{Padding: e.cfg.FitPadding, MaxZoom: e.cfg.FitMaxZoom}),
		)
	}
	if err != nil {
		return nil, multierr.Append(err, surface.Remove())
	}
	return surface, nil
}

// requestRoute asks the router in the background. The caller adds the request
// to e.wg while holding e.mu, so Dispose followed by Wait cannot miss it.
func (e *Engine) requestRoute(ctx context.Context, epoch, seq uint64, origin, destination geo.Point, reason string) {
	e.metrics.RouteRequested(reason)
	go func() {
		defer e.wg.Done()
		result := e.router.Route(ctx, origin, destination)
		e.applyRoute(epoch, seq, result, reason)
	}()
}

// applyRoute installs a route reply unless the session moved on or a newer reply already landed
func (e *Engine) applyRoute(epoch, seq uint64, result routing.Result, reason string) {
	e.mu.Lock()
	if e.state == Disposed || epoch != e.epoch {
		e.mu.Unlock()
		e.metrics.StaleReply("epoch")
		e.logger.Debug("Dropping route reply from a closed session", zap.Uint64("sequence", seq))
		return
	}
	if applied := e.appliedSeq; seq <= applied {
		e.mu.Unlock()
		e.metrics.StaleReply("sequence")
		e.logger.Debug("Dropping superseded route reply", zap.Uint64("sequence", seq), zap.Uint64("applied", applied))
		return
	}

	if !result.OK() {
		e.lastErr = result.Err
		events := []Event{
			{Kind: EventRoute, State: e.state, Result: &result},
			e.notifyLocked(routingNotification(result.Err)),
		}
		e.mu.Unlock()

		e.metrics.RouteFailed(reason)
		e.logger.Warn("Route request failed", zap.String("reason", reason), zap.Error(result.Err))
		e.emit(events)
		return
	}

	route := *result.Route
	e.route = &route
	e.appliedSeq = seq
	e.lastErr = nil
	if e.surface != nil {
		if err := e.surface.SetRouteLine(route.Coordinates, e.cfg.RouteStyle); err != nil {
			e.logger.Warn("Failed to draw route line", zap.Error(err))
		}
	}
	e.recomputeStepLocked()

	events := []Event{{Kind: EventRoute, State: e.state, Route: summarize(e.route), Result: &result}}
	if g, ok := e.guidanceLocked(); ok {
		events = append(events, Event{Kind: EventGuidance, State: e.state, Guidance: &g})
	}
	e.mu.Unlock()

	e.emit(events)
}

func (e *Engine) startRedraw(ctx context.Context, epoch uint64) {
	if e.cfg.RedrawWindow <= 0 {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		deadline := time.Now().Add(e.cfg.RedrawWindow)
		timer := time.NewTimer(e.cfg.RedrawDelay)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if !e.invalidate(epoch) {
				return
			}
			if e.cfg.RedrawInterval <= 0 || !time.Now().Before(deadline) {
				return
			}
			timer.Reset(e.cfg.RedrawInterval)
		}
	}()
}

func (e *Engine) invalidate(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch || e.surface == nil {
		return false
	}
	if err := e.surface.Invalidate(); err != nil {
		e.logger.Debug("Stopping redraw", zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) teardownLocked() error {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.epoch++
	e.route = nil
	e.progress = routing.Progress{}
	e.stepIndex = 0

	surface := e.surface
	e.surface = nil
	if surface == nil {
		return nil
	}
	return releaseSurface(surface)
}

func releaseSurface(s mapview.Surface) error {
	err := multierr.Combine(
		ignoreGone(s.RemoveMarker(userMarker)),
		ignoreGone(s.RemoveMarker(destinationMarker)),
		ignoreGone(s.ClearRouteLine()),
	)
	return multierr.Append(err, s.Remove())
}

func ignoreGone(err error) error {
	if errors.Is(err, mapview.ErrSurfaceRemoved) || errors.Is(err, mapview.ErrUnknownMarker) {
		return nil
	}
	return err
}

func (e *Engine) trackOriginLocked(p geo.Point) {
	if e.origin != nil && !e.origin.Equal(p) {
		if h := geo.BearingDegrees(*e.origin, p); !math.IsNaN(h) {
			e.heading = h
		}
	}
	e.origin = &p
}

func (e *Engine) recomputeStepLocked() {
	if e.route == nil || e.origin == nil {
		return
	}
	progress, err := e.matcher.Match(*e.origin, *e.route)
	if err != nil {
		e.logger.Debug("Unable to match position to route", zap.Error(err))
		return
	}
	e.progress = progress
	e.stepIndex = max(progress.StepIndex, 0)
}

func (e *Engine) guidanceLocked() (Guidance, bool) {
	if e.route == nil {
		return Guidance{}, false
	}

	heading := math.Mod(math.Round(e.heading), 360)
	g := Guidance{
		TotalDistance:        routing.FormatDistance(e.route.TotalDistanceMeters),
		TotalDuration:        routing.FormatDuration(e.route.TotalDurationSeconds),
		TotalDistanceMeters:  e.route.TotalDistanceMeters,
		TotalDurationSeconds: e.route.TotalDurationSeconds,
		HeadingDegrees:       int(heading),
		Compass:              geo.CompassLabel(e.heading),
		StepIndex:            e.stepIndex,
		StepCount:            len(e.route.Instructions),
		DistanceFromRoute:    e.progress.DistanceFromRoute,
		OffRoute:             e.progress.OffRoute,
		RemainingDistance:    routing.FormatDistance(e.progress.RemainingMeters),
	}
	if e.stepIndex < len(e.route.Instructions) {
		instruction := e.route.Instructions[e.stepIndex]
		g.Instruction = &instruction
		g.InstructionDistance = routing.FormatDistance(instruction.DistanceMeters)
		g.InstructionDuration = routing.FormatDuration(instruction.DurationSeconds)
	}
	return g, true
}

func (e *Engine) nextSeqLocked() uint64 {
	e.issuedSeq++
	return e.issuedSeq
}

func (e *Engine) stateEventLocked() Event {
	return Event{Kind: EventState, State: e.state}
}

func (e *Engine) notifyLocked(n Notification) Event {
	return Event{Kind: EventNotification, State: e.state, Notification: &n}
}

func (e *Engine) emit(events []Event) {
	for _, ev := range events {
		e.sink.Emit(ev)
	}
}

func dataMissingNotification() Notification {
	return Notification{Level: LevelError, Title: "Missing location data for navigation", Code: "data_missing"}
}

func routingNotification(err error) Notification {
	title := "Unable to calculate route to destination"
	if errors.Is(err, routing.ErrNoRoute) {
		title = "Could not find a route to destination"
	}
	return Notification{
		Level:  LevelError,
		Title:  title,
		Detail: "Please try again or choose a different destination",
		Code:   "routing_error",
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
