package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// Router turns (origin, destination) pairs into normalized routes using a Provider
type Router struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRouter creates a router. A zero timeout leaves the provider default in place.
func NewRouter(provider Provider, timeout time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Route requests a route between exactly two waypoints and returns the provider's
// top-ranked candidate. It never panics on provider failure; failures are returned
// as a Failed result wrapping ErrRouting.
func (r *Router) Route(ctx context.Context, origin, destination geo.Point) Result {
	if !origin.Valid() || !destination.Valid() {
		return Failed(fmt.Errorf("%w: %w", ErrRouting, geo.ErrInvalidCoordinate))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	candidates, err := r.provider.ComputeRoutes(ctx, []geo.Point{origin, destination})
	if err != nil {
		r.logger.Warn("route request failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		if !errors.Is(err, ErrRouting) {
			err = fmt.Errorf("%w: %w", ErrRouting, err)
		}
		return Failed(err)
	}

	if len(candidates) == 0 {
		return Failed(ErrNoRoute)
	}

	route, err := Normalize(candidates[0])
	if err != nil {
		return Failed(err)
	}

	r.logger.Debug("route computed",
		zap.Int("candidates", len(candidates)),
		zap.Int("points", len(route.Coordinates)),
		zap.Int("instructions", len(route.Instructions)),
		zap.Float64("distance_m", route.TotalDistanceMeters),
		zap.Duration("elapsed", time.Since(start)))

	return Found(route)
}

// Normalize validates a provider route and returns a copy with instructions sorted
// by polyline index and every index clamped into the coordinate range.
// Missing totals are derived from the geometry and instructions.
func Normalize(route Route) (Route, error) {
	if len(route.Coordinates) < 2 {
		return Route{}, fmt.Errorf("%w: route must have at least 2 points", ErrRouting)
	}
	for _, p := range route.Coordinates {
		if !p.Valid() {
			return Route{}, fmt.Errorf("%w: %w", ErrRouting, geo.ErrInvalidCoordinate)
		}
	}

	out := Route{
		Coordinates:          append([]geo.Point(nil), route.Coordinates...),
		Instructions:         append([]Instruction(nil), route.Instructions...),
		TotalDistanceMeters:  route.TotalDistanceMeters,
		TotalDurationSeconds: route.TotalDurationSeconds,
	}

	last := len(out.Coordinates) - 1
	for i := range out.Instructions {
		if out.Instructions[i].PolylineIndex < 0 {
			out.Instructions[i].PolylineIndex = 0
		}
		if out.Instructions[i].PolylineIndex > last {
			out.Instructions[i].PolylineIndex = last
		}
	}
	sort.SliceStable(out.Instructions, func(i, j int) bool {
		return out.Instructions[i].PolylineIndex < out.Instructions[j].PolylineIndex
	})

	if out.TotalDistanceMeters <= 0 {
		out.TotalDistanceMeters = remainingFrom(out.Coordinates, 0)
	}
	if out.TotalDurationSeconds <= 0 {
		for _, instruction := range out.Instructions {
			out.TotalDurationSeconds += instruction.DurationSeconds
		}
	}

	return out, nil
}
