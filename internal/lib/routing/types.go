package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

var (
	// ErrRouting is the root of every routing failure (provider, network or no path).
	ErrRouting = errors.New("routing failed")

	// ErrNoRoute means the provider found no path between the waypoints.
	ErrNoRoute = fmt.Errorf("%w: no route found", ErrRouting)
)

// Instruction is a single turn-by-turn guidance unit anchored to a polyline index
type Instruction struct {
	PolylineIndex   int     `json:"polyline_index"`
	Text            string  `json:"text"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	ManeuverType    string  `json:"maneuver_type,omitempty"`
}

// Route is a computed route between an origin and a destination.
// A Route is replaced wholesale on re-route and never mutated in place.
type Route struct {
	Coordinates          []geo.Point   `json:"coordinates"`
	Instructions         []Instruction `json:"instructions"`
	TotalDistanceMeters  float64       `json:"total_distance_meters"`
	TotalDurationSeconds float64       `json:"total_duration_seconds"`
}

// Provider is a third-party road routing engine.
// ComputeRoutes returns candidate routes ranked best first.
type Provider interface {
	ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]Route, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, waypoints []geo.Point) ([]Route, error)

// ComputeRoutes calls f
func (f ProviderFunc) ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]Route, error) {
	return f(ctx, waypoints)
}

// Result is the tagged outcome of a route request: either a Route was found or the request failed
type Result struct {
	Route *Route
	Err   error
}

// Found wraps a successful route
func Found(route Route) Result {
	return Result{Route: &route}
}

// Failed wraps a routing failure
func Failed(err error) Result {
	return Result{Err: err}
}

// OK reports whether the result carries a route
func (r Result) OK() bool {
	return r.Err == nil && r.Route != nil
}

// ProviderError describes a failure reported by a routing provider
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s routing error", e.Provider)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause, defaulting to ErrRouting
func (e *ProviderError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrRouting
}

// Is lets errors.Is(err, ErrRouting) match every provider error
func (e *ProviderError) Is(target error) bool {
	return target == ErrRouting
}

// StepIndexer assigns polyline anchor indices to consecutive step geometries.
// Adjacent steps share their boundary point, so each step advances the offset by len-1.
type StepIndexer struct {
	next int
}

// Next returns the anchor index for a step whose geometry has points coordinates
func (s *StepIndexer) Next(points int) int {
	idx := s.next
	if points > 1 {
		s.next += points - 1
	}
	return idx
}
