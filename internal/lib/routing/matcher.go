package routing

import (
	"errors"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// ErrEmptyRoute is returned when matching against a route without geometry
var ErrEmptyRoute = errors.New("route has no coordinates")

// StepMatcher locates a live position along an active route
type StepMatcher interface {
	// Match finds the closest polyline point to position and the instruction that covers it
	Match(position geo.Point, route Route) (Progress, error)

	// SetOffRouteThreshold configures the distance beyond which a position is reported as off route
	SetOffRouteThreshold(meters float64)
}

// Progress describes where a position sits on a route
type Progress struct {
	ClosestIndex      int          `json:"closest_index"`
	StepIndex         int          `json:"step_index"`
	Step              *Instruction `json:"step,omitempty"`
	DistanceFromRoute float64      `json:"distance_from_route"`
	RemainingMeters   float64      `json:"remaining_meters"`
	OffRoute          bool         `json:"off_route"`
}

// stepMatcher implements the StepMatcher interface
type stepMatcher struct {
	offRouteThreshold float64
}

// NewStepMatcher creates a new StepMatcher implementation
func NewStepMatcher() StepMatcher {
	return &stepMatcher{
		offRouteThreshold: 50.0,
	}
}

func (m *stepMatcher) SetOffRouteThreshold(meters float64) {
	m.offRouteThreshold = meters
}

func (m *stepMatcher) Match(position geo.Point, route Route) (Progress, error) {
	if len(route.Coordinates) == 0 {
		return Progress{}, ErrEmptyRoute
	}

	closest := ClosestIndex(route, position)
	progress := Progress{
		ClosestIndex: closest,
		StepIndex:    StepForIndex(route.Instructions, closest),
	}
	if progress.StepIndex >= 0 {
		step := route.Instructions[progress.StepIndex]
		progress.Step = &step
	}

	distance, err := geo.DistanceToPolyline(position, route.Coordinates)
	if err != nil {
		return Progress{}, err
	}
	progress.DistanceFromRoute = distance
	progress.OffRoute = distance > m.offRouteThreshold
	progress.RemainingMeters = remainingFrom(route.Coordinates, closest)

	return progress, nil
}

// ClosestIndex returns the index of the route coordinate nearest to p.
// Ties resolve to the lowest index; -1 for a route without coordinates.
func ClosestIndex(route Route, p geo.Point) int {
	idx, _ := geo.NearestIndex(p, route.Coordinates)
	return idx
}

// StepForIndex selects the first instruction whose PolylineIndex is at or after idx.
// When every instruction precedes idx the last one is selected. Returns -1 without instructions.
func StepForIndex(instructions []Instruction, idx int) int {
	if len(instructions) == 0 {
		return -1
	}
	for i, instruction := range instructions {
		if instruction.PolylineIndex >= idx {
			return i
		}
	}
	return len(instructions) - 1
}

// CurrentStep combines ClosestIndex and StepForIndex
func CurrentStep(route Route, p geo.Point) int {
	closest := ClosestIndex(route, p)
	if closest < 0 {
		return -1
	}
	return StepForIndex(route.Instructions, closest)
}

func remainingFrom(points []geo.Point, from int) float64 {
	var total float64
	for i := from; i >= 0 && i < len(points)-1; i++ {
		total += geo.DistanceMeters(points[i], points[i+1])
	}
	return total
}
