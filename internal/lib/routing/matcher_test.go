package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// straightRoute builds an eastbound route along latitude 23.0 with n points spaced 0.001 degrees
func straightRoute(n int, instructionIndices ...int) Route {
	route := Route{}
	for i := 0; i < n; i++ {
		route.Coordinates = append(route.Coordinates, geo.Point{Latitude: 23.0, Longitude: 72.5 + float64(i)*0.001})
	}
	for i, idx := range instructionIndices {
		route.Instructions = append(route.Instructions, Instruction{
			PolylineIndex: idx,
			Text:          []string{"Head east", "Continue", "Arrive"}[i%3],
		})
	}
	return route
}

func TestStepForIndex(t *testing.T) {
	instructions := []Instruction{{PolylineIndex: 0}, {PolylineIndex: 5}, {PolylineIndex: 12}}

	tests := []struct {
		name    string
		closest int
		want    int
	}{
		{"at first instruction", 0, 0},
		{"between first and second", 3, 1},
		{"exactly on second", 5, 1},
		{"between second and third", 7, 2},
		{"exactly on last", 12, 2},
		{"past the last instruction", 15, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StepForIndex(instructions, tt.closest))
		})
	}

	assert.Equal(t, -1, StepForIndex(nil, 3))
}

func TestClosestIndex_TiesPickFirst(t *testing.T) {
	route := straightRoute(4)
	route.Coordinates = append(route.Coordinates, route.Coordinates[1])

	assert.Equal(t, 1, ClosestIndex(route, route.Coordinates[1]))
	assert.Equal(t, -1, ClosestIndex(Route{}, route.Coordinates[0]))
}

func TestCurrentStep(t *testing.T) {
	route := straightRoute(20, 0, 5, 12)

	assert.Equal(t, 0, CurrentStep(route, route.Coordinates[0]))
	assert.Equal(t, 2, CurrentStep(route, route.Coordinates[7]))
	assert.Equal(t, 2, CurrentStep(route, route.Coordinates[15]))

	// Slightly north of index 4 still resolves to the instruction at 5
	near := geo.Point{Latitude: 23.0002, Longitude: route.Coordinates[4].Longitude}
	assert.Equal(t, 1, CurrentStep(route, near))

	assert.Equal(t, -1, CurrentStep(Route{}, near))
}

func TestStepMatcher_Match(t *testing.T) {
	matcher := NewStepMatcher()
	route := straightRoute(20, 0, 5, 12)

	progress, err := matcher.Match(route.Coordinates[7], route)
	require.NoError(t, err)
	assert.Equal(t, 7, progress.ClosestIndex)
	assert.Equal(t, 2, progress.StepIndex)
	require.NotNil(t, progress.Step)
	assert.Equal(t, 12, progress.Step.PolylineIndex)
	assert.False(t, progress.OffRoute)
	assert.Less(t, progress.DistanceFromRoute, 5.0)

	expectedRemaining := geo.DistanceMeters(route.Coordinates[7], route.Coordinates[19])
	assert.InDelta(t, expectedRemaining, progress.RemainingMeters, 1)
}

func TestStepMatcher_OffRoute(t *testing.T) {
	matcher := NewStepMatcher()
	route := straightRoute(10, 0, 5)

	// ~1.1km north of the route
	away := geo.Point{Latitude: 23.01, Longitude: 72.504}
	progress, err := matcher.Match(away, route)
	require.NoError(t, err)
	assert.True(t, progress.OffRoute)
	assert.Greater(t, progress.DistanceFromRoute, 1000.0)

	matcher.SetOffRouteThreshold(5000)
	progress, err = matcher.Match(away, route)
	require.NoError(t, err)
	assert.False(t, progress.OffRoute)
}

func TestStepMatcher_EmptyRoute(t *testing.T) {
	_, err := NewStepMatcher().Match(geo.Point{Latitude: 23, Longitude: 72}, Route{})
	assert.ErrorIs(t, err, ErrEmptyRoute)
}

func TestStepMatcher_NoInstructions(t *testing.T) {
	progress, err := NewStepMatcher().Match(geo.Point{Latitude: 23, Longitude: 72.5}, straightRoute(3))
	require.NoError(t, err)
	assert.Equal(t, -1, progress.StepIndex)
	assert.Nil(t, progress.Step)
}
