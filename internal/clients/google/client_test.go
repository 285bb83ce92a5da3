package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

var waypoints = []geo.Point{
	{Latitude: 23.0, Longitude: 72.5},
	{Latitude: 23.05, Longitude: 72.55},
}

// Helper function to load test fixture data
func loadTestFixture(t *testing.T, filename string) string {
	data, err := os.ReadFile("testdata/" + filename)
	require.NoError(t, err, "Failed to load test fixture %s", filename)
	return string(data)
}

// Helper function to create mock HTTP response
func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestComputeRoutes_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, loadTestFixture(t, "ahmedabad_route.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	routes, err := client.ComputeRoutes(context.Background(), waypoints)

	require.NoError(t, err)
	require.Len(t, routes, 2, "alternatives are returned in ranked order")

	best := routes[0]
	assert.Equal(t, 780.0, best.TotalDurationSeconds)
	assert.Equal(t, 7640.0, best.TotalDistanceMeters)
	require.Len(t, best.Coordinates, 5)
	assert.InDelta(t, 23.05, best.Coordinates[4].Latitude, 1e-9)

	require.Len(t, best.Instructions, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{
		best.Instructions[0].PolylineIndex,
		best.Instructions[1].PolylineIndex,
		best.Instructions[2].PolylineIndex,
	})
	assert.Equal(t, "Slight right onto SG Highway", best.Instructions[1].Text)
	assert.Equal(t, "TURN_SLIGHT_RIGHT", best.Instructions[1].ManeuverType)
	assert.Equal(t, 300.0, best.Instructions[1].DurationSeconds)
	assert.Equal(t, 3020.0, best.Instructions[1].DistanceMeters)

	assert.Empty(t, routes[1].Instructions)
	mockHTTP.AssertExpectations(t)
}

func TestComputeRoutes_NoRoutes(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": []}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	routes, err := client.ComputeRoutes(context.Background(), waypoints)

	assert.Nil(t, routes)
	assert.ErrorIs(t, err, routing.ErrNoRoute)
	assert.ErrorIs(t, err, routing.ErrRouting)
	assert.Contains(t, err.Error(), "no routes found in response")
	mockHTTP.AssertExpectations(t)
}

func TestComputeRoutes_RateLimitError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(429, `{"error": {"message": "Quota exceeded"}}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), waypoints)

	var providerErr *routing.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, 429, providerErr.Status)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestComputeRoutes_APIError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(400, `{"error": {"message": "Invalid request"}}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), waypoints)

	assert.ErrorIs(t, err, routing.ErrRouting)
	assert.Contains(t, err.Error(), "Invalid request")
}

func TestComputeRoutes_TransportError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("dial tcp: timeout"))

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), waypoints)

	assert.ErrorIs(t, err, routing.ErrRouting)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestComputeRoutes_RequestFormat(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.Method != http.MethodPost || req.URL.String() != "https://routes.googleapis.com/directions/v2:computeRoutes" {
			return false
		}
		if req.Header.Get("X-Goog-Api-Key") != "test-api-key" || req.Header.Get("X-Goog-FieldMask") != fieldMask {
			return false
		}

		var body computeRoutesRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return false
		}
		return body.Origin.Location.LatLng.Latitude == 23.0 &&
			body.Destination.Location.LatLng.Longitude == 72.55 &&
			body.TravelMode == "DRIVE" &&
			body.ComputeAlternativeRoutes
	})).Return(createMockResponse(200, loadTestFixture(t, "ahmedabad_route.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), waypoints)

	require.NoError(t, err)
	mockHTTP.AssertExpectations(t)
}

func TestComputeRoutes_Intermediates(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		var body computeRoutesRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return false
		}
		return len(body.Intermediates) == 1 && !body.ComputeAlternativeRoutes
	})).Return(createMockResponse(200, loadTestFixture(t, "ahmedabad_route.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), []geo.Point{waypoints[0], {Latitude: 23.02, Longitude: 72.52}, waypoints[1]})

	require.NoError(t, err)
	mockHTTP.AssertExpectations(t)
}

func TestComputeRoutes_InvalidJSON(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": [`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), waypoints)

	assert.ErrorIs(t, err, routing.ErrRouting)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestComputeRoutes_TooFewWaypoints(t *testing.T) {
	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", &MockHTTPDoer{})
	_, err := client.ComputeRoutes(context.Background(), waypoints[:1])
	assert.ErrorIs(t, err, routing.ErrRouting)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]float64{
		"450s":  450,
		"0s":    0,
		"12.5s": 12.5,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseDuration("")
	assert.Error(t, err)
	_, err = parseDuration("abc")
	assert.Error(t, err)
}
