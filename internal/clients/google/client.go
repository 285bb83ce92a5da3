package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

const providerName = "google"

// fieldMask selects the route summary plus per-step geometry and instructions.
// The Routes API rejects requests without a field mask.
const fieldMask = "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline," +
	"routes.legs.steps.distanceMeters,routes.legs.steps.staticDuration," +
	"routes.legs.steps.polyline.encodedPolyline,routes.legs.steps.navigationInstruction"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to Google Routes API v2
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
	travelMode string
}

// NewClient creates a new Google Routes API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, "https://routes.googleapis.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: doer,
		baseURL:    baseURL,
		travelMode: "DRIVE",
	}
}

// ComputeRoutes requests driving routes through the waypoints, alternatives included
func (c *Client) ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]routing.Route, error) {
	if len(waypoints) < 2 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "at least two waypoints required"}
	}

	requestBody := computeRoutesRequest{
		Origin:                   newWaypoint(waypoints[0]),
		Destination:              newWaypoint(waypoints[len(waypoints)-1]),
		TravelMode:               c.travelMode,
		ComputeAlternativeRoutes: len(waypoints) == 2,
		LanguageCode:             "en-US",
		Units:                    "METRIC",
	}
	for _, p := range waypoints[1 : len(waypoints)-1] {
		requestBody.Intermediates = append(requestBody.Intermediates, newWaypoint(p))
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions/v2:computeRoutes", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: "rate limit exceeded"}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: string(body)}
	}

	var response RoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Message: "failed to decode response", Err: err}
	}

	if len(response.Routes) == 0 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "no routes found in response", Err: routing.ErrNoRoute}
	}

	routes := make([]routing.Route, 0, len(response.Routes))
	for _, r := range response.Routes {
		route, err := convertRoute(r)
		if err != nil {
			return nil, &routing.ProviderError{Provider: providerName, Message: "invalid route", Err: err}
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// convertRoute converts a Routes API route to the routing model
func convertRoute(r Route) (routing.Route, error) {
	points, err := geo.DecodePolyline(r.Polyline.EncodedPolyline)
	if err != nil {
		return routing.Route{}, err
	}

	duration, err := parseDuration(r.Duration)
	if err != nil {
		return routing.Route{}, fmt.Errorf("failed to parse duration: %w", err)
	}

	route := routing.Route{
		Coordinates:          points,
		TotalDistanceMeters:  float64(r.DistanceMeters),
		TotalDurationSeconds: duration,
	}

	var indexer routing.StepIndexer
	for _, leg := range r.Legs {
		for _, step := range leg.Steps {
			var stepPoints int
			if step.Polyline.EncodedPolyline != "" {
				decoded, err := geo.DecodePolyline(step.Polyline.EncodedPolyline)
				if err != nil {
					return routing.Route{}, err
				}
				stepPoints = len(decoded)
			}
			stepDuration, _ := parseDuration(step.StaticDuration)

			route.Instructions = append(route.Instructions, routing.Instruction{
				PolylineIndex:   indexer.Next(stepPoints),
				Text:            step.NavigationInstruction.Instructions,
				DistanceMeters:  float64(step.DistanceMeters),
				DurationSeconds: stepDuration,
				ManeuverType:    step.NavigationInstruction.Maneuver,
			})
		}
	}

	return route, nil
}

// parseDuration parses Google's duration format like "450s" to seconds
func parseDuration(durationStr string) (float64, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

func newWaypoint(p geo.Point) waypoint {
	return waypoint{Location: location{LatLng: latLng{Latitude: p.Latitude, Longitude: p.Longitude}}}
}

type computeRoutesRequest struct {
	Origin                   waypoint   `json:"origin"`
	Destination              waypoint   `json:"destination"`
	Intermediates            []waypoint `json:"intermediates,omitempty"`
	TravelMode               string     `json:"travelMode"`
	ComputeAlternativeRoutes bool       `json:"computeAlternativeRoutes"`
	LanguageCode             string     `json:"languageCode"`
	Units                    string     `json:"units"`
}

type waypoint struct {
	Location location `json:"location"`
}

type location struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RoutesResponse represents the API response structure
type RoutesResponse struct {
	Routes []Route `json:"routes"`
}

// Route represents a single route in the response
type Route struct {
	Duration       string   `json:"duration"`
	DistanceMeters int32    `json:"distanceMeters"`
	Polyline       Polyline `json:"polyline"`
	Legs           []Leg    `json:"legs"`
}

// Polyline represents an encoded route or step polyline
type Polyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}

// Leg is the part of a route between two consecutive waypoints
type Leg struct {
	Steps []Step `json:"steps"`
}

// Step is a single maneuver within a leg
type Step struct {
	DistanceMeters        int32                 `json:"distanceMeters"`
	StaticDuration        string                `json:"staticDuration"`
	Polyline              Polyline              `json:"polyline"`
	NavigationInstruction NavigationInstruction `json:"navigationInstruction"`
}

// NavigationInstruction holds the maneuver type and human-readable text
type NavigationInstruction struct {
	Maneuver     string `json:"maneuver"`
	Instructions string `json:"instructions"`
}
