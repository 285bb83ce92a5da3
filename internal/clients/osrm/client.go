package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

const providerName = "osrm"

// DefaultBaseURL is the public OSRM demo server
const DefaultBaseURL = "https://router.project-osrm.org"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries an OSRM route service
type Client struct {
	baseURL    string
	profile    string
	httpClient HTTPDoer
}

// NewClient creates an OSRM client for the given profile (for example "driving")
func NewClient(baseURL, profile string) *Client {
	return NewClientWithHTTPDoer(baseURL, profile, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(baseURL, profile string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = "driving"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: doer,
	}
}

// ComputeRoutes requests routes through the waypoints, best candidate first
func (c *Client) ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]routing.Route, error) {
	if len(waypoints) < 2 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "at least two waypoints required"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(waypoints), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	// OSRM reports routing failures such as NoRoute with a 400 status and a JSON body
	var response RouteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: string(body)}
		}
		return nil, &routing.ProviderError{Provider: providerName, Message: "failed to decode response", Err: err}
	}

	switch response.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: response.Message, Err: routing.ErrNoRoute}
	default:
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: response.Code + ": " + response.Message}
	}

	if len(response.Routes) == 0 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "no routes in response", Err: routing.ErrNoRoute}
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

func (c *Client) routeURL(waypoints []geo.Point) string {
	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = strconv.FormatFloat(p.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Latitude, 'f', -1, 64)
	}

	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "polyline")
	query.Set("steps", "true")
	query.Set("alternatives", strconv.FormatBool(len(waypoints) == 2))

	return fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, c.profile, strings.Join(coords, ";"), query.Encode())
}

func convertRoute(r Route) (routing.Route, error) {
	points, err := geo.DecodePolyline(r.Geometry)
	if err != nil {
		return routing.Route{}, err
	}

	route := routing.Route{
		Coordinates:          points,
		TotalDistanceMeters:  r.Distance,
		TotalDurationSeconds: r.Duration,
	}

	var indexer routing.StepIndexer
	for _, leg := range r.Legs {
		for _, step := range leg.Steps {
			var stepPoints int
			if step.Geometry != "" {
				decoded, err := geo.DecodePolyline(step.Geometry)
				if err != nil {
					return routing.Route{}, err
				}
				stepPoints = len(decoded)
			}

			route.Instructions = append(route.Instructions, routing.Instruction{
				PolylineIndex:   indexer.Next(stepPoints),
				Text:            instructionText(step),
				DistanceMeters:  step.Distance,
				DurationSeconds: step.Duration,
				ManeuverType:    maneuverType(step.Maneuver),
			})
		}
	}
	return route, nil
}

// RouteResponse is the body of an OSRM route service reply
type RouteResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []Route `json:"routes"`
}

// Route is a single OSRM route candidate
type Route struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Legs     []Leg   `json:"legs"`
}

// Leg is the part of a route between two waypoints
type Leg struct {
	Steps []Step `json:"steps"`
}

// Step is one maneuver and the road travelled after it
type Step struct {
	Geometry string   `json:"geometry"`
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Maneuver Maneuver `json:"maneuver"`
}

// Maneuver describes the action at the start of a step
type Maneuver struct {
	Type          string  `json:"type"`
	Modifier      string  `json:"modifier,omitempty"`
	BearingAfter  float64 `json:"bearing_after"`
	BearingBefore float64 `json:"bearing_before"`
	Exit          int     `json:"exit,omitempty"`
}
