package graphhopper

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

const providerName = "graphhopper"

// DefaultBaseURL is the hosted GraphHopper routing API
const DefaultBaseURL = "https://graphhopper.com/api/1"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the GraphHopper /route endpoint
type Client struct {
	apiKey     string
	baseURL    string
	profile    string
	httpClient HTTPDoer
}

// NewClient creates a GraphHopper client
func NewClient(apiKey, baseURL, profile string) *Client {
	return NewClientWithHTTPDoer(apiKey, baseURL, profile, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(apiKey, baseURL, profile string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = "car"
	}
	return &Client{
		apiKey:     apiKey,
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

	query := url.Values{}
	for _, p := range waypoints {
		query.Add("point", strconv.FormatFloat(p.Latitude, 'f', -1, 64)+","+strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	}
	query.Set("profile", c.profile)
	query.Set("points_encoded", "false")
	query.Set("instructions", "true")
	query.Set("locale", "en")
	if len(waypoints) == 2 {
		query.Set("algorithm", "alternative_route")
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var response RouteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: string(body)}
		}
		return nil, &routing.ProviderError{Provider: providerName, Message: "failed to decode response", Err: err}
	}

	if resp.StatusCode >= 400 {
		providerErr := &routing.ProviderError{Provider: providerName, Status: resp.StatusCode, Message: response.Message}
		if isNoRoute(response.Message) {
			providerErr.Err = routing.ErrNoRoute
		}
		return nil, providerErr
	}

	if len(response.Paths) == 0 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "no paths in response", Err: routing.ErrNoRoute}
	}

	routes := make([]routing.Route, 0, len(response.Paths))
	for _, path := range response.Paths {
		routes = append(routes, convertPath(path))
	}
	return routes, nil
}

func convertPath(path Path) routing.Route {
	route := routing.Route{
		Coordinates:          make([]geo.Point, 0, len(path.Points.Coordinates)),
		TotalDistanceMeters:  path.Distance,
		TotalDurationSeconds: float64(path.Time) / 1000,
	}

	// GeoJSON order is [lon, lat]
	for _, c := range path.Points.Coordinates {
		if len(c) < 2 {
			continue
		}
		route.Coordinates = append(route.Coordinates, geo.Point{Latitude: c[1], Longitude: c[0]})
	}

	for _, instruction := range path.Instructions {
		idx := 0
		if len(instruction.Interval) > 0 {
			idx = instruction.Interval[0]
		}
		route.Instructions = append(route.Instructions, routing.Instruction{
			PolylineIndex:   idx,
			Text:            instruction.Text,
			DistanceMeters:  instruction.Distance,
			DurationSeconds: float64(instruction.Time) / 1000,
			ManeuverType:    signNames[instruction.Sign],
		})
	}
	return route
}

func isNoRoute(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "connection between locations not found") ||
		strings.Contains(lower, "cannot find point")
}

var signNames = map[int]string{
	-98: "uturn",
	-8:  "uturn-left",
	-7:  "keep-left",
	-3:  "turn-sharp-left",
	-2:  "turn-left",
	-1:  "turn-slight-left",
	0:   "straight",
	1:   "turn-slight-right",
	2:   "turn-right",
	3:   "turn-sharp-right",
	4:   "arrive",
	5:   "via",
	6:   "roundabout",
	7:   "keep-right",
	8:   "uturn-right",
}

// RouteResponse is the body of a GraphHopper /route reply
type RouteResponse struct {
	Message string `json:"message,omitempty"`
	Paths   []Path `json:"paths"`
}

// Path is one route candidate
type Path struct {
	Distance     float64       `json:"distance"`
	Time         int64         `json:"time"`
	Points       LineString    `json:"points"`
	Instructions []Instruction `json:"instructions"`
}

// LineString is an unencoded GeoJSON geometry
type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// Instruction is a GraphHopper turn instruction; Interval indexes into the path points
type Instruction struct {
	Distance   float64 `json:"distance"`
	Time       int64   `json:"time"`
	Text       string  `json:"text"`
	Sign       int     `json:"sign"`
	Interval   []int   `json:"interval"`
	StreetName string  `json:"street_name"`
}
