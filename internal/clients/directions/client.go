package directions

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

const providerName = "directions"

// API is the subset of *maps.Client used by the provider
type API interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// Client routes through the Google Directions API
type Client struct {
	api  API
	mode maps.Mode
}

// NewClient creates a Directions provider. baseURL is optional and used by tests.
func NewClient(apiKey, baseURL string) (*Client, error) {
	options := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		options = append(options, maps.WithBaseURL(baseURL))
	}

	api, err := maps.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewClientWithAPI(api), nil
}

// NewClientWithAPI wraps an existing Directions API implementation
func NewClientWithAPI(api API) *Client {
	return &Client{api: api, mode: maps.TravelModeDriving}
}

// ComputeRoutes requests driving directions through the waypoints
func (c *Client) ComputeRoutes(ctx context.Context, waypoints []geo.Point) ([]routing.Route, error) {
	if len(waypoints) < 2 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "at least two waypoints required"}
	}

	req := &maps.DirectionsRequest{
		Origin:       latLngString(waypoints[0]),
		Destination:  latLngString(waypoints[len(waypoints)-1]),
		Mode:         c.mode,
		Alternatives: len(waypoints) == 2,
		Units:        maps.UnitsMetric,
		Language:     "en",
	}
	for _, p := range waypoints[1 : len(waypoints)-1] {
		req.Waypoints = append(req.Waypoints, latLngString(p))
	}

	routes, _, err := c.api.Directions(ctx, req)
	if err != nil {
		return nil, &routing.ProviderError{Provider: providerName, Message: "directions request failed", Err: err}
	}
	if len(routes) == 0 {
		return nil, &routing.ProviderError{Provider: providerName, Message: "no routes", Err: routing.ErrNoRoute}
	}

	out := make([]routing.Route, 0, len(routes))
	for _, r := range routes {
		route, err := convertRoute(r)
		if err != nil {
			return nil, &routing.ProviderError{Provider: providerName, Message: "invalid route", Err: err}
		}
		out = append(out, route)
	}
	return out, nil
}

// convertRoute builds the route geometry from step polylines so instruction indices
// line up with the coordinates. The overview polyline is smoothed and is only used
// when no step geometry is present.
func convertRoute(r maps.Route) (routing.Route, error) {
	var route routing.Route
	var indexer routing.StepIndexer

	for _, leg := range r.Legs {
		route.TotalDistanceMeters += float64(leg.Distance.Meters)
		route.TotalDurationSeconds += leg.Duration.Seconds()

		for _, step := range leg.Steps {
			points, err := step.Polyline.Decode()
			if err != nil {
				return routing.Route{}, fmt.Errorf("failed to decode step polyline: %w", err)
			}

			text := stripHTML(step.HTMLInstructions)
			route.Instructions = append(route.Instructions, routing.Instruction{
				PolylineIndex:   indexer.Next(len(points)),
				Text:            text,
				DistanceMeters:  float64(step.Distance.Meters),
				DurationSeconds: step.Duration.Seconds(),
				ManeuverType:    maneuverFromText(text),
			})

			for i, p := range points {
				if i == 0 && len(route.Coordinates) > 0 {
					continue
				}
				route.Coordinates = append(route.Coordinates, geo.Point{Latitude: p.Lat, Longitude: p.Lng})
			}
		}
	}

	if len(route.Coordinates) == 0 {
		overview, err := r.OverviewPolyline.Decode()
		if err != nil {
			return routing.Route{}, fmt.Errorf("failed to decode overview polyline: %w", err)
		}
		for _, p := range overview {
			route.Coordinates = append(route.Coordinates, geo.Point{Latitude: p.Lat, Longitude: p.Lng})
		}
	}

	return route, nil
}

func latLngString(p geo.Point) string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

// stripHTML removes tags from Directions html_instructions and decodes entities
func stripHTML(s string) string {
	out := make([]rune, 0, len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			out = append(out, ' ')
		case !inTag:
			out = append(out, r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(string(out))), " ")
}

// maneuverFromText guesses a maneuver token since the Directions step payload has none
func maneuverFromText(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "head"):
		return "depart"
	case strings.Contains(lower, "u-turn"):
		return "uturn"
	case strings.Contains(lower, "roundabout"):
		return "roundabout"
	case strings.Contains(lower, "slight left"):
		return "turn-slight-left"
	case strings.Contains(lower, "slight right"):
		return "turn-slight-right"
	case strings.Contains(lower, "turn left"):
		return "turn-left"
	case strings.Contains(lower, "turn right"):
		return "turn-right"
	case strings.Contains(lower, "keep left"):
		return "keep-left"
	case strings.Contains(lower, "keep right"):
		return "keep-right"
	case strings.Contains(lower, "destination"):
		return "arrive"
	default:
		return "straight"
	}
}
