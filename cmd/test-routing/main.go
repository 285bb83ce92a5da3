package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/clients/directions"
	"github.com/odyssey-travel/odyssey/server/internal/clients/google"
	"github.com/odyssey-travel/odyssey/server/internal/clients/graphhopper"
	"github.com/odyssey-travel/odyssey/server/internal/clients/osrm"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
)

func main() {
	var (
		provider  = flag.String("provider", "osrm", "Routing provider: osrm, google, directions or graphhopper")
		apiKey    = flag.String("api-key", "", "Provider API key (or set ROUTING_API_KEY env var)")
		baseURL   = flag.String("base-url", "", "Override the provider base URL")
		originStr = flag.String("origin", "23.025000,72.571000", "Origin coordinates (lat,lon)")
		destStr   = flag.String("dest", "23.072700,72.517500", "Destination coordinates (lat,lon)")
		timeout   = flag.Duration("timeout", 10*time.Second, "Route request timeout")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Routing Provider Test Tool\n\n")
		fmt.Printf("Requests a driving route and prints the turn-by-turn instructions.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -provider=osrm\n", os.Args[0])
		fmt.Printf("  %s -provider=google -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  ROUTING_API_KEY=your_key %s -provider=graphhopper\n", os.Args[0])
		return
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("ROUTING_API_KEY")
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	destination, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	client, err := newProvider(*provider, key, *baseURL)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Routing Provider Test\n")
	fmt.Printf("=====================\n")
	fmt.Printf("Provider: %s\n", *provider)
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f, %.6f\n", destination.Latitude, destination.Longitude)
	fmt.Printf("\n")

	router := routing.NewRouter(client, *timeout, nil)
	start := time.Now()
	result := router.Route(context.Background(), origin, destination)
	if result.Err != nil {
		log.Fatalf("Route request failed: %v", result.Err)
	}
	route := result.Route

	fmt.Printf("✅ Route found in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Distance: %s\n", routing.FormatDistance(route.TotalDistanceMeters))
	fmt.Printf("Duration: %s\n", routing.FormatDuration(route.TotalDurationSeconds))
	fmt.Printf("Coordinates: %d\n", len(route.Coordinates))
	encoded := geo.EncodePolyline(route.Coordinates)
	fmt.Printf("Polyline: %s...\n", encoded[:min(len(encoded), 50)])

	fmt.Printf("\nInstructions (%d):\n", len(route.Instructions))
	for i, in := range route.Instructions {
		fmt.Printf("  %2d. [%4d] %s (%s, %s)\n", i+1, in.PolylineIndex, in.Text,
			routing.FormatDistance(in.DistanceMeters), routing.FormatDuration(in.DurationSeconds))
	}
}

func newProvider(name, key, baseURL string) (routing.Provider, error) {
	switch name {
	case "osrm":
		return osrm.NewClient(baseURL, "driving"), nil
	case "google":
		if key == "" {
			return nil, fmt.Errorf("google provider requires an API key")
		}
		return google.NewClient(key), nil
	case "directions":
		if key == "" {
			return nil, fmt.Errorf("directions provider requires an API key")
		}
		return directions.NewClient(key, baseURL)
	case "graphhopper":
		if key == "" {
			return nil, fmt.Errorf("graphhopper provider requires an API key")
		}
		return graphhopper.NewClient(key, baseURL, "car"), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
