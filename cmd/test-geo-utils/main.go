package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "point-distance":
		handlePointDistance()
	case "polyline-distance":
		handlePolylineDistance()
	case "decode-polyline":
		handleDecodePolyline()
	case "encode-polyline":
		handleEncodePolyline()
	case "geohash":
		handleGeohash()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance() {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	_ = fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 23.0250 --lng1 72.5710 --lat2 23.0727 --lng2 72.5175")
		fmt.Println("  (Kalupur station to ISKCON temple)")
		os.Exit(1)
	}

	p1, err := geo.NewPoint(*lat1, *lng1)
	if err != nil {
		log.Fatalf("Invalid first point: %v", err)
	}
	p2, err := geo.NewPoint(*lat2, *lng2)
	if err != nil {
		log.Fatalf("Invalid second point: %v", err)
	}

	distance := geo.DistanceMeters(p1, p2)
	bearing := geo.BearingDegrees(p1, p2)

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.2f km)\n", distance, distance/1000)
	fmt.Printf("  Bearing: %.0f° %s\n", bearing, geo.CompassLabel(bearing))
}

func handlePolylineDistance() {
	fs := flag.NewFlagSet("polyline-distance", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	polylineStr := fs.String("polyline", "", "Encoded polyline string")

	_ = fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils polyline-distance --lat 23.05 --lng 72.54 --polyline \"encoded_route\"")
		fmt.Println("  (How far a position is from the active route)")
		os.Exit(1)
	}

	point := geo.Point{Latitude: *lat, Longitude: *lng}
	points, err := geo.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	distance, err := geo.DistanceToPolyline(point, points)
	if err != nil {
		log.Fatalf("Error calculating distance to polyline: %v", err)
	}
	nearest, nearestDistance := geo.NearestIndex(point, points)

	fmt.Printf("Distance from point to polyline:\n")
	fmt.Printf("  Point: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
	fmt.Printf("  Polyline: %d points\n", len(points))
	fmt.Printf("  Distance: %.2f meters\n", distance)
	fmt.Printf("  Nearest vertex: #%d at %.2f meters\n", nearest, nearestDistance)
}

func handleDecodePolyline() {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string to decode")
	verbose := fs.Bool("verbose", false, "Show all decoded points")

	_ = fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"encoded_string\" --verbose")
		os.Exit(1)
	}

	points, err := geo.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Polyline decoded successfully:\n")
	fmt.Printf("  Input: %s\n", *polylineStr)
	fmt.Printf("  Points: %d\n", len(points))

	if len(points) > 0 {
		fmt.Printf("  Start: (%.6f, %.6f)\n", points[0].Latitude, points[0].Longitude)
		if len(points) > 1 {
			fmt.Printf("  End: (%.6f, %.6f)\n", points[len(points)-1].Latitude, points[len(points)-1].Longitude)
		}
		if bounds, err := geo.BoundsOf(points...); err == nil {
			fmt.Printf("  Bounds: SW (%.6f, %.6f) NE (%.6f, %.6f)\n",
				bounds.SouthWest.Latitude, bounds.SouthWest.Longitude,
				bounds.NorthEast.Latitude, bounds.NorthEast.Longitude)
		}
	}

	if *verbose {
		fmt.Printf("  All points:\n")
		for i, point := range points {
			fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
		}
	}
}

func handleEncodePolyline() {
	fs := flag.NewFlagSet("encode-polyline", flag.ExitOnError)
	coords := fs.String("points", "", "Coordinate pairs as \"lat,lng;lat,lng\"")

	_ = fs.Parse(os.Args[2:])

	points, err := parseCoordinatePairs(*coords)
	if err != nil {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils encode-polyline --points \"23.025,72.571;23.0727,72.5175\"")
		log.Fatalf("Error parsing points: %v", err)
	}

	fmt.Printf("Encoded polyline (%d points):\n", len(points))
	fmt.Printf("  %s\n", geo.EncodePolyline(points))
}

func handleGeohash() {
	fs := flag.NewFlagSet("geohash", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	precision := fs.Uint("precision", 6, "Geohash length in characters")

	_ = fs.Parse(os.Args[2:])

	if *lat == 0 && *lng == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils geohash --lat 23.0225 --lng 72.5714 --precision 5")
		os.Exit(1)
	}

	point, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		log.Fatalf("Invalid point: %v", err)
	}

	hash := geo.Geohash(point, *precision)
	fmt.Printf("Geohash of (%.6f, %.6f):\n", point.Latitude, point.Longitude)
	fmt.Printf("  Cell: %s\n", hash)
	fmt.Printf("  Neighbors: %s\n", strings.Join(geo.GeohashNeighbors(hash), " "))
}

func printUsage() {
	fmt.Printf(`test-geo-utils - Geographic utility testing tool

USAGE:
    test-geo-utils <command> [options]

COMMANDS:
    point-distance      Calculate great-circle distance and bearing between two points
    polyline-distance   Calculate minimum distance from point to polyline
    decode-polyline     Decode Google polyline string to coordinates
    encode-polyline     Encode coordinate pairs as a Google polyline
    geohash             Show the geohash cell of a point and its neighbors
    help                Show this help message

EXAMPLES:
    # Kalupur station to ISKCON temple
    test-geo-utils point-distance --lat1 23.0250 --lng1 72.5710 --lat2 23.0727 --lng2 72.5175

    # Distance from a position to a route
    test-geo-utils polyline-distance --lat 23.05 --lng 72.54 --polyline "encoded_route"

    # Decode polyline to see coordinates
    test-geo-utils decode-polyline --polyline "encoded_string" --verbose

    # Catalog lookup cell for a point
    test-geo-utils geohash --lat 23.0225 --lng 72.5714 --precision 5
`)
}

// parseCoordinatePairs parses "lat,lng;lat,lng" into points
func parseCoordinatePairs(coordStr string) ([]geo.Point, error) {
	if coordStr == "" {
		return nil, fmt.Errorf("empty coordinate string")
	}

	pairs := strings.Split(coordStr, ";")
	points := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		coords := strings.Split(strings.TrimSpace(pair), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %s", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", coords[0])
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", coords[1])
		}

		point, err := geo.NewPoint(lat, lng)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	return points, nil
}
