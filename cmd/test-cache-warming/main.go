package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/cache"
	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/clients/osrm"
	"github.com/odyssey-travel/odyssey/server/internal/itinerary"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

func main() {
	var (
		osrmURL = flag.String("osrm", osrm.DefaultBaseURL, "OSRM base URL")
		stops   = flag.String("stops", "1,5,9", "Comma separated catalog place ids forming the itinerary")
		ttl     = flag.Duration("ttl", 5*time.Minute, "Route cache TTL")
	)
	flag.Parse()

	fmt.Printf("Itinerary Route Cache Warming Test\n")
	fmt.Printf("==================================\n")

	logger := zap.NewNop()
	routeCache := cache.NewCache(logger)
	provider := routing.NewCachedProvider(osrm.NewClient(*osrmURL, "driving"), routeCache, *ttl, "osrm", logger)
	router := routing.NewRouter(provider, 15*time.Second, logger)

	places, err := catalog.Load(catalog.Delays{}, logger)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	placesService := services.NewPlacesService(places, itinerary.NewStore(itinerary.NewMemoryKV(), "", logger), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, id := range strings.Split(*stops, ",") {
		place, err := placesService.Details(ctx, strings.TrimSpace(id))
		if err != nil {
			log.Fatalf("Unknown place %q: %v", id, err)
		}
		if _, err := placesService.AddToItinerary(ctx, place.ID); err != nil {
			log.Fatalf("Failed to add %s to itinerary: %v", place.Name, err)
		}
		fmt.Printf("   + %s (%s)\n", place.Name, place.City)
	}

	warmer := services.NewCacheWarmer(router, placesService, logger)

	for pass := 1; pass <= 2; pass++ {
		fmt.Printf("\n%d. Warming pass...\n", pass)
		start := time.Now()
		result, err := warmer.WarmItinerary(ctx)
		if err != nil {
			fmt.Printf("   ❌ %d of %d legs failed: %v\n", result.Failed, result.Legs, err)
		} else {
			fmt.Printf("   ✅ %d legs warmed in %v\n", result.Warmed, time.Since(start).Round(time.Millisecond))
		}

		stats := routeCache.Stats()
		fmt.Printf("   Cache entries: %d (fresh %d, stale %d)\n", stats.TotalEntries, stats.FreshEntries, stats.StaleEntries)
		fmt.Printf("   Cache hits/misses: %d/%d\n", stats.Hits, stats.Misses)
	}

	fmt.Printf("\n🎉 Second pass should be served entirely from the route cache\n")
}
