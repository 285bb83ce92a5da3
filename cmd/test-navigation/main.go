package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/clients/osrm"
	"github.com/odyssey-travel/odyssey/server/internal/itinerary"
	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

// Simulates a drive along an OSRM route, feeding the fixes to a live
// navigation session and printing every guidance update.
func main() {
	var (
		osrmURL   = flag.String("osrm", osrm.DefaultBaseURL, "OSRM base URL")
		originStr = flag.String("origin", "23.025000,72.571000", "Origin coordinates (lat,lon)")
		placeID   = flag.String("place", "5", "Catalog place to navigate to")
		steps     = flag.Int("steps", 3, "Interpolated fixes per route segment")
		interval  = flag.Duration("interval", 200*time.Millisecond, "Delay between fixes")
		verbose   = flag.Bool("verbose", false, "Log engine activity")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("Failed to build logger: %v", err)
		}
	}

	var lat, lng float64
	if _, err := fmt.Sscanf(*originStr, "%f,%f", &lat, &lng); err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	origin, err := geo.NewPoint(lat, lng)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	router := routing.NewRouter(osrm.NewClient(*osrmURL, "driving"), 15*time.Second, logger)
	places, err := catalog.Load(catalog.Delays{}, logger)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	placesService := services.NewPlacesService(places, itinerary.NewStore(itinerary.NewMemoryKV(), "", logger), logger)

	place, err := placesService.Resolve(ctx, *placeID)
	if err != nil {
		log.Fatalf("Unknown place %q: %v", *placeID, err)
	}

	fmt.Printf("Navigation Drive Simulation\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %s (%.6f, %.6f)\n", place.Name, place.Location.Latitude, place.Location.Longitude)
	fmt.Printf("\n")

	// The drive track follows the same route the session will request
	planned := router.Route(ctx, origin, place.Location)
	if planned.Err != nil {
		log.Fatalf("Route request failed: %v", planned.Err)
	}
	track := position.InterpolatedTrack(planned.Route.Coordinates, *steps)
	fmt.Printf("Route: %s, %s, %d instructions\n",
		routing.FormatDistance(planned.Route.TotalDistanceMeters),
		routing.FormatDuration(planned.Route.TotalDurationSeconds),
		len(planned.Route.Instructions))
	fmt.Printf("Track: %d fixes every %s\n\n", len(track), *interval)

	cfg := navigation.DefaultConfig()
	cfg.MapReadyDelay = 0
	navigationService, err := services.NewNavigationService(services.NavigationOptions{
		Config:  cfg,
		Router:  router,
		Places:  placesService,
		Viewers: services.NewViewers(800, 500, logger),
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create navigation service: %v", err)
	}
	defer navigationService.CloseAll()

	session, err := navigationService.Create(ctx, services.CreateSessionRequest{
		PlaceID: *placeID,
		Origin:  &origin,
	})
	if err != nil {
		log.Fatalf("Failed to start navigation: %v", err)
	}
	events, unsubscribe := session.Subscribe(services.DefaultSubscriberBuffer)
	defer unsubscribe()

	replay := position.NewReplay(track, *interval)
	done := make(chan struct{})
	var pushed atomic.Int32
	watch, err := replay.Watch(position.WatchOptions(), func(fix position.Fix) {
		if err := session.PushFix(fix); err != nil {
			fmt.Printf("  ⚠️  fix rejected: %v\n", err)
		}
		if int(pushed.Add(1)) == len(track) {
			close(done)
		}
	}, nil)
	if err != nil {
		log.Fatalf("Failed to start replay: %v", err)
	}
	defer replay.ClearWatch(watch)

	lastStep := -1
	for {
		select {
		case ev := <-events:
			printEvent(ev, &lastStep)
		case <-done:
			// drain the last updates before the summary
			time.Sleep(*interval)
			summarize(session.Snapshot())
			return
		case <-ctx.Done():
			fmt.Printf("\nInterrupted after %d fixes\n", pushed.Load())
			return
		}
	}
}

func printEvent(ev navigation.Event, lastStep *int) {
	switch ev.Kind {
	case navigation.EventState:
		fmt.Printf("[state] %s\n", ev.State)
	case navigation.EventRoute:
		if ev.Route != nil {
			fmt.Printf("[route] %s, %s\n", ev.Route.TotalDistance, ev.Route.TotalDuration)
		}
	case navigation.EventGuidance:
		g := ev.Guidance
		if g == nil || g.StepIndex == *lastStep {
			return
		}
		*lastStep = g.StepIndex
		text := ""
		if g.Instruction != nil {
			text = g.Instruction.Text
		}
		fmt.Printf("[step %d/%d] %s (%s %s, heading %d° %s)\n",
			g.StepIndex+1, g.StepCount, text, g.InstructionDistance, g.InstructionDuration,
			g.HeadingDegrees, g.Compass)
		if g.OffRoute {
			fmt.Printf("  ⚠️  off route by %.0fm\n", g.DistanceFromRoute)
		}
	case navigation.EventNotification:
		if n := ev.Notification; n != nil {
			fmt.Printf("[%s] %s %s\n", n.Level, n.Title, n.Detail)
		}
	}
}

func summarize(snap services.SessionSnapshot) {
	fmt.Printf("\nSummary\n")
	fmt.Printf("=======\n")
	fmt.Printf("State: %s\n", snap.Navigation.State)
	fmt.Printf("Position updates: %d\n", snap.Navigation.UpdateCounter)
	fmt.Printf("Final step: %d\n", snap.Navigation.StepIndex+1)
	if snap.Guidance != nil {
		fmt.Printf("Remaining: %s\n", snap.Guidance.RemainingDistance)
	}
}
