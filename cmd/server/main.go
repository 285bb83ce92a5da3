package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/odyssey-travel/odyssey/server/internal/cache"
	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/clients/directions"
	"github.com/odyssey-travel/odyssey/server/internal/clients/google"
	"github.com/odyssey-travel/odyssey/server/internal/clients/graphhopper"
	"github.com/odyssey-travel/odyssey/server/internal/clients/osrm"
	"github.com/odyssey-travel/odyssey/server/internal/config"
	"github.com/odyssey-travel/odyssey/server/internal/itinerary"
	"github.com/odyssey-travel/odyssey/server/internal/lib/routing"
	"github.com/odyssey-travel/odyssey/server/internal/metrics"
	"github.com/odyssey-travel/odyssey/server/internal/server"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

func main() {
	configPath := flag.String("config", "odyssey.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewCollector(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	provider, err := newProvider(cfg.Routing)
	if err != nil {
		return err
	}
	if cfg.Cache.Enabled {
		routeCache := cache.NewCache(logger)
		if cfg.Cache.CleanupInterval > 0 {
			routeCache.StartPeriodicCleanup(ctx, cfg.Cache.CleanupInterval)
		}
		provider = routing.NewCachedProvider(provider, routeCache, cfg.Cache.RouteTTL, cfg.Routing.Provider, logger)
	}
	router := routing.NewRouter(provider, cfg.Routing.Timeout, logger)

	places, err := catalog.Load(cfg.Catalog, logger)
	if err != nil {
		return fmt.Errorf("failed to load place catalog: %w", err)
	}

	kv, redisClient, err := newItineraryKV(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	placesService := services.NewPlacesService(places, itinerary.NewStore(kv, cfg.Itinerary.Key, logger), logger)
	viewers := services.NewViewers(cfg.Server.SurfaceWidth, cfg.Server.SurfaceHeight, logger)

	navigationService, err := services.NewNavigationService(services.NavigationOptions{
		Config:  cfg.Navigation,
		Router:  router,
		Places:  placesService,
		Viewers: viewers,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	exploreService := services.NewExploreService(placesService, viewers, cfg.PlaceMapOptions(), cfg.Explore.FrameInterval, m, logger)
	warmer := services.NewCacheWarmer(router, placesService, logger)

	reaper := services.NewSessionReaper(cfg.Reaper.Interval, cfg.Reaper.IdleTimeout, m, logger,
		navigationService, exploreService, viewers)
	if err := reaper.Start(ctx); err != nil {
		logger.Warn("Failed to start session reaper", zap.Error(err))
	}

	ready := func(ctx context.Context) error {
		if redisClient == nil {
			return nil
		}
		return redisClient.Ping(ctx).Err()
	}

	grpcServer, healthServer, err := startHealthServer(cfg.Server.GRPCPort, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Navigation:  navigationService,
		Explore:     exploreService,
		Places:      placesService,
		Warmer:      warmer,
		Metrics:     m,
		Logger:      logger,
		CorsOrigins: cfg.Server.CorsOrigins,
		Ready:       ready,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(addr)
	}()

	logger.Info("Odyssey navigation server starting",
		zap.String("addr", addr),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
		zap.String("routing_provider", cfg.Routing.Provider),
		zap.String("itinerary_backend", cfg.Itinerary.Backend))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	reaper.Stop()
	err = multierr.Combine(err, navigationService.CloseAll(), exploreService.CloseAll())
	grpcServer.GracefulStop()

	logger.Info("Server stopped")
	return err
}

// newProvider builds the configured road-routing provider
func newProvider(cfg config.RoutingConfig) (routing.Provider, error) {
	switch cfg.Provider {
	case "osrm":
		return osrm.NewClient(cfg.OSRM.BaseURL, cfg.OSRM.Profile), nil
	case "google":
		return google.NewClient(cfg.Google.APIKey), nil
	case "directions":
		client, err := directions.NewClient(cfg.Directions.APIKey, cfg.Directions.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create directions client: %w", err)
		}
		return client, nil
	case "graphhopper":
		return graphhopper.NewClient(cfg.GraphHopper.APIKey, cfg.GraphHopper.BaseURL, cfg.GraphHopper.Profile), nil
	}
	return nil, fmt.Errorf("unknown routing provider %q", cfg.Provider)
}

// newItineraryKV opens the itinerary backend. The redis client is returned so
// readiness checks can ping it.
func newItineraryKV(ctx context.Context, cfg *config.Config) (itinerary.KV, *redis.Client, error) {
	switch cfg.Itinerary.Backend {
	case "file":
		kv, err := itinerary.NewFileKV(cfg.Itinerary.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open itinerary directory: %w", err)
		}
		return kv, nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return itinerary.NewRedisKV(client, cfg.Redis.Prefix), client, nil
	default:
		return itinerary.NewMemoryKV(), nil, nil
	}
}

// startHealthServer serves the standard gRPC health protocol for orchestrators
func startHealthServer(port int, logger *zap.Logger) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on grpc port %d: %w", port, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
	return grpcServer, healthServer, nil
}
