package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
)

// EnvPrefix namespaces environment overrides, e.g. ODYSSEY_SERVER__PORT=9090
const EnvPrefix = "ODYSSEY_"

// Config represents the complete server configuration
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Routing    RoutingConfig     `yaml:"routing"`
	Navigation navigation.Config `yaml:"navigation"`
	Explore    ExploreConfig     `yaml:"explore"`
	Catalog    catalog.Delays    `yaml:"catalog"`
	Cache      CacheConfig       `yaml:"cache"`
	Itinerary  ItineraryConfig   `yaml:"itinerary"`
	Redis      RedisConfig       `yaml:"redis"`
	Reaper     ReaperConfig      `yaml:"reaper"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"`
	CorsOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SurfaceWidth and SurfaceHeight size each viewer's map canvas in pixels
	SurfaceWidth  int `yaml:"surface_width"`
	SurfaceHeight int `yaml:"surface_height"`
}

// LoggingConfig selects the zap preset and level
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// RoutingConfig selects and configures the road-routing provider
type RoutingConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`

	OSRM        OSRMConfig        `yaml:"osrm"`
	Google      GoogleConfig      `yaml:"google"`
	Directions  DirectionsConfig  `yaml:"directions"`
	GraphHopper GraphHopperConfig `yaml:"graphhopper"`
}

type OSRMConfig struct {
	BaseURL string `yaml:"base_url"`
	Profile string `yaml:"profile"`
}

// GoogleConfig holds Google Routes API settings
type GoogleConfig struct {
	APIKey string `yaml:"api_key"`
}

type DirectionsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type GraphHopperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Profile string `yaml:"profile"`
}

// ExploreConfig holds defaults of the place map views
type ExploreConfig struct {
	DefaultLatitude  float64       `yaml:"default_latitude"`
	DefaultLongitude float64       `yaml:"default_longitude"`
	DefaultZoom      float64       `yaml:"default_zoom"`
	FitPadding       int           `yaml:"fit_padding"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
}

// CacheConfig controls the route response cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RouteTTL        time.Duration `yaml:"route_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ItineraryConfig picks the persistence backend: memory, file or redis
type ItineraryConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Key     string `yaml:"key"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ReaperConfig controls idle session cleanup
type ReaperConfig struct {
	Interval    time.Duration `yaml:"interval"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			GRPCPort:        9090,
			CorsOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
			SurfaceWidth:    800,
			SurfaceHeight:   500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Routing: RoutingConfig{
			Provider: "osrm",
			Timeout:  10 * time.Second,
			OSRM: OSRMConfig{
				Profile: "driving",
			},
			GraphHopper: GraphHopperConfig{
				Profile: "car",
			},
		},
		Navigation: navigation.DefaultConfig(),
		Explore: ExploreConfig{
			DefaultLatitude:  23.0225,
			DefaultLongitude: 72.5714,
			DefaultZoom:      12,
			FitPadding:       50,
			FrameInterval:    mapview.DefaultFrameInterval,
		},
		Catalog: catalog.DefaultDelays(),
		Cache: CacheConfig{
			Enabled:         true,
			RouteTTL:        5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Itinerary: ItineraryConfig{
			Backend: "memory",
			Dir:     "data/itinerary",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Prefix:   "odyssey:",
		},
		Reaper: ReaperConfig{
			Interval:    time.Minute,
			IdleTimeout: 30 * time.Minute,
		},
	}
}

// Load layers defaults, the YAML file at path (optional), ODYSSEY_ environment
// variables and overrides, in that order
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps ODYSSEY_ROUTING__OSRM__BASE_URL to routing.osrm.base_url
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Routing.Provider {
	case "osrm":
	case "google":
		if c.Routing.Google.APIKey == "" {
			return errors.New("routing.google.api_key is required for the google provider")
		}
	case "directions":
		if c.Routing.Directions.APIKey == "" {
			return errors.New("routing.directions.api_key is required for the directions provider")
		}
	case "graphhopper":
		if c.Routing.GraphHopper.APIKey == "" {
			return errors.New("routing.graphhopper.api_key is required for the graphhopper provider")
		}
	default:
		return fmt.Errorf("unknown routing provider %q", c.Routing.Provider)
	}

	switch c.Itinerary.Backend {
	case "memory", "redis":
	case "file":
		if c.Itinerary.Dir == "" {
			return errors.New("itinerary.dir is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown itinerary backend %q", c.Itinerary.Backend)
	}

	if _, err := mapview.ParseTileMode(string(c.Navigation.InitialMode)); err != nil {
		return fmt.Errorf("navigation.initial_mode: %w", err)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// NewLogger builds the process logger from the logging section
func (c LoggingConfig) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if c.Level != "" {
		level, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// PlaceMapOptions derives the explore view options
func (c *Config) PlaceMapOptions() mapview.PlaceMapOptions {
	opts := mapview.DefaultPlaceMapOptions()
	opts.Tiles = c.Navigation.Tiles
	opts.Icons = c.Navigation.Icons
	opts.DefaultCenter.Latitude = c.Explore.DefaultLatitude
	opts.DefaultCenter.Longitude = c.Explore.DefaultLongitude
	opts.DefaultZoom = c.Explore.DefaultZoom
	opts.FitPadding = c.Explore.FitPadding
	return opts
}
