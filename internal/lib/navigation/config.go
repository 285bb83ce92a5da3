package navigation

import (
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
)

// Config holds the tunables of one navigation session.
// Each engine keeps its own copy.
type Config struct {
	// MapReadyDelay is waited before the surface is first touched
	MapReadyDelay time.Duration `yaml:"map_ready_delay"`
	// InitAttempts is the total number of surface build attempts
	InitAttempts int           `yaml:"init_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// RerouteEvery issues a new route request on every Nth position update
	RerouteEvery int `yaml:"reroute_every"`

	RedrawDelay    time.Duration `yaml:"redraw_delay"`
	RedrawInterval time.Duration `yaml:"redraw_interval"`
	RedrawWindow   time.Duration `yaml:"redraw_window"`

	FitPadding     int     `yaml:"fit_padding"`
	FitMaxZoom     float64 `yaml:"fit_max_zoom"`
	RecenterZoom   float64 `yaml:"recenter_zoom"`
	AccuracyRadius float64 `yaml:"accuracy_radius"`

	OffRouteThresholdMeters float64 `yaml:"off_route_threshold_meters"`

	Tiles       mapview.TileSet   `yaml:"tiles"`
	Icons       mapview.IconSet   `yaml:"icons"`
	InitialMode mapview.TileMode  `yaml:"initial_mode"`
	RouteStyle  mapview.LineStyle `yaml:"route_style"`
}

// DefaultConfig returns the stock navigation settings
func DefaultConfig() Config {
	return Config{
		MapReadyDelay:           500 * time.Millisecond,
		InitAttempts:            3,
		RetryBackoff:            500 * time.Millisecond,
		RerouteEvery:            10,
		RedrawDelay:             100 * time.Millisecond,
		RedrawInterval:          500 * time.Millisecond,
		RedrawWindow:            3 * time.Second,
		FitPadding:              50,
		FitMaxZoom:              15,
		RecenterZoom:            15,
		AccuracyRadius:          30,
		OffRouteThresholdMeters: 50,
		Tiles:                   mapview.DefaultTileSet(),
		Icons:                   mapview.DefaultIconSet(),
		InitialMode:             mapview.Satellite,
		RouteStyle:              mapview.DefaultRouteStyle,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitAttempts <= 0 {
		c.InitAttempts = d.InitAttempts
	}
	if c.RerouteEvery <= 0 {
		c.RerouteEvery = d.RerouteEvery
	}
	if c.InitialMode == "" {
		c.InitialMode = d.InitialMode
	}
	if c.Tiles == (mapview.TileSet{}) {
		c.Tiles = d.Tiles
	}
	if c.Icons == (mapview.IconSet{}) {
		c.Icons = d.Icons
	}
	if c.RouteStyle == (mapview.LineStyle{}) {
		c.RouteStyle = d.RouteStyle
	}
	return c
}
