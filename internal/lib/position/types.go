package position

import (
	"context"
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// Fix is a single reported device position sample
type Fix struct {
	Point          geo.Point `json:"point"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Options control a position request
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// OneShotOptions are used for the initial position fetch. A fix no older than
// the watch's maximum age is accepted without waiting.
func OneShotOptions() Options {
	return Options{HighAccuracy: true, MaximumAge: 5 * time.Second, Timeout: 10 * time.Second}
}

// WatchOptions are used for continuous tracking
func WatchOptions() Options {
	return Options{HighAccuracy: true, MaximumAge: 5 * time.Second, Timeout: 10 * time.Second}
}

// WatchID identifies a watch registered with a Source
type WatchID int64

// Source is a device location API
type Source interface {
	// CurrentPosition fetches a single fix
	CurrentPosition(ctx context.Context, opts Options) (Fix, error)

	// Watch delivers fixes and errors until ClearWatch is called
	Watch(opts Options, onFix func(Fix), onErr func(error)) (WatchID, error)

	// ClearWatch releases a watch. Unknown ids are ignored.
	ClearWatch(id WatchID)
}
