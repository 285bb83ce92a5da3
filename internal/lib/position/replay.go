package position

import (
	"context"
	"sync"
	"time"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

// Replay is a Source that plays back a fixed track at a constant interval.
// It is used for drive simulations and offline testing.
type Replay struct {
	track    []geo.Point
	interval time.Duration

	mu      sync.Mutex
	nextID  WatchID
	cursor  int
	watches map[WatchID]chan struct{}
}

// NewReplay creates a replay over track emitting one fix per interval
func NewReplay(track []geo.Point, interval time.Duration) *Replay {
	return &Replay{
		track:    append([]geo.Point(nil), track...),
		interval: interval,
		watches:  make(map[WatchID]chan struct{}),
	}
}

// InterpolatedTrack densifies a route into a drive track with steps points per segment
func InterpolatedTrack(points []geo.Point, steps int) []geo.Point {
	if len(points) < 2 || steps < 1 {
		return append([]geo.Point(nil), points...)
	}
	track := make([]geo.Point, 0, (len(points)-1)*steps+1)
	for i := 0; i < len(points)-1; i++ {
		for s := 0; s < steps; s++ {
			track = append(track, geo.Interpolate(points[i], points[i+1], float64(s)/float64(steps)))
		}
	}
	return append(track, points[len(points)-1])
}

// CurrentPosition returns the track point at the playback cursor
func (r *Replay) CurrentPosition(ctx context.Context, _ Options) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.track) == 0 {
		return Fix{}, NewError(PositionUnavailable, "empty track")
	}
	idx := r.cursor
	if idx >= len(r.track) {
		idx = len(r.track) - 1
	}
	return Fix{Point: r.track[idx], Timestamp: time.Now()}, nil
}

// Watch plays the remaining track from the cursor, one fix per interval
func (r *Replay) Watch(_ Options, onFix func(Fix), _ func(error)) (WatchID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	stop := make(chan struct{})
	r.watches[id] = stop

	go r.play(id, stop, onFix)
	return id, nil
}

// ClearWatch stops playback for id
func (r *Replay) ClearWatch(id WatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stop, ok := r.watches[id]; ok {
		close(stop)
		delete(r.watches, id)
	}
}

func (r *Replay) play(id WatchID, stop <-chan struct{}, onFix func(Fix)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		if _, ok := r.watches[id]; !ok || r.cursor >= len(r.track) {
			r.mu.Unlock()
			return
		}
		p := r.track[r.cursor]
		r.cursor++
		r.mu.Unlock()

		onFix(Fix{Point: p, Timestamp: time.Now()})
	}
}
