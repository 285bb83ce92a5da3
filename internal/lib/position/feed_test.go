package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

func TestFeed_CurrentPositionUsesFreshCache(t *testing.T) {
	feed := NewFeed()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	feed.now = func() time.Time { return now }

	require.NoError(t, feed.Push(Fix{Point: kalupur}))

	now = now.Add(3 * time.Second)
	fix, err := feed.CurrentPosition(context.Background(), Options{MaximumAge: 5 * time.Second, Timeout: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, kalupur, fix.Point)

	// Stale cache waits for a new fix
	now = now.Add(10 * time.Second)
	_, err = feed.CurrentPosition(context.Background(), Options{MaximumAge: 5 * time.Second, Timeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFeed_CurrentPositionWaitsForPush(t *testing.T) {
	feed := NewFeed()

	done := make(chan Fix, 1)
	go func() {
		fix, err := feed.CurrentPosition(context.Background(), OneShotOptions())
		if err == nil {
			done <- fix
		}
	}()

	assert.Eventually(t, func() bool {
		_ = feed.Push(Fix{Point: ashram})
		select {
		case fix := <-done:
			return fix.Point == ashram
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestFeed_CurrentPositionReceivesFailure(t *testing.T) {
	feed := NewFeed()

	errs := make(chan error, 1)
	go func() {
		_, err := feed.CurrentPosition(context.Background(), OneShotOptions())
		errs <- err
	}()

	assert.Eventually(t, func() bool {
		feed.Fail(NewError(PermissionDenied, ""))
		select {
		case err := <-errs:
			return assert.ErrorIs(t, err, ErrPermissionDenied)
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestFeed_WatchTimeoutKeepsWatching(t *testing.T) {
	feed := NewFeed()
	rec := &recorder{}

	_, err := feed.Watch(Options{Timeout: 15 * time.Millisecond}, rec.onFix, rec.onErr)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, errs := rec.counts()
		return errs >= 2
	}, time.Second, 5*time.Millisecond, "timeout fires repeatedly while no fix arrives")

	rec.mu.Lock()
	assert.ErrorIs(t, rec.errs[0], ErrTimeout)
	rec.mu.Unlock()

	require.NoError(t, feed.Push(Fix{Point: kalupur}))
	fixes, _ := rec.counts()
	assert.Equal(t, 1, fixes)
}

func TestFeed_RejectsInvalidFix(t *testing.T) {
	feed := NewFeed()
	err := feed.Push(Fix{Point: geo.Point{Latitude: 123, Longitude: 0}})
	assert.ErrorIs(t, err, ErrPositionUnavailable)

	_, ok := feed.Last()
	assert.False(t, ok)
}

func TestFeed_Close(t *testing.T) {
	feed := NewFeed()
	_, err := feed.Watch(Options{}, func(Fix) {}, func(error) {})
	require.NoError(t, err)

	feed.Close()
	feed.Close()

	assert.Equal(t, 0, feed.ActiveWatches())
	assert.ErrorIs(t, feed.Push(Fix{Point: kalupur}), ErrClosed)
	_, err = feed.Watch(Options{}, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = feed.CurrentPosition(context.Background(), OneShotOptions())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFeed_ClearWatchUnknownID(t *testing.T) {
	feed := NewFeed()
	assert.NotPanics(t, func() { feed.ClearWatch(42) })
}

func TestReplay_PlaysTrackInOrder(t *testing.T) {
	track := []geo.Point{kalupur, ashram, {Latitude: 23.0079, Longitude: 72.6028}}
	replay := NewReplay(track, 5*time.Millisecond)
	rec := &recorder{}

	id, err := replay.Watch(WatchOptions(), rec.onFix, rec.onErr)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		fixes, _ := rec.counts()
		return fixes == 3
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	for i, fix := range rec.fixes {
		assert.Equal(t, track[i], fix.Point)
	}
	rec.mu.Unlock()

	replay.ClearWatch(id)

	fix, err := replay.CurrentPosition(context.Background(), OneShotOptions())
	require.NoError(t, err)
	assert.Equal(t, track[2], fix.Point)
}

func TestReplay_ClearWatchStopsPlayback(t *testing.T) {
	replay := NewReplay(InterpolatedTrack([]geo.Point{kalupur, ashram}, 100), time.Millisecond)
	rec := &recorder{}

	id, err := replay.Watch(WatchOptions(), rec.onFix, rec.onErr)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		fixes, _ := rec.counts()
		return fixes > 0
	}, time.Second, time.Millisecond)

	replay.ClearWatch(id)
	stopped, _ := rec.counts()
	time.Sleep(20 * time.Millisecond)
	after, _ := rec.counts()
	assert.LessOrEqual(t, after, stopped+1)
	assert.Less(t, after, 101)
}

func TestInterpolatedTrack(t *testing.T) {
	track := InterpolatedTrack([]geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 1}}, 4)
	require.Len(t, track, 5)
	assert.InDelta(t, 0.25, track[1].Longitude, 1e-12)
	assert.Equal(t, geo.Point{Latitude: 0, Longitude: 1}, track[4])
}

func TestFeed_SeedAnswersCurrentPosition(t *testing.T) {
	feed := NewFeed()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	feed.now = func() time.Time { return now }
	rec := &recorder{}
	_, err := feed.Watch(Options{}, rec.onFix, rec.onErr)
	require.NoError(t, err)

	feed.Seed(Fix{Point: kalupur, Timestamp: now.Add(-2 * time.Second)})
	// older seeds are ignored
	feed.Seed(Fix{Point: ashram, Timestamp: now.Add(-4 * time.Second)})

	fix, err := feed.CurrentPosition(context.Background(), OneShotOptions())
	require.NoError(t, err)
	assert.Equal(t, kalupur, fix.Point)

	fixes, _ := rec.counts()
	assert.Equal(t, 0, fixes, "seeding does not reach watches")
}
