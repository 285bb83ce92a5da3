package position

import (
	"context"
	"sync"
	"time"
)

// Feed is a Source driven by fixes pushed from a remote client.
// Each watch has its own fix timeout: when no fix arrives within Options.Timeout
// the watch receives a Timeout error and keeps waiting.
type Feed struct {
	now func() time.Time

	// dispatch serializes delivery so watchers see fixes in push order
	dispatch sync.Mutex

	mu      sync.Mutex
	nextID  WatchID
	watches map[WatchID]*feedWatch
	waiters map[chan result]struct{}
	last    *Fix
	closed  bool
}

type feedWatch struct {
	opts  Options
	onFix func(Fix)
	onErr func(error)
	timer *time.Timer
}

type result struct {
	fix Fix
	err error
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{
		now:     time.Now,
		watches: make(map[WatchID]*feedWatch),
		waiters: make(map[chan result]struct{}),
	}
}

// Push delivers a fix to every watch and pending CurrentPosition call
func (f *Feed) Push(fix Fix) error {
	if !fix.Point.Valid() {
		return NewError(PositionUnavailable, "invalid coordinates")
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}

	f.dispatch.Lock()
	defer f.dispatch.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.last = &fix
	f.wakeLocked(result{fix: fix})
	targets := f.snapshotLocked(true)
	f.mu.Unlock()

	for _, w := range targets {
		w.onFix(fix)
	}
	return nil
}

// Seed records fix as the last known position without delivering it to watches.
// An older fix never replaces a newer one.
func (f *Feed) Seed(fix Fix) {
	if !fix.Point.Valid() || fix.Timestamp.IsZero() {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.last != nil && !fix.Timestamp.After(f.last.Timestamp)) {
		return
	}
	f.last = &fix
}

// Fail delivers a location error to every watch and pending CurrentPosition call
func (f *Feed) Fail(err *Error) {
	f.dispatch.Lock()
	defer f.dispatch.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wakeLocked(result{err: err})
	targets := f.snapshotLocked(false)
	f.mu.Unlock()

	for _, w := range targets {
		w.onErr(err)
	}
}

// CurrentPosition returns the cached fix when it is younger than opts.MaximumAge,
// otherwise waits for the next push until opts.Timeout or ctx expires.
func (f *Feed) CurrentPosition(ctx context.Context, opts Options) (Fix, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return Fix{}, ErrClosed
	}
	if f.last != nil && opts.MaximumAge > 0 && f.now().Sub(f.last.Timestamp) <= opts.MaximumAge {
		fix := *f.last
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan result, 1)
	f.waiters[ch] = struct{}{}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.waiters, ch)
		f.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		return r.fix, r.err
	case <-timeout:
		return Fix{}, NewError(Timeout, "no position within "+opts.Timeout.String())
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	}
}

// Watch registers callbacks for pushed fixes and errors
func (f *Feed) Watch(opts Options, onFix func(Fix), onErr func(error)) (WatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	f.nextID++
	id := f.nextID
	w := &feedWatch{opts: opts, onFix: onFix, onErr: onErr}
	if opts.Timeout > 0 {
		w.timer = time.AfterFunc(opts.Timeout, func() { f.expire(id) })
	}
	f.watches[id] = w
	return id, nil
}

// ClearWatch stops delivery to a watch. Unknown ids are ignored.
func (f *Feed) ClearWatch(id WatchID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if w, ok := f.watches[id]; ok {
		if w.timer != nil {
			w.timer.Stop()
		}
		delete(f.watches, id)
	}
}

// ActiveWatches reports how many watches are registered
func (f *Feed) ActiveWatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

// Last returns the most recently pushed fix
func (f *Feed) Last() (Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Fix{}, false
	}
	return *f.last, true
}

// Close clears every watch and fails pending requests. Further pushes return ErrClosed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, w := range f.watches {
		if w.timer != nil {
			w.timer.Stop()
		}
		delete(f.watches, id)
	}
	f.wakeLocked(result{err: ErrClosed})
}

func (f *Feed) expire(id WatchID) {
	f.dispatch.Lock()
	defer f.dispatch.Unlock()

	f.mu.Lock()
	w, ok := f.watches[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	w.timer.Reset(w.opts.Timeout)
	f.mu.Unlock()

	w.onErr(NewError(Timeout, "no position within "+w.opts.Timeout.String()))
}

// snapshotLocked copies the watch list, restarting fix timers when a fix arrived
func (f *Feed) snapshotLocked(fixArrived bool) []*feedWatch {
	targets := make([]*feedWatch, 0, len(f.watches))
	for _, w := range f.watches {
		if fixArrived && w.timer != nil {
			w.timer.Reset(w.opts.Timeout)
		}
		targets = append(targets, w)
	}
	return targets
}

func (f *Feed) wakeLocked(r result) {
	for ch := range f.waiters {
		select {
		case ch <- r:
		default:
		}
		delete(f.waiters, ch)
	}
}
