package position

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// State of a Tracker
type State int

const (
	Unsubscribed State = iota
	Acquiring
	Tracking
	Failed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Acquiring:
		return "acquiring"
	case Tracking:
		return "tracking"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

const errorBuffer = 16

// Subscription is the handle returned by StartWatch
type Subscription struct {
	id     WatchID
	active bool
}

// Tracker wraps a Source with the accuracy, timeout and error policy used for navigation.
// It holds the latest known fix and publishes errors on a channel.
type Tracker struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	latest *Fix
	sub    *Subscription
	errs   chan error
}

// NewTracker creates a tracker over source
func NewTracker(source Source, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		source: source,
		logger: logger,
		errs:   make(chan error, errorBuffer),
	}
}

// AcquireOnce fetches a single high-accuracy fix with a 10s timeout. A fix up to 5s old is returned as is.
func (t *Tracker) AcquireOnce(ctx context.Context) (Fix, error) {
	opts := OneShotOptions()

	t.mu.Lock()
	if t.state == Unsubscribed || t.state == Failed {
		t.state = Acquiring
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	fix, err := t.source.CurrentPosition(ctx, opts)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		if _, ok := AsError(err); !ok {
			err = NewError(Timeout, "no position within "+opts.Timeout.String())
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		if t.state == Acquiring && t.sub == nil {
			t.state = Failed
		}
		t.publish(err)
		return Fix{}, err
	}

	t.latest = &fix
	if t.state == Acquiring && t.sub == nil {
		t.state = Unsubscribed
	}
	return fix, nil
}

// StartWatch begins continuous delivery. Every fix goes to onUpdate; errors go to onError
// and the Errors channel. A PermissionDenied error clears the watch; others keep it alive.
func (t *Tracker) StartWatch(onUpdate func(Fix), onError func(error)) (*Subscription, error) {
	t.mu.Lock()
	if t.sub != nil {
		t.mu.Unlock()
		return nil, ErrAlreadyWatching
	}
	sub := &Subscription{active: true}
	t.sub = sub
	t.state = Acquiring
	t.mu.Unlock()

	id, err := t.source.Watch(WatchOptions(),
		func(fix Fix) { t.handleFix(sub, fix, onUpdate) },
		func(err error) { t.handleError(sub, err, onError) })

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		if t.sub == sub {
			t.sub = nil
			t.state = Failed
		}
		return nil, err
	}

	sub.id = id
	if !sub.active {
		// Stopped or terminated while the watch was being registered
		t.source.ClearWatch(id)
		return sub, nil
	}

	t.logger.Debug("position watch started", zap.Int64("watch_id", int64(id)))
	return sub, nil
}

// StopWatch releases the subscription. Safe to call repeatedly and with nil.
func (t *Tracker) StopWatch(sub *Subscription) {
	if sub == nil {
		return
	}

	t.mu.Lock()
	if !sub.active {
		t.mu.Unlock()
		return
	}
	sub.active = false
	id := sub.id
	if t.sub == sub {
		t.sub = nil
		if t.state != Failed {
			t.state = Unsubscribed
		}
	}
	t.mu.Unlock()

	t.source.ClearWatch(id)
	t.logger.Debug("position watch stopped", zap.Int64("watch_id", int64(id)))
}

// Latest returns the most recent fix, if any
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.latest == nil {
		return Fix{}, false
	}
	return *t.latest, true
}

// Errors publishes every location error. Slow readers lose errors rather than blocking delivery.
func (t *Tracker) Errors() <-chan error {
	return t.errs
}

// State returns the current tracker state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) handleFix(sub *Subscription, fix Fix, onUpdate func(Fix)) {
	t.mu.Lock()
	if !sub.active {
		t.mu.Unlock()
		return
	}
	t.latest = &fix
	t.state = Tracking
	t.mu.Unlock()

	if onUpdate != nil {
		onUpdate(fix)
	}
}

func (t *Tracker) handleError(sub *Subscription, err error, onError func(error)) {
	t.mu.Lock()
	if !sub.active {
		t.mu.Unlock()
		return
	}

	terminal := false
	if locErr, ok := AsError(err); ok && locErr.Terminal() {
		terminal = true
		sub.active = false
		t.sub = nil
		t.state = Failed
	}
	t.publish(err)
	id := sub.id
	t.mu.Unlock()

	if terminal {
		// id is zero when the error arrives before Watch returns; StartWatch clears it then
		if id != 0 {
			t.source.ClearWatch(id)
		}
		t.logger.Warn("position watch terminated", zap.Error(err))
	} else {
		t.logger.Debug("position error", zap.Error(err))
	}

	if onError != nil {
		onError(err)
	}
}

// publish must be called with t.mu held
func (t *Tracker) publish(err error) {
	select {
	case t.errs <- err:
	default:
	}
}
