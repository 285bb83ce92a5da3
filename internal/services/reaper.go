package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/metrics"
)

// Reapable closes entries idle for longer than idle and reports how many it closed
type Reapable interface {
	ReapIdle(now time.Time, idle time.Duration) int
}

// SessionReaper periodically closes abandoned sessions, explore views and viewers
type SessionReaper struct {
	targets  []Reapable
	interval time.Duration
	idle     time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewSessionReaper creates a new session reaper
func NewSessionReaper(interval, idle time.Duration, m *metrics.Collector, logger *zap.Logger, targets ...Reapable) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReaper{
		targets:  targets,
		interval: interval,
		idle:     idle,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins reaping in the background. Calling Start on a running reaper is a no-op.
func (r *SessionReaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if r.interval <= 0 {
		r.logger.Info("Session reaper disabled")
		return nil
	}

	r.running = true
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})

	r.logger.Info("Starting session reaper",
		zap.Duration("interval", r.interval),
		zap.Duration("idle_timeout", r.idle))

	go r.loop(ctx, r.stopChan, r.done)
	return nil
}

// Stop halts the reaper and waits for the loop to exit
func (r *SessionReaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stopChan, r.done
	r.mu.Unlock()

	close(stop)
	<-done
	r.logger.Info("Stopped session reaper")
}

// IsRunning returns whether the reaper loop is active
func (r *SessionReaper) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// ReapOnce runs a single pass over all targets
func (r *SessionReaper) ReapOnce() int {
	now := r.now()
	total := 0
	for _, t := range r.targets {
		n := t.ReapIdle(now, r.idle)
		for i := 0; i < n; i++ {
			r.metrics.SessionReaped()
		}
		total += n
	}
	if total > 0 {
		r.logger.Info("Reaped idle sessions", zap.Int("count", total))
	}
	return total
}

func (r *SessionReaper) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Session reaper stopping due to context cancellation")
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			r.ReapOnce()
		}
	}
}
