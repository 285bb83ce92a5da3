package mapview

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display frame
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler coalesces work to at most one run per frame.
// Only the most recent request is kept; a request that is superseded
// before its frame fires is dropped.
type FrameScheduler struct {
	interval time.Duration

	mu         sync.Mutex
	pending    func()
	timer      *time.Timer
	generation uint64
	dropped    uint64
	stopped    bool
}

// NewFrameScheduler creates a scheduler. An interval <= 0 runs requests immediately.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	return &FrameScheduler{interval: interval}
}

// Request schedules fn for the next frame, replacing any pending request
func (s *FrameScheduler) Request(fn func()) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.interval <= 0 {
		s.mu.Unlock()
		fn()
		return
	}
	if s.pending != nil {
		s.dropped++
	}
	s.pending = fn
	if s.timer == nil {
		s.generation++
		gen := s.generation
		s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
	}
	s.mu.Unlock()
}

func (s *FrameScheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.stopped {
		s.mu.Unlock()
		return
	}
	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs the pending request now, reporting whether there was one
func (s *FrameScheduler) Flush() bool {
	s.mu.Lock()
	fn := s.takeLocked()
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Cancel drops the pending request
func (s *FrameScheduler) Cancel() {
	s.mu.Lock()
	if s.takeLocked() != nil {
		s.dropped++
	}
	s.mu.Unlock()
}

// Stop cancels pending work; later requests are ignored
func (s *FrameScheduler) Stop() {
	s.mu.Lock()
	s.takeLocked()
	s.stopped = true
	s.mu.Unlock()
}

// Pending reports whether a request is waiting for its frame
func (s *FrameScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Dropped returns how many requests were superseded or cancelled
func (s *FrameScheduler) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *FrameScheduler) takeLocked() func() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	fn := s.pending
	s.pending = nil
	return fn
}
