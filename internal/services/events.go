package services

import (
	"sync"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
)

// DefaultSubscriberBuffer is the event backlog kept per subscriber
const DefaultSubscriberBuffer = 64

// eventHub fans engine events out to subscribers. A subscriber that falls
// behind loses events instead of stalling the engine.
type eventHub struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan navigation.Event
	closed bool
}

func newEventHub(logger *zap.Logger) *eventHub {
	return &eventHub{logger: logger, subs: make(map[int]chan navigation.Event)}
}

func (h *eventHub) Emit(ev navigation.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("kind", string(ev.Kind)))
		}
	}
}

// subscribe returns the event channel and a function that unsubscribes.
// The channel is closed on unsubscribe or when the hub closes.
func (h *eventHub) subscribe(buffer int) (<-chan navigation.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan navigation.Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
