package streaming

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const defaultChannelBuffer = 64

type subscriber struct {
	ch     chan StreamEvent
	filter EventFilter
}

// MemoryHub is an in-process EventHub. Events are stamped with a monotonic
// sequence number so consumers can detect gaps left by dropped events.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	ids  atomic.Uint64
	seq  atomic.Uint64
	now  func() time.Time
}

// NewMemoryHub creates a new MemoryHub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		subs: make(map[uint64]*subscriber),
		now:  time.Now,
	}
}

// Publish delivers event to every matching subscriber. It never blocks: a
// subscriber whose buffer is full misses the event.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event.Seq = h.seq.Add(1)
	if event.Time.IsZero() {
		event.Time = h.now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !matchFilter(sub.filter, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a filtered subscription. The returned cancel function
// removes it and closes the channel; calling it more than once is safe.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.ids.Add(1)
	ch := make(chan StreamEvent, defaultChannelBuffer)

	h.mu.Lock()
	h.subs[id] = &subscriber{ch: ch, filter: filter}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func matchFilter(f EventFilter, e StreamEvent) bool {
	if f.SessionID != "" && f.SessionID != e.SessionID {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.EventType) {
		return false
	}
	return true
}

var _ EventHub = (*MemoryHub)(nil)
