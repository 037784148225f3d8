package bus

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the per-subscriber channel depth used by Subscribe.
const DefaultBuffer = 256

// Bus fans events out to subscribers over buffered channels.
//
// Publish never blocks: an event that cannot be buffered for a subscriber is
// dropped for that subscriber with a warning. Subscribers that react to
// events by publishing again (the orchestrator's synthetic tool-call-end)
// therefore cannot deadlock the bus.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel plus an
// unsubscribe func. buffer <= 0 selects DefaultBuffer.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	once := sync.Once{}
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("bus: dropping event for slow subscriber", "kind", ev.Kind(), "subscriber", id)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
