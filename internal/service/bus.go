package service

import "sync"

// Event resources and actions published on the bus.
const (
	ResourceComposition = "composition"
	ResourceSettings    = "settings"
	ResourceDataset     = "dataset"
	ResourceSelection   = "selection"

	ActionComposed = "composed"
	ActionUpdated  = "updated"
	ActionFailed   = "failed"
)

// Event represents a state change of the visual.
type Event struct {
	Resource string // e.g. "composition"
	Action   string // "composed", "updated", "failed"
	ID       string // frame ID for compositions
}

// EventBus is a simple fan-out pub/sub for visual change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
