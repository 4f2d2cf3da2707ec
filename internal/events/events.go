package events

import (
	"sync"
	"time"
)

// Event types published by the booking and admin services. The slot catalog
// subscribes to all of them to drop its cached listing.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeSlotsAdded       = "slots.added"
	TypeSlotsDeleted     = "slots.deleted"
)

// Event is a domain notification delivered to in-process subscribers.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// EventHandler consumes one event. A handler error is the handler's own
// concern; delivery continues past it.
type EventHandler func(event Event) error

// EventBus fans events out to handlers registered per event type. Delivery is
// synchronous and in registration order; callers needing concurrency wrap
// their handler in a goroutine themselves.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for one event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers the event to every handler of its type, stamping the
// creation time when the publisher left it zero.
func (b *EventBus) Publish(event Event) {
	// Snapshot under the read lock so a handler may subscribe without
	// deadlocking the bus.
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}
