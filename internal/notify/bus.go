// Package notify fans lifecycle events out to connected observers. Delivery
// is best-effort: the bus never blocks a publisher on a slow observer and
// keeps no history, so an observer that connects late misses earlier events
// permanently.
package notify

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeep_bus_events_published_total",
		Help: "Lifecycle events published to the notification bus",
	}, []string{"type"})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeep_bus_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full",
	})
)

// Event is the tagged payload delivered to observers. The shape matches the
// wire format, so transports can forward it verbatim as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types published by the lifecycle services.
const (
	EventAccessRequestCreated  = "access_request_created"
	EventAccessRequestApproved = "access_request_approved"
	EventAccessRequestRejected = "access_request_rejected"
	EventSessionCreated        = "session_created"
	EventSessionTerminated     = "session_terminated"
	EventSessionExpired        = "session_expired"
	EventApplicationCreated    = "application_created"
	EventApplicationUpdated    = "application_updated"
	EventApplicationDeleted    = "application_deleted"
	EventUserCreated           = "user_created"
)

const defaultBuffer = 64

// Subscriber receives events over a buffered channel in publish order.
type Subscriber struct {
	ch chan Event
}

// Events returns the subscriber's delivery channel. It is closed when the
// subscriber is unregistered.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Bus is the in-process fan-out point. Each subscriber has its own buffered
// channel, giving FIFO delivery per observer with no ordering guarantee
// across observers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buffer int
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer overrides the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{subs: make(map[*Subscriber]struct{}), buffer: defaultBuffer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new observer and returns it with its unregister
// function. Unregistering is idempotent and closes the event channel.
func (b *Bus) Subscribe() (*Subscriber, func()) {
	sub := &Subscriber{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			// Closing under the write lock: Publish sends only while
			// holding the read lock, so no send can race the close.
			close(sub.ch)
			b.mu.Unlock()
		})
	}
	return sub, unsubscribe
}

// Publish delivers the event to every registered subscriber without
// blocking. A subscriber whose buffer is full loses this event.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	eventsPublished.WithLabelValues(event.Type).Inc()
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			eventsDropped.Inc()
		}
	}
}

// SubscriberCount reports the number of registered observers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
