package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	bus := NewBus()
	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Type: EventSessionCreated, Data: 1})
	bus.Publish(Event{Type: EventSessionTerminated, Data: 2})

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, EventSessionCreated, first.Type)
	assert.Equal(t, EventSessionTerminated, second.Type)
}

func TestEachSubscriberGetsEveryEvent(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(Event{Type: EventUserCreated})

	assert.Equal(t, EventUserCreated, (<-a.Events()).Type)
	assert.Equal(t, EventUserCreated, (<-b.Events()).Type)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventSessionCreated})

	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	bus.Publish(Event{Type: EventSessionExpired})

	got := <-sub.Events()
	assert.Equal(t, EventSessionExpired, got.Type)
	assert.Empty(t, sub.Events())
}

func TestFullSubscriberDropsWithoutBlockingPublisher(t *testing.T) {
	bus := NewBus(WithBuffer(2))
	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventSessionCreated, Data: i})
	}

	// Only the buffered events are delivered; the rest were dropped.
	require.Len(t, sub.Events(), 2)
	assert.Equal(t, 0, (<-sub.Events()).Data)
	assert.Equal(t, 1, (<-sub.Events()).Data)
}

func TestUnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	bus := NewBus()
	sub, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Publishing after unsubscribe must not panic.
	bus.Publish(Event{Type: EventSessionCreated})
}
