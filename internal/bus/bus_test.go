package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishSyncReachesTypedAndWildcardHandlers(t *testing.T) {
	b := NewEventBus()

	var typed, all atomic.Int32
	b.Subscribe(EventTypeStateChanged, func(e Event) { typed.Add(1) })
	b.SubscribeAll(func(e Event) { all.Add(1) })

	b.PublishSync(Event{Type: EventTypeStateChanged})
	b.PublishSync(Event{Type: EventTypeCaptureStarted})

	assert.Equal(t, int32(1), typed.Load())
	assert.Equal(t, int32(2), all.Load())
}

func TestPublishIsAsynchronous(t *testing.T) {
	b := NewEventBus()
	done := make(chan Event, 1)
	b.Subscribe(EventTypeGesture, func(e Event) { done <- e })

	b.Publish(Event{Type: EventTypeGesture, Data: map[string]any{"kind": "nod"}})

	select {
	case e := <-done:
		assert.Equal(t, "nod", e.Data["kind"])
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestNilBusAndClear(t *testing.T) {
	var nilBus *EventBus
	assert.NotPanics(t, func() {
		nilBus.Publish(Event{Type: EventTypeStateChanged})
		nilBus.PublishSync(Event{Type: EventTypeStateChanged})
	})

	b := NewEventBus()
	var calls atomic.Int32
	b.SubscribeMultiple([]EventType{EventTypeClientJoined, EventTypeClientLeft}, func(Event) { calls.Add(1) })
	b.Clear()
	b.PublishSync(Event{Type: EventTypeClientJoined})
	assert.Equal(t, int32(0), calls.Load())
}
