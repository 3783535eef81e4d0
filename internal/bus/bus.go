// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the lip-sync engine
const (
	// Engine lifecycle
	EventTypeRigResolved    EventType = "engine.rig_resolved"
	EventTypeStateChanged   EventType = "engine.state_changed"
	EventTypeEngineDisposed EventType = "engine.disposed"

	// Capture lifecycle
	EventTypeCaptureStarted  EventType = "capture.started"
	EventTypeCaptureStopped  EventType = "capture.stopped"
	EventTypeCaptureFailed   EventType = "capture.failed"
	EventTypeCaptureDisabled EventType = "capture.disabled"

	// Micro-motion
	EventTypeGesture EventType = "motion.gesture"

	// Host
	EventTypeConfigReloaded EventType = "config.reloaded"
	EventTypeClientJoined   EventType = "stream.client_joined"
	EventTypeClientLeft     EventType = "stream.client_left"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll adds a handler that receives every event
func (b *EventBus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]Handler, 0, len(b.handlers[eventType])+len(b.all))
	handlers = append(handlers, b.handlers[eventType]...)
	handlers = append(handlers, b.all...)
	return handlers
}

// Publish sends an event to all subscribed handlers. A nil bus drops the
// event.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	for _, handler := range b.snapshot(event.Type) {
		// Call handlers in goroutines to avoid blocking the frame loop
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	if b == nil {
		return
	}

	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
	b.all = nil
}
