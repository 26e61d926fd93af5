package eventbus

import (
	"sync"

	"github.com/rs/xid"
)

// Handler receives a published event on the publisher's goroutine.
type Handler func(event *Event)

// Bus fans relay lifecycle events out to observers such as metrics.
type Bus interface {
	// Publish runs every matching handler before returning.
	Publish(event *Event)

	// Subscribe registers handler for one event type and returns its id.
	Subscribe(eventType EventType, handler Handler) string

	// SubscribeAll registers handler for every event type.
	SubscribeAll(handler Handler) string

	Unsubscribe(id string)
}

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBus dispatches synchronously. Handlers run outside the lock, so
// a handler may subscribe or unsubscribe.
type InMemoryBus struct {
	mu     sync.RWMutex
	byType map[EventType][]subscription
	all    []subscription
}

var _ Bus = (*InMemoryBus)(nil)

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		byType: make(map[EventType][]subscription),
	}
}

func (b *InMemoryBus) Publish(event *Event) {
	for _, h := range b.handlersFor(event.Type) {
		h(event)
	}
}

func (b *InMemoryBus) handlersFor(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.byType[eventType]
	handlers := make([]Handler, 0, len(subs)+len(b.all))
	for _, s := range subs {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.all {
		handlers = append(handlers, s.handler)
	}
	return handlers
}

func (b *InMemoryBus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{id: xid.New().String(), handler: handler}
	b.byType[eventType] = append(b.byType[eventType], sub)
	return sub.id
}

func (b *InMemoryBus) SubscribeAll(handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{id: xid.New().String(), handler: handler}
	b.all = append(b.all, sub)
	return sub.id
}

func (b *InMemoryBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.byType {
		b.byType[eventType] = without(subs, id)
	}
	b.all = without(b.all, id)
}

func without(subs []subscription, id string) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Nop is a Bus that drops every event.
type Nop struct{}

func (Nop) Publish(*Event) {}
func (Nop) Subscribe(EventType, Handler) string { return "" }
func (Nop) SubscribeAll(Handler) string { return "" }
func (Nop) Unsubscribe(string) {}
