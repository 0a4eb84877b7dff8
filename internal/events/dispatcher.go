package events

import (
	"context"
	"sync"
)

// Handler handles a published event.
type Handler func(context.Context, Event)

// Subscription is a registered handler. Unsubscribe may be called any number
// of times; only the first call has an effect.
type Subscription interface {
	Unsubscribe()
}

// Dispatcher allows auth event publication and subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event)
	Subscribe(handler Handler) Subscription
	Len() int
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Handler
	order     []uint64
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[uint64]Handler),
	}
}

// Publish synchronously invokes a snapshot of the handlers in subscription order.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.order))
	for _, id := range d.order {
		handlers = append(handlers, d.listeners[id])
	}
	d.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
}

// Subscribe registers a handler for every event type.
func (d *inMemoryDispatcher) Subscribe(handler Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = handler
	d.order = append(d.order, id)
	return &subscription{dispatcher: d, id: id}
}

// Len returns the number of live subscriptions.
func (d *inMemoryDispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

func (d *inMemoryDispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}

type subscription struct {
	dispatcher *inMemoryDispatcher
	id         uint64
	once       sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.dispatcher.remove(s.id)
	})
}
