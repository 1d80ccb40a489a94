package events

import (
	"log"
	"runtime/debug"
	"sync"
)

// Handler is a synchronous observer.
type Handler func(payload any)

// Bus is a lightweight pub/sub broker. Handlers registered with On run
// synchronously in registration order; channel subscribers get a
// non-blocking copy and are dropped from when slow.
type Bus struct {
	mu       sync.RWMutex
	subs     map[Event][]chan any
	handlers map[Event][]handlerEntry
	nextID   int
}

type handlerEntry struct {
	id int
	fn Handler
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs:     make(map[Event][]chan any),
		handlers: make(map[Event][]handlerEntry),
	}
}

// On registers a synchronous observer and returns a function that removes it.
func (b *Bus) On(e Event, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[e] = append(b.handlers[e], handlerEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[e]
		for i, h := range hs {
			if h.id == id {
				b.handlers[e] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
	}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[e]
			for i, c := range subs {
				if c == ch {
					close(c)
					b.subs[e] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}

	return ch, unsub
}

// Publish runs synchronous observers, then fans the payload out to channel
// subscribers without blocking. A panicking observer is logged and skipped.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	handlers := append([]handlerEntry(nil), b.handlers[e]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(e, h.fn, payload)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}

func (b *Bus) dispatch(e Event, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: observer for %s panicked: %v\n%s", e, r, debug.Stack())
		}
	}()
	fn(payload)
}
