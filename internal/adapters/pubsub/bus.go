package pubsub

import "sync"

// Handler receives a published payload.
type Handler func(payload any)

// Bus is an in-process topic bus. Publish delivers synchronously, in subscription
// order, on the caller's goroutine; handlers must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscriber
}

type subscriber struct {
	id int
	fn Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(topic string, payload any) {
	// snapshot so handlers may (un)subscribe
	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, s := range list {
		s.fn(payload)
	}
}
