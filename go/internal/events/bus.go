package events

import "sync"

// Publisher accepts exam events. Implementations must not block the caller
// for long; events are published from the exam's timing loop.
type Publisher interface {
	Publish(event *Event)
}

// Subscriber receives events from a Bus.
type Subscriber interface {
	HandleEvent(event *Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(event *Event)

func (f SubscriberFunc) HandleEvent(event *Event) { f(event) }

type subscription struct {
	id  uint64
	sub Subscriber
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers s and returns a func that removes it again.
func (b *Bus) Subscribe(s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, sub: s})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, existing := range b.subs {
			if existing.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers event to every subscriber synchronously.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.sub.HandleEvent(event)
	}
}
