package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run off the publishing goroutine and
// must not block for long.
type Handler func(event *Event)

// SubscriptionID identifies a subscription for Unsubscribe
type SubscriptionID uint64

// subscriber delivers to one handler, one event at a time, in publish order.
// A drain goroutine runs only while the queue is non-empty.
type subscriber struct {
	id      SubscriptionID
	handler Handler

	mu      sync.Mutex
	queue   []*Event
	running bool
}

// Bus fans events out to subscribers by type
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]*subscriber
	nextID atomic.Uint64
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewBus creates an empty bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]*subscriber),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for one event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	return b.SubscribeMany([]EventType{eventType}, handler)
}

// SubscribeMany registers handler for several event types. The handler sees events
// of all those types in the order they were published.
func (b *Bus) SubscribeMany(eventTypes []EventType, handler Handler) SubscriptionID {
	sub := &subscriber{id: SubscriptionID(b.nextID.Add(1)), handler: handler}

	b.mu.Lock()
	for _, eventType := range eventTypes {
		b.subs[eventType] = append(b.subs[eventType], sub)
	}
	b.mu.Unlock()

	return sub.id
}

// Unsubscribe removes every registration made under id
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		kept := make([]*subscriber, 0, len(subs))
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subs, eventType)
		} else {
			b.subs[eventType] = kept
		}
	}
}

// SubscriberCount returns the number of handlers registered for eventType
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish queues event for every subscriber of its type and returns without waiting.
// Each subscriber receives events in the order Publish was called.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	subs := make([]*subscriber, len(b.subs[event.Type]))
	copy(subs, b.subs[event.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		s.mu.Lock()
		s.queue = append(s.queue, event)
		if !s.running {
			s.running = true
			b.wg.Add(1)
			go b.drain(s)
		}
		s.mu.Unlock()
	}
}

func (b *Bus) drain(s *subscriber) {
	defer b.wg.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		b.call(s.handler, event)
	}
}

func (b *Bus) call(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	handler(event)
}

// Wait blocks until all in-flight handlers have returned
func (b *Bus) Wait() {
	b.wg.Wait()
}
