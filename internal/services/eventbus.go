package services

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives every payload published to the topic it subscribed to.
type Handler func(payload any)

// Subscription identifies one handler registration so it can be removed
// later.
type Subscription struct {
	ID    string
	Topic string
}

// EventBus is an in-process publish/subscribe hub for simulation events.
// Handlers run synchronously on the publisher's goroutine, in subscription
// order; a panicking handler is isolated and logged.
type EventBus struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	handlers map[string][]busEntry
	closed   bool
}

type busEntry struct {
	id string
	fn Handler
}

// NewEventBus creates an empty bus.
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{logger: logger, handlers: make(map[string][]busEntry)}
}

// Subscribe registers a handler for a topic and returns its subscription
// token.
func (b *EventBus) Subscribe(topic string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := Subscription{ID: uuid.New().String(), Topic: topic}
	b.handlers[topic] = append(b.handlers[topic], busEntry{id: sub.ID, fn: fn})
	return sub
}

// Unsubscribe removes a previously registered handler. Unknown tokens are
// ignored.
func (b *EventBus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[sub.Topic]
	for i, e := range entries {
		if e.id == sub.ID {
			b.handlers[sub.Topic] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every handler of the topic.
func (b *EventBus) Publish(topic string, payload any) {
	b.mu.RLock()
	entries := make([]busEntry, len(b.handlers[topic]))
	copy(entries, b.handlers[topic])
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}
	for _, e := range entries {
		b.deliver(topic, e, payload)
	}
}

func (b *EventBus) deliver(topic string, e busEntry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", topic),
				zap.Any("panic", r))
		}
	}()
	e.fn(payload)
}

// SubscriberCount reports how many handlers a topic currently has.
func (b *EventBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Close drops all handlers and rejects further publishes.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]busEntry)
	return nil
}
