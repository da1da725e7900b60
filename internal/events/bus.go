package events

import (
	"sync"
	"time"
)

// Well-known topics. Consumers should subscribe to exactly the concerns
// they depend on.
const (
	// TopicToken carries token-state changes (refresh, revoke, prime).
	TopicToken = "token"

	// TopicJobs carries job progress and terminal status changes.
	TopicJobs = "jobs"

	// TopicActions carries action-log changes for per-sender state.
	TopicActions = "actions"
)

// Event is a single notification on a topic.
type Event struct {
	// Topic the event was published on.
	Topic string

	// Key identifies the subject within the topic, e.g. a job ID or a
	// sender email hash. May be empty for topic-wide events.
	Key string

	// Payload is topic-specific data. Consumers type-assert based on the
	// topic they subscribed to.
	Payload any

	// Time is when the event was published.
	Time time.Time
}

// subscriberBuffer is the per-subscriber channel capacity. Publishing to
// a full subscriber drops the event instead of blocking.
const subscriberBuffer = 64

type subscriber struct {
	topic string
	ch    chan Event
}

// Bus is a topic-based publish/subscribe broker. The zero value is not
// usable; create one with NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for the given topic. It returns the
// receive channel and a cancel function that removes the subscription
// and closes the channel. The cancel function is safe to call more than
// once.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{
		topic: topic,
		ch:    make(chan Event, subscriberBuffer),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of the topic. Delivery
// is best effort: subscribers with full buffers are skipped.
func (b *Bus) Publish(topic, key string, payload any) {
	ev := Event{
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Time:    time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is not keeping up; drop rather than block.
		}
	}
}

// SubscriberCount returns the number of active subscriptions for a
// topic. Useful for tests and diagnostics.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for sub := range b.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}
