package eventing

import (
	"sync"
)

// DefaultNotificationBuffer is the channel depth for each broker consumer.
const DefaultNotificationBuffer = 16

// Broker fans incoming notifications out to registered consumers. Each
// consumer supplies a filter predicate that is evaluated at delivery time,
// so a consumer that tracks a changing subscription identifier always
// filters against the current one.
//
// Delivery is non-blocking: a consumer that does not drain its channel
// loses notifications rather than stalling the listener.
type Broker struct {
	mu   sync.Mutex
	subs map[int]*brokerSub
	next int
}

type brokerSub struct {
	ch     chan Notification
	filter func(Notification) bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*brokerSub)}
}

// Subscribe registers a consumer. Only notifications for which filter
// returns true are delivered. The returned cancel function unregisters the
// consumer and closes its channel; it is safe to call more than once.
func (b *Broker) Subscribe(filter func(Notification) bool) (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &brokerSub{
		ch:     make(chan Notification, DefaultNotificationBuffer),
		filter: filter,
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers a notification to every consumer whose filter accepts
// it. Returns the number of consumers that received it.
func (b *Broker) Publish(n Notification) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(n) {
			continue
		}
		select {
		case sub.ch <- n:
			delivered++
		default:
			// Consumer is not draining; drop rather than stall.
		}
	}
	return delivered
}
