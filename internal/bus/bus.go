// Package bus is the process-wide fan-out between the transport and any
// number of chat sessions. Subscribers filter by namespace prefix.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Uint64
}

type subscription struct {
	namespace string
	ch        chan Event
	queue     *queue
}

// queue holds events for a subscriber that must not miss any. A pump
// goroutine moves them to the subscriber's channel in publish order.
type queue struct {
	mu    sync.Mutex
	items []Event
	wake  chan struct{}
	quit  chan struct{}
}

func (q *queue) push(evt Event) {
	q.mu.Lock()
	q.items = append(q.items, evt)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pump(out chan<- Event) {
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		for _, evt := range batch {
			select {
			case out <- evt:
			case <-q.quit:
				return
			}
		}
	}
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of
// evt.Kind. Delivery order per subscriber follows publish order. A subscriber
// whose buffer is full misses the event and the drop is counted.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		if sub.queue != nil {
			sub.queue.push(evt)
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives events matching the given
// namespace prefix, and an unsubscribe function. The channel is never closed;
// callers stop reading after unsubscribing.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeQueued is Subscribe for consumers that must see every event.
// Events wait in an unbounded queue instead of being dropped while the
// consumer is busy.
func (b *Bus) SubscribeQueued(namespace string) (<-chan Event, func()) {
	ch := make(chan Event)
	q := &queue{wake: make(chan struct{}, 1), quit: make(chan struct{})}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch, queue: q}
	b.mu.Unlock()

	go q.pump(ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(q.quit)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
