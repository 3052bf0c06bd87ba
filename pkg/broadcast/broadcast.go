// Package broadcast provides a bounded, lossy, multi-subscriber topic.
//
// Publishers never block. When a subscriber's queue is full the oldest
// queued item is dropped to make room, and the subscriber's lag counter
// is incremented so the loss is observable.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// DropCallback is invoked with every item a subscriber lost.
type DropCallback[T any] func(item T)

// Option configures a Topic.
type Option[T any] func(*Topic[T])

// WithDropCallback registers a callback for dropped items.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(t *Topic[T]) {
		t.onDrop = cb
	}
}

// Topic fans published items out to every live subscription.
type Topic[T any] struct {
	mu       sync.Mutex
	capacity int
	subs     map[*Subscription[T]]struct{}
	closed   bool
	onDrop   DropCallback[T]
}

// New creates a topic whose subscriptions buffer up to capacity items.
func New[T any](capacity int, opts ...Option[T]) *Topic[T] {
	if capacity < 1 {
		capacity = 1
	}
	t := &Topic[T]{
		capacity: capacity,
		subs:     make(map[*Subscription[T]]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Subscription is one receiver on a Topic.
type Subscription[T any] struct {
	topic  *Topic[T]
	ch     chan T
	lagged atomic.Uint64
	once   sync.Once
}

// C returns the receive channel. It is closed when the subscription or
// the topic is closed.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Lagged returns how many items this subscriber has lost.
func (s *Subscription[T]) Lagged() uint64 { return s.lagged.Load() }

// Close detaches the subscription from its topic.
func (s *Subscription[T]) Close() {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription[T]) closeLocked() {
	s.once.Do(func() {
		delete(s.topic.subs, s)
		close(s.ch)
	})
}

// Subscribe attaches a new receiver. Subscribing to a closed topic returns
// a subscription whose channel is already closed.
func (t *Topic[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{topic: t, ch: make(chan T, t.capacity)}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	t.subs[s] = struct{}{}
	return s
}

// Publish delivers item to every subscriber and returns how many received it.
// With no subscribers the item is silently discarded.
func (t *Topic[T]) Publish(item T) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}

	delivered := 0
	for s := range t.subs {
		select {
		case s.ch <- item:
			delivered++
			continue
		default:
		}

		// Full: evict the oldest item, then retry once.
		select {
		case old := <-s.ch:
			s.lagged.Add(1)
			if t.onDrop != nil {
				t.onDrop(old)
			}
		default:
		}
		select {
		case s.ch <- item:
			delivered++
		default:
			s.lagged.Add(1)
			if t.onDrop != nil {
				t.onDrop(item)
			}
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close closes every subscription. Later publishes are discarded.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for s := range t.subs {
		s.closeLocked()
	}
}
