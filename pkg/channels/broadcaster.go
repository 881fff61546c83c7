package channels

import (
	"sync"
)

// subscriber holds a channel and its drop counter.
type subscriber[T any] struct {
	ch      chan T
	dropped int
}

// send delivers msg without blocking. When the buffer is full the oldest
// queued message is discarded so the subscriber always sees the latest value.
func (s *subscriber[T]) send(msg T) {
	s.dropped += SendLatest(s.ch, msg)
}

// Broadcaster publishes values to a changing set of subscribers.
//
// Every subscriber owns a buffered channel. Publishing never blocks: a slow
// subscriber loses its oldest queued values, which suits state snapshots and
// time updates where only the latest value matters.
//
// Subscriptions are released with the cancel func returned by Subscribe, or
// all at once by Close. Both close the subscriber channel.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber[T]
	next   uint64
	buffer int
	closed bool
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold up to
// buffer values. A buffer below 1 is raised to 1.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[uint64]*subscriber[T]),
		buffer: max(1, buffer),
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes its channel; calling it more than once is safe. Subscribing to a
// closed Broadcaster returns an already closed channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = &subscriber[T]{ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}

	return ch, cancel
}

// Publish sends msg to every current subscriber.
func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.send(msg)
	}
}

// Close removes all subscribers and closes their channels. Later Publish
// calls are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Dropped returns the total number of values discarded across subscribers.
func (b *Broadcaster[T]) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, sub := range b.subs {
		total += sub.dropped
	}

	return total
}
