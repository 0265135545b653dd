// Package events delivers typed notifications to subscribers in publish order.
package events

import "sync"

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Broker fans a value out to every subscriber. Each subscriber owns a
// buffered channel, so delivery is FIFO per subscriber; a subscriber whose
// queue is full misses the value and OnDrop is called.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	nextID int
	buffer int
	closed bool

	// OnDrop is called (outside the lock) when a subscriber queue is full.
	OnDrop func(subscriber int)
}

// NewBroker creates a broker with the given per-subscriber buffer.
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Listen runs fn for every value on its own goroutine, in order, until cancel.
func (b *Broker[T]) Listen(fn func(T)) func() {
	ch, cancel := b.Subscribe()
	go func() {
		for v := range ch {
			fn(v)
		}
	}()
	return cancel
}

// Publish delivers v to every subscriber without blocking.
func (b *Broker[T]) Publish(v T) {
	var dropped []int
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- v:
		default:
			dropped = append(dropped, id)
		}
	}
	b.mu.RUnlock()
	if b.OnDrop != nil {
		for _, id := range dropped {
			b.OnDrop(id)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel; later publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
