// Package ring provides a bounded, goroutine-safe append-only buffer.
package ring

import "sync"

// Buffer keeps the newest entries. When the length exceeds capacity the
// oldest entries are dropped until only retain remain.
type Buffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	retain   int
}

// New returns a buffer that drops the oldest entry once capacity is exceeded.
func New[T any](capacity int) *Buffer[T] {
	return NewTrimming[T](capacity, capacity)
}

// NewTrimming returns a buffer that, once capacity is exceeded, keeps only
// the newest retain entries.
func NewTrimming[T any](capacity, retain int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	if retain <= 0 || retain > capacity {
		retain = capacity
	}
	return &Buffer[T]{capacity: capacity, retain: retain}
}

// Append adds an entry, trimming if needed.
func (b *Buffer[T]) Append(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	if len(b.items) > b.capacity {
		drop := len(b.items) - b.retain
		kept := make([]T, b.retain, b.capacity+1)
		copy(kept, b.items[drop:])
		b.items = kept
	}
}

// Snapshot returns a copy, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Last returns up to n newest entries, newest first.
func (b *Buffer[T]) Last(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.items) {
		n = len(b.items)
	}
	out := make([]T, 0, n)
	for i := len(b.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, b.items[i])
	}
	return out
}

// Len returns the number of stored entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Filter returns stored entries matching keep, oldest first.
func (b *Buffer[T]) Filter(keep func(T) bool) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []T
	for _, item := range b.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Reset removes every entry.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
