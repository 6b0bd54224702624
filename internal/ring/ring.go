// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// element when full. It backs the debouncer's sample window and the MQTT
// offline buffer.
package ring

// Buffer is a fixed-capacity FIFO. Not safe for concurrent use.
type Buffer[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

// New returns an empty buffer holding at most capacity elements.
func New[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v. When the buffer is full the oldest element is overwritten
// and returned with evicted set.
func (b *Buffer[T]) Push(v T) (old T, evicted bool) {
	if b.count == len(b.buf) {
		// head already points at the oldest element
		old, evicted = b.buf[b.head], true
	} else {
		b.count++
	}
	b.buf[b.head] = v
	b.head = (b.head + 1) % len(b.buf)
	return old, evicted
}

// Len returns the number of elements held.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Values returns the elements oldest first.
func (b *Buffer[T]) Values() []T {
	out := make([]T, b.count)
	start := (b.head - b.count + len(b.buf)) % len(b.buf)
	for i := range out {
		out[i] = b.buf[(start+i)%len(b.buf)]
	}
	return out
}

// Reset empties the buffer.
func (b *Buffer[T]) Reset() {
	clear(b.buf)
	b.head = 0
	b.count = 0
}
