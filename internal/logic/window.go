package logic

import "github.com/sweeney/lm393-sensor/internal/ring"

// window is a fixed-capacity FIFO of samples with a running sum.
// Not safe for concurrent use.
type window struct {
	ring  *ring.Buffer[Sample]
	total int
}

func newWindow(capacity int) *window {
	return &window{ring: ring.New[Sample](capacity)}
}

// push appends s, evicting the oldest sample when full.
func (w *window) push(s Sample) {
	if old, evicted := w.ring.Push(s); evicted {
		w.total -= int(old)
	}
	w.total += int(s)
}

func (w *window) sum() int {
	return w.total
}

func (w *window) len() int {
	return w.ring.Len()
}

func (w *window) capacity() int {
	return w.ring.Cap()
}

func (w *window) average() float64 {
	if w.ring.Len() == 0 {
		return 0
	}
	return float64(w.total) / float64(w.ring.Len())
}

// values returns the samples oldest first.
func (w *window) values() []Sample {
	return w.ring.Values()
}
