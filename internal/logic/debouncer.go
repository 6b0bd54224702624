package logic

import (
	"fmt"
	"time"
)

// Debouncer turns a stream of noisy binary samples into debounced state
// changes by averaging a sliding window of the most recent samples.
type Debouncer struct {
	history     *window
	stable      State
	changeCount int
	counts      EventCounts
	seeded      bool
}

// NewDebouncer creates a debouncer averaging the last windowSize samples.
func NewDebouncer(windowSize int) (*Debouncer, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	return &Debouncer{history: newWindow(windowSize)}, nil
}

// Seed fills the window before the first Update. It must be called once,
// with at least Cap() samples; only the newest Cap() are kept.
// The seed average establishes the first stable state, which is returned
// as the baseline event (count 0). The first change reported by Update
// afterwards, such as the rising edge after a LOW seed, has count 1.
// On error the debouncer is left untouched.
func (d *Debouncer) Seed(samples []Sample) (ChangeEvent, error) {
	if d.seeded {
		return ChangeEvent{}, fmt.Errorf("seed called twice: %w", ErrInvalidState)
	}
	if d.history.len() > 0 {
		return ChangeEvent{}, fmt.Errorf("seed after update: %w", ErrInvalidState)
	}
	n := d.history.capacity()
	if len(samples) < n {
		return ChangeEvent{}, fmt.Errorf("seed needs %d samples, got %d: %w", n, len(samples), ErrInvalidState)
	}

	for _, s := range samples[len(samples)-n:] {
		d.history.push(NewSample(int(s)))
	}
	d.seeded = true

	event, _ := d.evaluate()
	return event, nil
}

// Update pushes a sample and reports whether the debounced state changed.
// The first determination after construction always counts as a change.
// Update may run before Seed, averaging the partially filled window; Seed
// then fails with ErrInvalidState.
func (d *Debouncer) Update(sample Sample) (ChangeEvent, bool) {
	d.history.push(NewSample(int(sample)))
	return d.evaluate()
}

func (d *Debouncer) evaluate() (ChangeEvent, bool) {
	avg := d.history.average()
	current := StateLow
	if avg > Threshold {
		current = StateHigh
	}

	if current == d.stable {
		return ChangeEvent{}, false
	}

	event := ChangeEvent{
		Count:   d.changeCount,
		State:   current,
		Average: avg,
	}
	d.stable = current
	d.changeCount++
	if current == StateHigh {
		d.counts.High++
	} else {
		d.counts.Low++
	}
	return event, true
}

// State returns the current stable state, StateUnset before the first
// determination.
func (d *Debouncer) State() State {
	return d.stable
}

// Average returns the current window average.
func (d *Debouncer) Average() float64 {
	return d.history.average()
}

// Len returns the number of samples currently in the window.
func (d *Debouncer) Len() int {
	return d.history.len()
}

// Cap returns the window size.
func (d *Debouncer) Cap() int {
	return d.history.capacity()
}

// History returns the window contents, oldest first.
func (d *Debouncer) History() []Sample {
	return d.history.values()
}

// ChangeCount returns the number of state changes emitted so far.
func (d *Debouncer) ChangeCount() int {
	return d.changeCount
}

// Counts returns a copy of the per-state change counts.
func (d *Debouncer) Counts() EventCounts {
	return d.counts
}

// IsSeeded returns whether Seed has completed.
func (d *Debouncer) IsSeeded() bool {
	return d.seeded
}

// Heartbeat decides when periodic liveness reports are due.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
	interval  time.Duration
}

// NewHeartbeat creates a heartbeat timer. An interval <= 0 disables it.
func NewHeartbeat(startTime time.Time, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		startTime: startTime,
		last:      startTime,
		interval:  interval,
	}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if disabled or not yet due.
func (h *Heartbeat) Check(now time.Time, state State, counts EventCounts) *HeartbeatData {
	if h.interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < h.interval {
		return nil
	}

	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		State:     state,
		Counts:    counts,
	}
}
