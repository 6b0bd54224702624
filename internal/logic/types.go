// Package logic contains pure business logic for debouncing a binary sensor.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindowSize is the number of samples averaged per decision.
const DefaultWindowSize = 10

// Threshold is the window average that must be strictly exceeded for HIGH.
const Threshold = 0.5

// ErrInvalidState is returned when the debouncer is used out of order.
var ErrInvalidState = errors.New("invalid debouncer state")

// Sample is a single raw binary reading.
type Sample uint8

const (
	SampleLow  Sample = 0
	SampleHigh Sample = 1
)

// NewSample normalizes a raw pin value: zero is LOW, anything else is HIGH.
func NewSample(v int) Sample {
	if v != 0 {
		return SampleHigh
	}
	return SampleLow
}

// State represents the debounced state of the sensor.
type State string

const (
	StateHigh State = "HIGH"
	StateLow  State = "LOW"

	// StateUnset is held until the first average has been computed.
	StateUnset State = ""
)

// ChangeEvent is emitted each time the debounced state flips.
type ChangeEvent struct {
	Count   int     // ChangeCount before the increment, starting at 0
	State   State   // new stable state
	Average float64 // window average that triggered the change
}

// String renders the event as a log line, e.g. "3 Sensor HIGH (average)".
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%d Sensor %s (average)", e.Count, e.State)
}

// EventCounts tracks the number of changes into each state since startup.
type EventCounts struct {
	High int
	Low  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    EventCounts
}
