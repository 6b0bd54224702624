// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// Reader reads the instantaneous state of the sensor's digital output.
type Reader interface {
	// Read returns the current raw sample (0 or 1).
	Read() (logic.Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the LM393 DO output is wired to.
const DefaultPin = 17

// Pull selects the input bias applied to the pin.
type Pull string

const (
	PullDown Pull = "down"
	PullUp   Pull = "up"
	PullNone Pull = "none"
)

// ParsePull converts a flag value to a Pull mode.
func ParsePull(s string) (Pull, error) {
	switch p := Pull(strings.ToLower(strings.TrimSpace(s))); p {
	case PullDown, PullUp, PullNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown pull mode %q (want up, down or none)", s)
	}
}
