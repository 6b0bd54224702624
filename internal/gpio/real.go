//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// Chip is the GPIO character device the sensor line is requested from.
const Chip = "gpiochip0"

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealReader requests pin as an input with the given bias.
func NewRealReader(pin int, pull Pull) (*RealReader, error) {
	bias, err := biasOption(pull)
	if err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, bias)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}

	return &RealReader{
		chip: chip,
		line: line,
		pin:  pin,
	}, nil
}

func biasOption(pull Pull) (gpiocdev.LineReqOption, error) {
	switch pull {
	case PullDown:
		return gpiocdev.WithPullDown, nil
	case PullUp:
		return gpiocdev.WithPullUp, nil
	case PullNone:
		return gpiocdev.WithBiasDisabled, nil
	default:
		return nil, fmt.Errorf("unknown pull mode %q", pull)
	}
}

// Read returns the raw pin level. The LM393 DO output is not inverted here.
func (r *RealReader) Read() (logic.Sample, error) {
	v, err := r.line.Value()
	if err != nil {
		return logic.SampleLow, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return logic.NewSample(v), nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.pin, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
