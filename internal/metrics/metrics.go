// Package metrics exposes Prometheus collectors for the sensor loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

var (
	// SamplesTotal counts raw samples read, by value.
	SamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lm393_samples_total",
			Help: "Total number of raw sensor samples read",
		},
		[]string{"value"},
	)

	// ReadErrors counts failed GPIO reads.
	ReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lm393_gpio_read_errors_total",
			Help: "Total number of failed GPIO reads",
		},
	)

	// StateChanges counts debounced state changes, by new state.
	StateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lm393_state_changes_total",
			Help: "Total number of debounced state changes",
		},
		[]string{"state"},
	)

	// WindowAverage is the current sliding window average.
	WindowAverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lm393_window_average",
			Help: "Current average of the sample window",
		},
	)

	// StableState is 1 while HIGH, 0 while LOW, -1 before the first determination.
	StableState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lm393_stable_state",
			Help: "Debounced sensor state (1 HIGH, 0 LOW, -1 unknown)",
		},
	)

	// PublishErrors counts failed MQTT publishes, by kind.
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lm393_mqtt_publish_errors_total",
			Help: "Total number of failed MQTT publishes",
		},
		[]string{"kind"},
	)
)

// ObserveSample records a raw sample.
func ObserveSample(s logic.Sample) {
	if s == logic.SampleHigh {
		SamplesTotal.WithLabelValues("1").Inc()
		return
	}
	SamplesTotal.WithLabelValues("0").Inc()
}

// ObserveChange records a debounced state change.
func ObserveChange(e logic.ChangeEvent) {
	StateChanges.WithLabelValues(string(e.State)).Inc()
}

// ObserveWindow records the debouncer's current average and state.
func ObserveWindow(average float64, state logic.State) {
	WindowAverage.Set(average)
	StableState.Set(stateValue(state))
}

func stateValue(s logic.State) float64 {
	switch s {
	case logic.StateHigh:
		return 1
	case logic.StateLow:
		return 0
	default:
		return -1
	}
}
