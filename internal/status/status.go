// Package status provides a thread-safe status tracker for the lm393-sensor daemon.
// It is read by HTTP handlers and used to build MQTT lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	WindowSize  int
	IntervalMs  int64
	HeartbeatMs int64
	Pin         int
	Pull        string
	Broker      string // empty = MQTT disabled
	HTTPAddr    string
}

// Sensor is the debouncer state at the last tick.
type Sensor struct {
	State       logic.State
	Average     float64
	WindowFill  int
	Seeded      bool
	ChangeCount int
	Counts      logic.EventCounts
	LastChange  time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Sensor        Sensor
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the debouncer's current state.
// Called from runLoop on every tick.
func (t *Tracker) Update(d *logic.Debouncer) {
	t.mu.Lock()
	t.snap.Sensor.State = d.State()
	t.snap.Sensor.Average = d.Average()
	t.snap.Sensor.WindowFill = d.Len()
	t.snap.Sensor.Seeded = d.IsSeeded()
	t.snap.Sensor.ChangeCount = d.ChangeCount()
	t.snap.Sensor.Counts = d.Counts()
	t.mu.Unlock()
}

// RecordChange stores the time of the most recent state change.
func (t *Tracker) RecordChange(at time.Time) {
	t.mu.Lock()
	t.snap.Sensor.LastChange = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
