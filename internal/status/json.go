package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Sensor        SensorJSON   `json:"sensor"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON is the JSON representation of the debounced sensor.
type SensorJSON struct {
	State       string     `json:"state"`
	Average     float64    `json:"average"`
	WindowFill  int        `json:"window_fill"`
	Ready       bool       `json:"ready"`
	ChangeCount int        `json:"change_count"`
	Counts      CountsJSON `json:"change_counts"`
	LastChange  string     `json:"last_change,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// CountsJSON is the JSON representation of per-state change counts.
type CountsJSON struct {
	High int `json:"high"`
	Low  int `json:"low"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WindowSize  int    `json:"window_size"`
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Pin         int    `json:"pin"`
	Pull        string `json:"pull"`
	HTTPAddr    string `json:"http_addr"`
}

// StateOrUnknown maps the unset state to "UNKNOWN" for display.
func StateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Sensor: SensorJSON{
			State:       StateOrUnknown(string(snap.Sensor.State)),
			Average:     snap.Sensor.Average,
			WindowFill:  snap.Sensor.WindowFill,
			Ready:       snap.Sensor.Seeded,
			ChangeCount: snap.Sensor.ChangeCount,
			Counts: CountsJSON{
				High: snap.Sensor.Counts.High,
				Low:  snap.Sensor.Counts.Low,
			},
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Enabled:   snap.Config.Broker != "",
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
		},
		Config: ConfigJSON{
			WindowSize:  snap.Config.WindowSize,
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Pin:         snap.Config.Pin,
			Pull:        snap.Config.Pull,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.Sensor.LastChange.IsZero() {
		inner.Sensor.LastChange = snap.Sensor.LastChange.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
