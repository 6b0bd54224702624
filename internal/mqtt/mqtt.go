// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// Topic is the MQTT topic for sensor state changes.
const Topic = "sensor/lm393/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "sensor/lm393/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a debounced state change observed at the given time.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.ChangeEvent, at time.Time) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Sensor SensorPayload `json:"sensor"`
}

// SensorPayload contains the state change details.
type SensorPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	State     string  `json:"state"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
}

// EventChange is the event name used for every debounced state change.
const EventChange = "CHANGE"

// FormatPayload creates the JSON payload for a state change.
func FormatPayload(event logic.ChangeEvent, at time.Time) ([]byte, error) {
	payload := Payload{
		Sensor: SensorPayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Event:     EventChange,
			State:     string(event.State),
			Count:     event.Count,
			Average:   event.Average,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
