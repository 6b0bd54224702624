package mqtt

import (
	"time"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(logic.ChangeEvent, time.Time) error {
	return nil
}

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error {
	return nil
}

// Close does nothing.
func (NopPublisher) Close() error {
	return nil
}

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool {
	return false
}
