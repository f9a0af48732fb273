package models

import "time"

// Event types written to the device event log.
const (
	EventConnection = "CONNECTION"
	EventWarning    = "WARNING"
	EventError      = "ERROR"
	EventCommand    = "COMMAND"
	EventTelemetry  = "TELEMETRY"
)

// DeviceEvent is a single log entry.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTION | WARNING | ERROR | COMMAND | TELEMETRY
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
