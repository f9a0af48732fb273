package service

import (
	"time"

	"agrismart/internal/device"
	"agrismart/internal/models"
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CONNECTION", "WARNING", "ERROR", "COMMAND", "TELEMETRY"
	// Limit caps the result to the newest rows. Zero means DefaultLogLimit.
	Limit int
}

// SettingsUpdate carries the fields a save touches. Nil fields are left as stored.
type SettingsUpdate struct {
	ControllerIP *string
	CameraIP     *string
	Interval     *int
	Thresholds   *models.Thresholds
}

// SaveResult reports what a save did beyond persisting.
type SaveResult struct {
	Settings models.Settings `json:"settings"`
	// Delivered lists commands the device accepted now.
	Delivered []string `json:"delivered"`
	// Deferred lists commands that will be pushed on the next WebSocket open.
	Deferred []string `json:"deferred"`
}

// CameraOutcome is the result of a camera control request.
type CameraOutcome struct {
	Control string `json:"control"`
	Value   int    `json:"value"`
	// Debounced is true when the write was queued behind the slider delay.
	Debounced bool          `json:"debounced"`
	Result    device.Result `json:"result"`
}

// StateView is the dashboard's state document.
type StateView struct {
	models.DeviceState
	Endpoint models.Endpoint     `json:"endpoint"`
	Health   device.HealthStatus `json:"health"`
}

// ConnectionView is the status-indicator document.
type ConnectionView struct {
	device.HealthStatus
	Device models.Endpoint `json:"device"`
	Camera models.Endpoint `json:"camera"`
}
