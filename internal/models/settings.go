package models

// Device kinds in the registered device list.
const (
	DeviceKindSprinkler = "sprinkler"
	DeviceKindCamera    = "camera"
)

// RegisteredDevice is an entry from the user's device list.
type RegisteredDevice struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// Settings are the locally cached values pushed to the device on connect.
type Settings struct {
	ControllerIP string     `json:"esp32_ip"`
	CameraIP     string     `json:"espcam_ip"`
	Interval     int        `json:"sensor_interval"`
	Thresholds   Thresholds `json:"thresholds"`
}
