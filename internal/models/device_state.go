package models

import "time"

// Pump status values reported to dashboards.
const (
	PumpStatusOn  = "on"
	PumpStatusOff = "off"
)

// Telemetry is the last known sensor picture of a device.
// Zone maps are keyed 1..N.
type Telemetry struct {
	Temperature  float64         `json:"temperature"`
	HumidityAir  float64         `json:"humidity_air"`
	SoilMoisture map[int]float64 `json:"soil_moisture"`
	SoilPH       map[int]float64 `json:"soil_ph,omitempty"`
	SensorOnline bool            `json:"sensor_online"`
	RSSI         int             `json:"rssi"`
	Interval     int             `json:"interval"` // seconds
	Uptime       int64           `json:"uptime"`   // seconds
	IPAddress    string          `json:"ip_address,omitempty"`
	CurrentTime  string          `json:"current_time,omitempty"`
}

// Clone returns a deep copy.
func (t Telemetry) Clone() Telemetry {
	out := t
	out.SoilMoisture = cloneZones(t.SoilMoisture)
	out.SoilPH = cloneZones(t.SoilPH)
	return out
}

// Actuators is the pump and watering mode state of a device.
type Actuators struct {
	Pumps        map[int]bool `json:"pumps"`
	AutoMode     bool         `json:"auto_mode"`
	ScheduleMode bool         `json:"schedule_mode"`
	// Confirmed is false while an optimistic write awaits the next device frame.
	Confirmed bool `json:"confirmed"`
}

// PumpStatus is "on" if any pump is active.
func (a Actuators) PumpStatus() string {
	for _, on := range a.Pumps {
		if on {
			return PumpStatusOn
		}
	}
	return PumpStatusOff
}

// Clone returns a deep copy.
func (a Actuators) Clone() Actuators {
	out := a
	out.Pumps = make(map[int]bool, len(a.Pumps))
	for k, v := range a.Pumps {
		out.Pumps[k] = v
	}
	return out
}

// Thresholds are the watering and soil pH bounds shared with the device.
type Thresholds struct {
	HumidityDry float64 `json:"humidity_dry"`
	HumidityWet float64 `json:"humidity_wet"`
	PHAcidic    float64 `json:"ph_acidic"`
	PHAlkaline  float64 `json:"ph_alkaline"`
}

// DefaultThresholds mirrors the firmware defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{HumidityDry: 50, HumidityWet: 70, PHAcidic: 5.5, PHAlkaline: 7.5}
}

// Valid reports whether dry < wet and acidic < alkaline.
func (t Thresholds) Valid() bool {
	return t.HumidityDry < t.HumidityWet && t.PHAcidic < t.PHAlkaline
}

// DeviceState is the merged view of one device.
type DeviceState struct {
	Telemetry  Telemetry  `json:"telemetry"`
	Actuators  Actuators  `json:"actuators"`
	PumpStatus string     `json:"pump_status"`
	Thresholds Thresholds `json:"thresholds"`
	LastUpdate time.Time  `json:"last_update"`
}

func cloneZones(in map[int]float64) map[int]float64 {
	if in == nil {
		return nil
	}
	out := make(map[int]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
