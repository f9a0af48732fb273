package device

import (
	"encoding/json"
	"net/url"
	"strconv"

	"agrismart/internal/models"
)

// Command names understood by the controller firmware.
const (
	CmdGetStatus    = "get_status"
	CmdSetInterval  = "set_interval"
	CmdSetThreshold = "set_threshold"
	CmdAutoMode     = "auto_mode"
	CmdScheduleMode = "schedule_mode"
	CmdPumpOn       = "pump_on"
	CmdPumpOff      = "pump_off"
	CmdCamera       = "camera_control"
)

// Command is an outbound instruction for a device.
type Command interface {
	Name() string
}

// GetStatus asks the device for a full status push.
type GetStatus struct{}

// SetInterval changes the sensor reporting interval.
type SetInterval struct {
	Seconds int
}

// SetThreshold pushes watering and pH bounds.
type SetThreshold struct {
	Thresholds models.Thresholds
}

// AutoMode toggles automatic watering.
type AutoMode struct {
	Enable bool
}

// ScheduleMode toggles scheduled watering.
type ScheduleMode struct {
	Enable bool
}

// PumpOn starts a pump. Pump 0 means all pumps.
type PumpOn struct {
	Pump int
}

// PumpOff stops a pump. Pump 0 means all pumps.
type PumpOff struct {
	Pump int
}

// CameraSetting is an ESP32-CAM sensor register write. HTTP only.
type CameraSetting struct {
	Var   string
	Value int
}

func (GetStatus) Name() string     { return CmdGetStatus }
func (SetInterval) Name() string   { return CmdSetInterval }
func (SetThreshold) Name() string  { return CmdSetThreshold }
func (AutoMode) Name() string      { return CmdAutoMode }
func (ScheduleMode) Name() string  { return CmdScheduleMode }
func (PumpOn) Name() string        { return CmdPumpOn }
func (PumpOff) Name() string       { return CmdPumpOff }
func (CameraSetting) Name() string { return CmdCamera }

func (c GetStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
	}{CmdGetStatus})
}

func (c SetInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		Value   int    `json:"value"`
	}{CmdSetInterval, c.Seconds})
}

func (c SetThreshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command     string  `json:"command"`
		HumidityDry float64 `json:"humidity_dry"`
		HumidityWet float64 `json:"humidity_wet"`
		PHAcidic    float64 `json:"ph_acidic"`
		PHAlkaline  float64 `json:"ph_alkaline"`
	}{CmdSetThreshold, c.Thresholds.HumidityDry, c.Thresholds.HumidityWet, c.Thresholds.PHAcidic, c.Thresholds.PHAlkaline})
}

func (c AutoMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		Enable  bool   `json:"enable"`
	}{CmdAutoMode, c.Enable})
}

func (c ScheduleMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		Enable  bool   `json:"enable"`
	}{CmdScheduleMode, c.Enable})
}

func (c PumpOn) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		Pump    int    `json:"pump"`
	}{CmdPumpOn, c.Pump})
}

func (c PumpOff) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		Pump    int    `json:"pump"`
	}{CmdPumpOff, c.Pump})
}

// Query renders the /control query string.
func (c CameraSetting) Query() string {
	return "/control?var=" + url.QueryEscape(c.Var) + "&val=" + strconv.Itoa(c.Value)
}
