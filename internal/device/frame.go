package device

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SensorFrame holds the sensor fields present in one inbound frame.
type SensorFrame struct {
	Temperature  *float64
	HumidityAir  *float64
	SoilMoisture map[int]float64
	SoilPH       map[int]float64
}

// ActuatorFrame holds the actuator fields present in one inbound frame.
type ActuatorFrame struct {
	Pumps        map[int]bool
	AutoMode     *bool
	ScheduleMode *bool
	PumpStatus   *string
}

// ThresholdFrame holds the threshold fields present in one inbound frame.
type ThresholdFrame struct {
	HumidityDry *float64
	HumidityWet *float64
	PHAcidic    *float64
	PHAlkaline  *float64
}

// Frame is one parsed device message. Nil fields were absent on the wire.
type Frame struct {
	Sensors      *SensorFrame
	Actuators    *ActuatorFrame
	Thresholds   *ThresholdFrame
	SensorOnline *bool
	RSSI         *int
	Interval     *int
	Uptime       *int64
	IPAddress    *string
	CurrentTime  *string
}

// ParseFrame decodes a WebSocket push or an HTTP /status body.
// Both the nested shape ({"sensors":{...}}) and the flat status shape
// ({"temperature":..,"pump1_active":..}) are accepted.
func ParseFrame(raw []byte) (Frame, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errNotObject, err)
	}
	if top == nil {
		return Frame{}, errNotObject
	}

	var f Frame
	for key, val := range top {
		if err := f.apply(key, val); err != nil {
			return Frame{}, err
		}
	}
	if f.empty() {
		return Frame{}, errNoKnownFields
	}
	return f, nil
}

func (f *Frame) apply(key string, val json.RawMessage) error {
	var err error
	switch key {
	case "sensors":
		return f.applyGroup(key, val, f.sensorField)
	case "actuators":
		return f.applyGroup(key, val, f.actuatorField)
	case "thresholds":
		return f.applyGroup(key, val, f.thresholdField)
	case "sensor_online":
		f.SensorOnline, err = decodeBool(val)
	case "rssi":
		f.RSSI, err = decodeInt(val)
	case "interval":
		f.Interval, err = decodeInt(val)
	case "uptime":
		var v *float64
		if v, err = decodeFloat(val); err == nil {
			u := int64(math.Round(*v))
			f.Uptime = &u
		}
	case "ip_address":
		f.IPAddress, err = decodeString(val)
	case "current_time":
		f.CurrentTime, err = decodeString(val)
	default:
		// flat /status shape
		for _, field := range []func(string, json.RawMessage) (bool, error){f.sensorField, f.actuatorField, f.thresholdField} {
			handled, ferr := field(key, val)
			if ferr != nil || handled {
				return ferr
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func (f *Frame) applyGroup(group string, val json.RawMessage, field func(string, json.RawMessage) (bool, error)) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(val, &obj); err != nil {
		return fmt.Errorf("field %q: %w", group, err)
	}
	for k, v := range obj {
		if _, err := field(k, v); err != nil {
			return fmt.Errorf("%s: %w", group, err)
		}
	}
	return nil
}

func (f *Frame) sensors() *SensorFrame {
	if f.Sensors == nil {
		f.Sensors = &SensorFrame{}
	}
	return f.Sensors
}

func (f *Frame) actuators() *ActuatorFrame {
	if f.Actuators == nil {
		f.Actuators = &ActuatorFrame{}
	}
	return f.Actuators
}

func (f *Frame) thresholds() *ThresholdFrame {
	if f.Thresholds == nil {
		f.Thresholds = &ThresholdFrame{}
	}
	return f.Thresholds
}

func (f *Frame) sensorField(key string, val json.RawMessage) (bool, error) {
	var err error
	switch key {
	case "temperature":
		f.sensors().Temperature, err = decodeFloat(val)
		return true, wrapField(key, err)
	case "humidity_air":
		f.sensors().HumidityAir, err = decodeFloat(val)
		return true, wrapField(key, err)
	case "ph_area_a":
		return true, wrapField(key, f.setZone(&f.sensors().SoilPH, 1, val))
	case "ph_area_b":
		return true, wrapField(key, f.setZone(&f.sensors().SoilPH, 2, val))
	}
	if zone, ok := zoneKey(key, "soil_moisture_", ""); ok {
		return true, wrapField(key, f.setZone(&f.sensors().SoilMoisture, zone, val))
	}
	if zone, ok := zoneKey(key, "soil_ph_", ""); ok {
		return true, wrapField(key, f.setZone(&f.sensors().SoilPH, zone, val))
	}
	return false, nil
}

func (f *Frame) setZone(dst *map[int]float64, zone int, val json.RawMessage) error {
	v, err := decodeFloat(val)
	if err != nil {
		return err
	}
	if *dst == nil {
		*dst = make(map[int]float64)
	}
	(*dst)[zone] = *v
	return nil
}

func (f *Frame) actuatorField(key string, val json.RawMessage) (bool, error) {
	var err error
	switch key {
	case "auto_mode", "auto_watering":
		f.actuators().AutoMode, err = decodeBool(val)
		return true, wrapField(key, err)
	case "schedule_mode", "scheduled_watering":
		f.actuators().ScheduleMode, err = decodeBool(val)
		return true, wrapField(key, err)
	case "pump_status":
		f.actuators().PumpStatus, err = decodeString(val)
		return true, wrapField(key, err)
	}
	pump, ok := zoneKey(key, "pump", "_active")
	if !ok {
		pump, ok = zoneKey(key, "pump", "")
	}
	if !ok {
		return false, nil
	}
	on, err := decodeBool(val)
	if err != nil {
		return true, wrapField(key, err)
	}
	a := f.actuators()
	if a.Pumps == nil {
		a.Pumps = make(map[int]bool)
	}
	a.Pumps[pump] = *on
	return true, nil
}

func (f *Frame) thresholdField(key string, val json.RawMessage) (bool, error) {
	var dst **float64
	switch key {
	case "humidity_dry":
		dst = &f.thresholds().HumidityDry
	case "humidity_wet":
		dst = &f.thresholds().HumidityWet
	case "ph_acidic":
		dst = &f.thresholds().PHAcidic
	case "ph_alkaline":
		dst = &f.thresholds().PHAlkaline
	default:
		return false, nil
	}
	v, err := decodeFloat(val)
	if err != nil {
		return true, wrapField(key, err)
	}
	*dst = v
	return true, nil
}

func (f *Frame) empty() bool {
	return f.Sensors == nil && f.Actuators == nil && f.Thresholds == nil &&
		f.SensorOnline == nil && f.RSSI == nil && f.Interval == nil && f.Uptime == nil &&
		f.IPAddress == nil && f.CurrentTime == nil
}

// zoneKey parses "<prefix><N><suffix>" with N >= 1.
func zoneKey(key, prefix, suffix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func wrapField(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("field %q: %w", key, err)
}

// Explicit JSON null decodes to the zero value.

func decodeFloat(raw json.RawMessage) (*float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = new(float64)
	}
	return v, nil
}

func decodeInt(raw json.RawMessage) (*int, error) {
	f, err := decodeFloat(raw)
	if err != nil {
		return nil, err
	}
	n := int(math.Round(*f))
	return &n, nil
}

func decodeBool(raw json.RawMessage) (*bool, error) {
	var v *bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = new(bool)
	}
	return v, nil
}

func decodeString(raw json.RawMessage) (*string, error) {
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = new(string)
	}
	return v, nil
}
