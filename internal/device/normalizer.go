package device

import (
	"sync"
	"time"

	"agrismart/internal/models"
)

const defaultInterval = 5 // seconds, firmware default

// Normalizer merges inbound frames from either transport into one DeviceState.
// A merge is computed on a copy and swapped in under the lock, so readers
// never see a partially applied frame.
type Normalizer struct {
	mu    sync.RWMutex
	state models.DeviceState
	now   func() time.Time
	seq   uint64 // authoritative merges so far, guarded by mu

	// onApply runs after every authoritative merge, outside mu. pubMu
	// serializes callbacks; a merge overtaken by a newer one is not published.
	pubMu     sync.Mutex
	published uint64
	onApply   func(models.DeviceState)
}

// NewNormalizer returns a normalizer whose model has defaults for zones 1..zones.
func NewNormalizer(zones int) *Normalizer {
	if zones < 1 {
		zones = 1
	}
	tel := models.Telemetry{
		SoilMoisture: make(map[int]float64, zones),
		Interval:     defaultInterval,
	}
	pumps := make(map[int]bool, zones)
	for z := 1; z <= zones; z++ {
		tel.SoilMoisture[z] = 0
		pumps[z] = false
	}
	act := models.Actuators{Pumps: pumps, Confirmed: true}
	return &Normalizer{
		state: models.DeviceState{
			Telemetry:  tel,
			Actuators:  act,
			PumpStatus: act.PumpStatus(),
			Thresholds: models.DefaultThresholds(),
		},
		now: time.Now,
	}
}

// OnApply registers a callback for merged state. Not safe to call concurrently with ApplyFrame.
func (n *Normalizer) OnApply(fn func(models.DeviceState)) {
	n.onApply = fn
}

// ApplyRaw parses and merges one payload. Malformed payloads change nothing.
func (n *Normalizer) ApplyRaw(raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		return err
	}
	n.ApplyFrame(f)
	return nil
}

// ApplyFrame merges the fields present in f. Absent fields keep their last known value.
func (n *Normalizer) ApplyFrame(f Frame) {
	n.mu.Lock()
	next := cloneState(n.state)
	mergeFrame(&next, f)
	next.PumpStatus = next.Actuators.PumpStatus()
	next.LastUpdate = n.now()
	n.state = next
	n.seq++
	seq := n.seq
	n.mu.Unlock()

	n.publish(seq, next)
}

// publish hands st to onApply unless a later merge was already published.
// st must not be shared with n.state.
func (n *Normalizer) publish(seq uint64, st models.DeviceState) bool {
	n.pubMu.Lock()
	defer n.pubMu.Unlock()
	if seq <= n.published {
		return false
	}
	n.published = seq
	if n.onApply != nil {
		n.onApply(cloneState(st))
	}
	return true
}

// ApplyOptimistic records a pending actuator change ahead of device confirmation.
// It does not touch LastUpdate.
func (n *Normalizer) ApplyOptimistic(mutate func(*models.Actuators)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := cloneState(n.state)
	mutate(&next.Actuators)
	next.Actuators.Confirmed = false
	next.PumpStatus = next.Actuators.PumpStatus()
	n.state = next
}

// SetThresholds replaces the local threshold model, e.g. after a settings save.
func (n *Normalizer) SetThresholds(t models.Thresholds) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := cloneState(n.state)
	next.Thresholds = t
	n.state = next
}

// Snapshot returns a deep copy of the current model.
func (n *Normalizer) Snapshot() models.DeviceState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return cloneState(n.state)
}

// LastUpdate is the time of the last authoritative frame, zero before the first.
func (n *Normalizer) LastUpdate() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.LastUpdate
}

func cloneState(s models.DeviceState) models.DeviceState {
	out := s
	out.Telemetry = s.Telemetry.Clone()
	out.Actuators = s.Actuators.Clone()
	return out
}

func mergeFrame(st *models.DeviceState, f Frame) {
	tel := &st.Telemetry
	if s := f.Sensors; s != nil {
		setFloat(&tel.Temperature, s.Temperature)
		setFloat(&tel.HumidityAir, s.HumidityAir)
		tel.SoilMoisture = mergeZones(tel.SoilMoisture, s.SoilMoisture)
		tel.SoilPH = mergeZones(tel.SoilPH, s.SoilPH)
	}
	if f.SensorOnline != nil {
		tel.SensorOnline = *f.SensorOnline
	}
	if f.RSSI != nil {
		tel.RSSI = *f.RSSI
	}
	if f.Interval != nil {
		tel.Interval = *f.Interval
	}
	if f.Uptime != nil {
		tel.Uptime = *f.Uptime
	}
	if f.IPAddress != nil {
		tel.IPAddress = *f.IPAddress
	}
	if f.CurrentTime != nil {
		tel.CurrentTime = *f.CurrentTime
	}

	if a := f.Actuators; a != nil {
		act := &st.Actuators
		if act.Pumps == nil {
			act.Pumps = make(map[int]bool)
		}
		for pump, on := range a.Pumps {
			act.Pumps[pump] = on
		}
		if len(a.Pumps) == 0 && a.PumpStatus != nil {
			on := *a.PumpStatus == models.PumpStatusOn
			for pump := range act.Pumps {
				act.Pumps[pump] = on
			}
		}
		if a.AutoMode != nil {
			act.AutoMode = *a.AutoMode
		}
		if a.ScheduleMode != nil {
			act.ScheduleMode = *a.ScheduleMode
		}
		act.Confirmed = true
	}

	if t := f.Thresholds; t != nil {
		setFloat(&st.Thresholds.HumidityDry, t.HumidityDry)
		setFloat(&st.Thresholds.HumidityWet, t.HumidityWet)
		setFloat(&st.Thresholds.PHAcidic, t.PHAcidic)
		setFloat(&st.Thresholds.PHAlkaline, t.PHAlkaline)
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func mergeZones(dst, src map[int]float64) map[int]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[int]float64, len(src))
	}
	for zone, v := range src {
		dst[zone] = v
	}
	return dst
}
