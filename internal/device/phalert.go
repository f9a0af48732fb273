package device

import (
	"fmt"
	"sort"
	"sync"

	"agrismart/internal/models"
)

// PHStatus places a soil pH reading relative to the configured band.
type PHStatus string

const (
	PHOptimal  PHStatus = "optimal"
	PHAcidic   PHStatus = "acidic"
	PHAlkaline PHStatus = "alkaline"
)

// ClassifyPH compares ph with the acidic and alkaline limits. Readings on a
// limit are optimal.
func ClassifyPH(ph float64, t models.Thresholds) PHStatus {
	switch {
	case ph < t.PHAcidic:
		return PHAcidic
	case ph > t.PHAlkaline:
		return PHAlkaline
	default:
		return PHOptimal
	}
}

// phWatch raises one alert per zone each time its pH leaves the optimal
// band, and forgets the alert once the zone is back inside it.
type phWatch struct {
	mu   sync.Mutex
	last map[int]PHStatus
}

func newPHWatch() *phWatch {
	return &phWatch{last: make(map[int]PHStatus)}
}

// check returns the alerts st calls for, ordered by zone. Zones that never
// reported a pH are skipped.
func (w *phWatch) check(host string, st models.DeviceState) []Notification {
	readings := st.Telemetry.SoilPH
	if len(readings) == 0 {
		return nil
	}
	zones := make([]int, 0, len(readings))
	for z := range readings {
		zones = append(zones, z)
	}
	sort.Ints(zones)

	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Notification
	for _, z := range zones {
		ph := readings[z]
		status := ClassifyPH(ph, st.Thresholds)
		if status == PHOptimal {
			delete(w.last, z)
			continue
		}
		if w.last[z] == status {
			continue
		}
		w.last[z] = status
		out = append(out, phNotification(host, z, ph, status, st.Thresholds))
	}
	return out
}

func phNotification(host string, zone int, ph float64, status PHStatus, t models.Thresholds) Notification {
	n := Notification{Host: host, Zone: zone}
	switch status {
	case PHAcidic:
		n.Level = LevelError
		n.Message = fmt.Sprintf("zone %d soil too acidic: pH %.1f (limit %.1f); add lime or dolomite",
			zone, ph, t.PHAcidic)
	default:
		n.Level = LevelWarning
		n.Message = fmt.Sprintf("zone %d soil too alkaline: pH %.1f (limit %.1f); add sulfur or compost",
			zone, ph, t.PHAlkaline)
	}
	return n
}
