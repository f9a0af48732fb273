package device

import (
	"time"

	"agrismart/internal/models"

	"github.com/dustin/go-humanize"
)

const defaultStaleAfter = 30 * time.Second

// HealthStatus is the link summary shown by the status indicator.
type HealthStatus struct {
	Connected              bool             `json:"connected"`
	Transport              models.Transport `json:"transport"`
	State                  string           `json:"state"`
	Stale                  bool             `json:"stale"`
	SecondsSinceLastUpdate int64            `json:"seconds_since_last_update"`
	LastUpdate             *time.Time       `json:"last_update,omitempty"`
	LastUpdateHuman        string           `json:"last_update_human"`
	RSSI                   int              `json:"rssi"`
	SignalPercent          int              `json:"signal_percent"`
	Capabilities           Capabilities     `json:"capabilities"`
}

// Monitor derives HealthStatus from the normalizer's last-update time.
type Monitor struct {
	norm       *Normalizer
	selector   *Selector
	state      func() ConnectionState
	staleAfter time.Duration
	now        func() time.Time
}

// NewMonitor builds a monitor. state reports the current session state.
func NewMonitor(norm *Normalizer, selector *Selector, state func() ConnectionState, staleAfter time.Duration) *Monitor {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Monitor{norm: norm, selector: selector, state: state, staleAfter: staleAfter, now: time.Now}
}

// Status is online when a frame from either transport arrived within the
// staleness window.
func (m *Monitor) Status() HealthStatus {
	snap := m.norm.Snapshot()
	st := HealthStatus{
		Transport:              m.selector.Active(),
		State:                  m.state().String(),
		RSSI:                   snap.Telemetry.RSSI,
		SignalPercent:          SignalPercent(snap.Telemetry.RSSI),
		Capabilities:           m.selector.Capabilities(),
		Stale:                  true,
		LastUpdateHuman:        "never",
		SecondsSinceLastUpdate: -1,
	}
	if snap.LastUpdate.IsZero() {
		return st
	}

	age := m.now().Sub(snap.LastUpdate)
	if age < 0 {
		age = 0
	}
	last := snap.LastUpdate
	st.LastUpdate = &last
	st.SecondsSinceLastUpdate = int64(age / time.Second)
	st.LastUpdateHuman = humanize.RelTime(snap.LastUpdate, m.now(), "ago", "from now")
	st.Stale = age > m.staleAfter
	st.Connected = !st.Stale
	return st
}

// SignalPercent maps RSSI in dBm to 0..100.
func SignalPercent(rssi int) int {
	p := (rssi + 100) * 2
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
