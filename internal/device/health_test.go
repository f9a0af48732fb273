package device

import (
	"testing"
	"time"
)

func TestSignalPercent(t *testing.T) {
	t.Parallel()

	cases := []struct{ rssi, want int }{
		{-100, 0},
		{-120, 0},
		{-75, 50},
		{-50, 100},
		{-30, 100},
		{0, 100},
	}
	for _, tc := range cases {
		if got := SignalPercent(tc.rssi); got != tc.want {
			t.Errorf("SignalPercent(%d) = %d, want %d", tc.rssi, got, tc.want)
		}
	}
}

func TestMonitor_Staleness(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	norm := NewNormalizer(2)
	norm.now = func() time.Time { return base }
	sel := NewSelector()
	mon := NewMonitor(norm, sel, func() ConnectionState { return ConnectionState{Kind: StateConnected} }, 30*time.Second)

	st := mon.Status()
	if st.Connected || !st.Stale || st.LastUpdateHuman != "never" || st.SecondsSinceLastUpdate != -1 {
		t.Fatalf("before first frame: %+v", st)
	}

	if err := norm.ApplyRaw([]byte(`{"rssi": -60}`)); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name      string
		age       time.Duration
		connected bool
	}{
		{"fresh", 5 * time.Second, true},
		{"at_cutoff", 30 * time.Second, true},
		{"stale", 31 * time.Second, false},
	}
	for _, tc := range cases {
		mon.now = func() time.Time { return base.Add(tc.age) }
		st := mon.Status()
		if st.Connected != tc.connected || st.Stale == tc.connected {
			t.Errorf("%s: connected=%v stale=%v", tc.name, st.Connected, st.Stale)
		}
		if st.SecondsSinceLastUpdate != int64(tc.age/time.Second) {
			t.Errorf("%s: seconds = %d", tc.name, st.SecondsSinceLastUpdate)
		}
		if st.SignalPercent != 80 || st.RSSI != -60 {
			t.Errorf("%s: signal = %d rssi = %d", tc.name, st.SignalPercent, st.RSSI)
		}
		if st.State != "connected" || st.Transport != "websocket" {
			t.Errorf("%s: state = %s transport = %s", tc.name, st.State, st.Transport)
		}
	}

	mon.now = func() time.Time { return base.Add(5 * time.Second) }
	if got := mon.Status().LastUpdateHuman; got != "5 seconds ago" {
		t.Errorf("human = %q, want %q", got, "5 seconds ago")
	}
}
