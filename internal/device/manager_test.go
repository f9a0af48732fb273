package device

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"

	"github.com/gorilla/websocket"
)

type staticSettings struct {
	s models.Settings
}

func (s staticSettings) DeviceSettings(ctx context.Context) (models.Settings, error) {
	return s.s, nil
}

type noteLog struct {
	mu    sync.Mutex
	notes []Notification
}

func (l *noteLog) Notify(n Notification) {
	l.mu.Lock()
	l.notes = append(l.notes, n)
	l.mu.Unlock()
}

func (l *noteLog) has(kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func (l *noteLog) hasLevel(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.notes {
		if n.Level == level {
			return true
		}
	}
	return false
}

func refuseDial(ctx context.Context, url string) (Conn, error) {
	return nil, errors.New("connection refused")
}

func TestManager_FallsBackToHTTPPolling(t *testing.T) {
	t.Parallel()

	var statusCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			statusCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"temperature": 27, "soil_moisture_1": 44, "pump1_active": false, "rssi": -70}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	notes := &noteLog{}
	m := NewManager(ManagerConfig{
		Device:  endpointFor(t, srv),
		Zones:   2,
		Session: fastSession(),
		Poll:    PollerConfig{Interval: 20 * time.Millisecond, MaxRetries: 3},
		Dial:    refuseDial,
	}, nil, notes, logger.Nop())

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	waitFor(t, 3*time.Second, func() bool { return statusCalls.Load() >= 3 }, "HTTP status polling")

	if m.State().Kind != StateFailed {
		t.Fatalf("session state = %v, want failed", m.State())
	}
	if m.Endpoint().Transport != models.TransportHTTP {
		t.Fatalf("transport = %s, want http", m.Endpoint().Transport)
	}
	st := m.Snapshot()
	if st.Telemetry.Temperature != 27 || st.Telemetry.SoilMoisture[1] != 44 {
		t.Fatalf("state not fed by polling: %+v", st.Telemetry)
	}
	h := m.Health()
	if !h.Connected || h.Transport != models.TransportHTTP || h.SignalPercent != 60 {
		t.Fatalf("health = %+v", h)
	}
	waitFor(t, time.Second, func() bool { return notes.hasLevel(LevelWarning) }, "fallback notification")
}

func TestManager_OpenPushesStatusAndSettings(t *testing.T) {
	t.Parallel()

	commands := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd struct {
				Command string `json:"command"`
			}
			_ = json.Unmarshal(data, &cmd)
			commands <- cmd.Command
			if cmd.Command == CmdGetStatus {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"sensors":{"temperature":19},"actuators":{"pump1":true}}`))
			}
		}
	}))
	defer srv.Close()

	settings := staticSettings{s: models.Settings{
		Interval:   15,
		Thresholds: models.Thresholds{HumidityDry: 40, HumidityWet: 65, PHAcidic: 6, PHAlkaline: 7},
	}}
	var states []models.DeviceState
	var mu sync.Mutex
	m := NewManager(ManagerConfig{Device: endpointFor(t, srv), Zones: 2, Session: fastSession()}, settings, nil, logger.Nop())
	m.AddObserver(Observer{State: func(st models.DeviceState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var got []string
	for len(got) < 3 {
		select {
		case c := <-commands:
			got = append(got, c)
		case <-time.After(3 * time.Second):
			t.Fatalf("commands so far: %v", got)
		}
	}
	if got[0] != CmdGetStatus {
		t.Fatalf("first command = %s, want get_status", got[0])
	}
	rest := map[string]bool{got[1]: true, got[2]: true}
	if !rest[CmdSetInterval] || !rest[CmdSetThreshold] {
		t.Fatalf("settings push = %v", got[1:])
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0
	}, "state observer")
	st := m.Snapshot()
	if st.Telemetry.Temperature != 19 || st.PumpStatus != "on" {
		t.Fatalf("snapshot = %+v", st)
	}
	if m.Endpoint().Transport != models.TransportWebSocket {
		t.Fatalf("transport = %s", m.Endpoint().Transport)
	}

	res := m.Dispatch(context.Background(), AutoMode{Enable: true})
	if !res.Success {
		t.Fatalf("dispatch over socket failed: %v", res.Err)
	}
	select {
	case c := <-commands:
		if c != CmdAutoMode {
			t.Fatalf("command = %s, want auto_mode", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto_mode never reached the device")
	}
}

func TestManager_PollExhaustionThenRecovery(t *testing.T) {
	t.Parallel()

	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			pings.Add(1)
			_, _ = io.WriteString(w, "pong")
		default:
			http.Error(w, "sensor bus error", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	notes := &noteLog{}
	m := NewManager(ManagerConfig{
		Device:        endpointFor(t, srv),
		Session:       fastSession(),
		Poll:          PollerConfig{Interval: 5 * time.Millisecond, MaxRetries: 3},
		RecoveryDelay: 20 * time.Millisecond,
		RecoveryRetry: 10 * time.Millisecond,
		Dial:          refuseDial,
	}, nil, notes, logger.Nop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	waitFor(t, 3*time.Second, func() bool { return notes.has(KindMaxRetriesExceeded) }, "max retries notification")
	waitFor(t, 3*time.Second, func() bool { return pings.Load() >= 1 }, "recovery ping")
	waitFor(t, 3*time.Second, func() bool { return notes.hasLevel(LevelSuccess) }, "recovery notification")
}

func TestManager_TestConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			_, _ = io.WriteString(w, "pong")
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewManager(ManagerConfig{
		Device:  endpointFor(t, srv),
		Session: SessionConfig{MaxAttempts: 1, BackoffStep: time.Hour, BackoffMax: time.Hour},
		Dial:    refuseDial,
	}, nil, nil, logger.Nop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	res := m.TestConnection(context.Background())
	if !res.OK || res.Transport != models.TransportHTTP {
		t.Fatalf("probe = %+v, want ok over http", res)
	}
}

func TestManager_SetEndpoint(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerConfig{
		Device:  models.Endpoint{Host: "192.0.2.10", WSPort: 81},
		Session: SessionConfig{MaxAttempts: 1, BackoffStep: time.Hour, BackoffMax: time.Hour},
		Poll:    PollerConfig{Interval: time.Hour},
		Dial:    refuseDial,
	}, nil, nil, logger.Nop())

	if err := m.SetEndpoint("192.0.2.11"); err == nil {
		t.Fatal("SetEndpoint before Start should fail")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.SetEndpoint(""); err == nil {
		t.Fatal("empty host should be rejected")
	}
	if err := m.SetEndpoint("192.0.2.11"); err != nil {
		t.Fatal(err)
	}
	if got := m.Endpoint().Host; got != "192.0.2.11" {
		t.Fatalf("host = %s", got)
	}
}

func TestManager_StatusWithoutTelemetryIsNotMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		contentType   string
		body          string
		wantMalformed bool
	}{
		{"json_ack", "application/json", `{"success": true}`, false},
		{"plain_text", "text/plain", "OK", false},
		{"empty", "text/plain", "", false},
		{"json_array", "application/json", `[1, 2]`, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var statusCalls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/status" {
					http.NotFound(w, r)
					return
				}
				statusCalls.Add(1)
				w.Header().Set("Content-Type", tc.contentType)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			m := NewManager(ManagerConfig{
				Device:  endpointFor(t, srv),
				Session: fastSession(),
				Poll:    PollerConfig{Interval: 10 * time.Millisecond, MaxRetries: 50},
				Dial:    refuseDial,
			}, nil, nil, logger.Nop())
			var malformed atomic.Int32
			m.AddObserver(Observer{Malformed: func() { malformed.Add(1) }})
			if err := m.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer m.Close()

			waitFor(t, 3*time.Second, func() bool { return statusCalls.Load() >= 3 }, "status polls")
			if tc.wantMalformed {
				waitFor(t, time.Second, func() bool { return malformed.Load() > 0 }, "malformed count")
				return
			}
			if n := malformed.Load(); n != 0 {
				t.Fatalf("malformed = %d, want 0", n)
			}
		})
	}
}
