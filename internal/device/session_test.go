package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func fastSession() SessionConfig {
	return SessionConfig{MaxAttempts: 5, BackoffStep: time.Millisecond, BackoffMax: 3 * time.Millisecond}
}

func TestSession_OpenSendAndReceive(t *testing.T) {
	t.Parallel()

	commands := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd map[string]any
		_ = json.Unmarshal(data, &cmd)
		commands <- cmd

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"sensors":{"temperature":22.5}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	frames := make(chan []byte, 4)
	var s *Session
	s = NewSession(endpointFor(t, srv), fastSession(), nil, SessionHooks{
		OnOpen:    func() { s.Send(GetStatus{}) },
		OnMessage: func(data []byte) { frames <- data },
	}, logger.Nop())
	defer s.Close()

	s.Connect(context.Background())

	select {
	case cmd := <-commands:
		if cmd["command"] != "get_status" {
			t.Fatalf("first command = %v, want get_status", cmd)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received get_status")
	}

	select {
	case data := <-frames:
		f, err := ParseFrame(data)
		if err != nil || *f.Sensors.Temperature != 22.5 {
			t.Fatalf("frame = %s, err = %v", data, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no frame delivered")
	}

	if got := s.State().Kind; got != StateConnected {
		t.Fatalf("state = %v, want connected", got)
	}

	s.Close()
	if got := s.State().Kind; got != StateDisconnected {
		t.Fatalf("state after Close = %v, want disconnected", got)
	}
	if s.Send(AutoMode{Enable: true}) {
		t.Fatal("Send after Close should return false")
	}
}

func TestSession_SendWhenNotOpen(t *testing.T) {
	t.Parallel()

	s := NewSession(models.Endpoint{Host: "127.0.0.1", WSPort: 1}, SessionConfig{}, nil, SessionHooks{}, logger.Nop())
	defer s.Close()

	if s.Send(PumpOn{Pump: 0}) {
		t.Fatal("Send on a never-connected session should return false")
	}
}

func TestSession_FailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	refuse := func(ctx context.Context, url string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	log := &stateLog{}
	failed := make(chan struct{})
	s := NewSession(models.Endpoint{Host: "192.0.2.1", WSPort: 81}, fastSession(), refuse, SessionHooks{
		OnState:  log.add,
		OnFailed: func() { close(failed) },
	}, logger.Nop())
	defer s.Close()

	s.Connect(context.Background())

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatalf("session never failed; states: %v", log.snapshot())
	}

	if got := dials.Load(); got != 6 {
		t.Fatalf("dials = %d, want 6 (initial + 5 retries)", got)
	}
	if s.State().Kind != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}

	var attempts []int
	for _, st := range log.snapshot() {
		if st.Kind == StateReconnecting {
			attempts = append(attempts, st.Attempt)
			if want := Backoff(st.Attempt, time.Millisecond, 3*time.Millisecond); st.Backoff != want {
				t.Errorf("attempt %d backoff = %v, want %v", st.Attempt, st.Backoff, want)
			}
		}
	}
	if len(attempts) != 5 || attempts[0] != 1 || attempts[4] != 5 {
		t.Fatalf("reconnect attempts = %v, want 1..5", attempts)
	}

	time.Sleep(50 * time.Millisecond)
	if got := dials.Load(); got != 6 {
		t.Fatalf("reconnects continued after failure: dials = %d", got)
	}
}

func TestSession_ConnectAfterFailedResetsAttempts(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	refuse := func(ctx context.Context, url string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}
	failures := make(chan struct{}, 2)
	cfg := SessionConfig{MaxAttempts: 1, BackoffStep: time.Millisecond, BackoffMax: time.Millisecond}
	s := NewSession(models.Endpoint{Host: "192.0.2.1", WSPort: 81}, cfg, refuse, SessionHooks{
		OnFailed: func() { failures <- struct{}{} },
	}, logger.Nop())
	defer s.Close()

	s.Connect(context.Background())
	<-failures
	s.Connect(context.Background())
	select {
	case <-failures:
	case <-time.After(3 * time.Second):
		t.Fatal("second cycle never failed")
	}
	if got := dials.Load(); got != 4 {
		t.Fatalf("dials = %d, want 4", got)
	}
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	refuse := func(ctx context.Context, url string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}
	log := &stateLog{}
	cfg := SessionConfig{MaxAttempts: 5, BackoffStep: 100 * time.Millisecond, BackoffMax: time.Second}
	s := NewSession(models.Endpoint{Host: "192.0.2.1", WSPort: 81}, cfg, refuse, SessionHooks{OnState: log.add}, logger.Nop())

	s.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return s.State().Kind == StateReconnecting }, "reconnecting state")

	s.Close()
	time.Sleep(250 * time.Millisecond)

	if got := dials.Load(); got != 1 {
		t.Fatalf("dials = %d after Close, want 1", got)
	}
	if s.State().Kind != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", s.State())
	}
}

func TestSession_ReconnectsAfterDrop(t *testing.T) {
	t.Parallel()

	var accepted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if accepted.Add(1) == 1 {
			return // drop the first connection immediately
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	log := &stateLog{}
	opens := make(chan struct{}, 4)
	s := NewSession(endpointFor(t, srv), fastSession(), nil, SessionHooks{
		OnState: log.add,
		OnOpen:  func() { opens <- struct{}{} },
	}, logger.Nop())
	defer s.Close()

	s.Connect(context.Background())
	for i := 0; i < 2; i++ {
		select {
		case <-opens:
		case <-time.After(3 * time.Second):
			t.Fatalf("open %d never happened; states: %v", i+1, log.snapshot())
		}
	}

	sawReconnect := false
	for _, st := range log.snapshot() {
		if st.Kind == StateReconnecting && st.Attempt == 1 {
			sawReconnect = true
		}
	}
	if !sawReconnect {
		t.Fatalf("expected a reconnect after the drop; states: %v", log.snapshot())
	}
	if s.State().Kind != StateConnected {
		t.Fatalf("state = %v, want connected", s.State())
	}
}
