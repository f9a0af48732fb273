// internal/mqtt/bridge_test.go
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	got chan published
	err error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{got: make(chan published, 8)}
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.got <- published{topic: topic, payload: payload}
	return f.err
}

func (f *fakePublisher) next(t *testing.T) published {
	t.Helper()
	select {
	case p := <-f.got:
		return p
	case <-time.After(time.Second):
		t.Fatal("nothing published")
		return published{}
	}
}

func TestNewBridge_Topics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, prefix, device string
		wantState, wantConn  string
	}{
		{"plain", "agrismart", "field-1", "agrismart/field-1/state", "agrismart/field-1/connection"},
		{"trims slashes", "/farm/", "/north/", "farm/north/state", "farm/north/connection"},
		{"empty prefix", "", "field-2", "agrismart/field-2/state", "agrismart/field-2/connection"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := NewBridge(newFakePublisher(), tc.prefix, tc.device, logger.Nop())
			if b.StateTopic() != tc.wantState || b.ConnectionTopic() != tc.wantConn {
				t.Fatalf("topics = %q, %q", b.StateTopic(), b.ConnectionTopic())
			}
		})
	}
}

func TestBridge_PublishesState(t *testing.T) {
	t.Parallel()

	pub := newFakePublisher()
	b := NewBridge(pub, "agrismart", "field-1", logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	b.Observer().State(models.DeviceState{
		Telemetry:  models.Telemetry{Temperature: 24.5, SoilMoisture: map[int]float64{1: 40}},
		Actuators:  models.Actuators{Pumps: map[int]bool{1: true}},
		PumpStatus: models.PumpStatusOn,
	})

	p := pub.next(t)
	if p.topic != "agrismart/field-1/state" {
		t.Fatalf("topic = %q", p.topic)
	}
	var st models.DeviceState
	if err := json.Unmarshal(p.payload, &st); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if st.Telemetry.Temperature != 24.5 || st.PumpStatus != models.PumpStatusOn || st.Telemetry.SoilMoisture[1] != 40 {
		t.Fatalf("state = %+v", st)
	}
}

func TestBridge_PublishesConnection(t *testing.T) {
	t.Parallel()

	pub := newFakePublisher()
	pub.err = errors.New("broker gone")
	b := NewBridge(pub, "agrismart", "field-1", logger.Nop())
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return at }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	obs := b.Observer()
	obs.Connection(device.ConnectionState{Kind: device.StateReconnecting, Attempt: 2, Backoff: 10 * time.Second}, models.TransportWebSocket)
	// a failed publish must not stop the loop
	obs.Connection(device.ConnectionState{Kind: device.StateFailed}, models.TransportHTTP)

	first := pub.next(t)
	var msg ConnectionMessage
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if first.topic != "agrismart/field-1/connection" || msg.State != "reconnecting" || msg.Attempt != 2 || !msg.At.Equal(at) {
		t.Fatalf("first = %s %+v", first.topic, msg)
	}

	second := pub.next(t)
	msg = ConnectionMessage{}
	_ = json.Unmarshal(second.payload, &msg)
	if msg.State != "failed" || msg.Transport != models.TransportHTTP {
		t.Fatalf("second = %+v", msg)
	}
}

func TestBridge_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	b := NewBridge(newFakePublisher(), "agrismart", "field-1", logger.Nop())
	obs := b.Observer()
	// Start is not running, so the queue fills and further events are dropped.
	for i := 0; i < bridgeBuffer+5; i++ {
		obs.State(models.DeviceState{})
	}
	if len(b.queue) != bridgeBuffer {
		t.Fatalf("queue len = %d", len(b.queue))
	}
}
