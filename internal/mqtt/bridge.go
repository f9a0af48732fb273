package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"
)

const (
	defaultPrefix = "agrismart"
	bridgeBuffer  = 32
)

type outbound struct {
	topic string
	body  any
}

// ConnectionMessage is the payload published on the connection topic.
type ConnectionMessage struct {
	State     string           `json:"state"`
	Transport models.Transport `json:"transport"`
	Attempt   int              `json:"attempt,omitempty"`
	At        time.Time        `json:"at"`
}

// Bridge republishes link events to {prefix}/{device}/state and
// {prefix}/{device}/connection.
type Bridge struct {
	pub             Publisher
	stateTopic      string
	connectionTopic string
	queue           chan outbound
	log             *logger.Logger
	now             func() time.Time
}

func NewBridge(pub Publisher, prefix, deviceName string, log *logger.Logger) *Bridge {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	base := fmt.Sprintf("%s/%s", prefix, strings.Trim(deviceName, "/"))
	return &Bridge{
		pub:             pub,
		stateTopic:      base + "/state",
		connectionTopic: base + "/connection",
		queue:           make(chan outbound, bridgeBuffer),
		log:             log,
		now:             time.Now,
	}
}

func (b *Bridge) StateTopic() string      { return b.stateTopic }
func (b *Bridge) ConnectionTopic() string { return b.connectionTopic }

// Observer enqueues state and connection events. A full queue drops the
// event; the next frame carries the full merged state anyway.
func (b *Bridge) Observer() device.Observer {
	return device.Observer{
		State: func(st models.DeviceState) {
			b.enqueue(outbound{topic: b.stateTopic, body: st})
		},
		Connection: func(st device.ConnectionState, transport models.Transport) {
			b.enqueue(outbound{topic: b.connectionTopic, body: ConnectionMessage{
				State:     st.Kind.String(),
				Transport: transport,
				Attempt:   st.Attempt,
				At:        b.now().UTC(),
			}})
		},
	}
}

func (b *Bridge) enqueue(m outbound) {
	select {
	case b.queue <- m:
	default:
		b.log.Warnw("mqtt_queue_full", "topic", m.topic)
	}
}

// Start publishes queued events until ctx is canceled.
func (b *Bridge) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-b.queue:
			if err := b.publish(m); err != nil {
				b.log.Warnw("mqtt_publish_failed", "topic", m.topic, "err", err)
			}
		}
	}
}

func (b *Bridge) publish(m outbound) error {
	payload, err := json.Marshal(m.body)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", m.topic, err)
	}
	return b.pub.Publish(m.topic, payload)
}
