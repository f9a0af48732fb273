package hub

import (
	"sync"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"

	"github.com/cskr/pubsub"
)

// Topics carried to dashboard subscribers.
const (
	TopicState        = "state"
	TopicConnection   = "connection"
	TopicNotification = "notification"
)

const defaultCapacity = 64

// Message is what subscribers receive.
type Message struct {
	Topic string
	Data  any
}

// Subscription delivers Messages until it is unsubscribed or the hub closes.
type Subscription chan any

// ConnectionEvent is published on TopicConnection.
type ConnectionEvent struct {
	State     string           `json:"state"`
	Transport models.Transport `json:"transport"`
	Attempt   int              `json:"attempt,omitempty"`
}

// NotificationEvent is published on TopicNotification.
type NotificationEvent struct {
	Level   string `json:"level"`
	Kind    string `json:"kind"`
	Host    string `json:"host"`
	Zone    int    `json:"zone,omitempty"`
	Message string `json:"message"`
}

// Hub fans link events out to dashboard connections. Publish never blocks
// the caller; a pump goroutine feeds the pubsub.
type Hub struct {
	ps   *pubsub.PubSub
	in   chan Message
	log  *logger.Logger
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New starts a hub. capacity bounds both the inbound queue and each
// subscriber's buffer.
func New(capacity int, log *logger.Logger) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	h := &Hub{
		ps:   pubsub.New(capacity),
		in:   make(chan Message, capacity),
		log:  log,
		done: make(chan struct{}),
	}
	h.wg.Add(1)
	go h.pump()
	return h
}

func (h *Hub) pump() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case m := <-h.in:
			h.ps.Pub(m, m.Topic)
		}
	}
}

// Publish queues data for topic. It reports false when the message was dropped.
func (h *Hub) Publish(topic string, data any) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.in <- Message{Topic: topic, Data: data}:
		return true
	default:
		h.log.Debugw("hub_drop", "topic", topic)
		return false
	}
}

func (h *Hub) Subscribe(topics ...string) Subscription {
	return h.ps.Sub(topics...)
}

// Unsubscribe detaches ch from every topic. Pending messages are drained so
// the pubsub loop never blocks on a departed subscriber.
func (h *Hub) Unsubscribe(ch Subscription) {
	select {
	case <-h.done:
		return
	default:
	}
	go func() {
		for range ch {
		}
	}()
	h.ps.Unsub(ch)
}

// Close stops the pump and closes every subscription.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.ps.Shutdown()
	})
}

// Observer publishes merged state and session transitions.
func (h *Hub) Observer() device.Observer {
	return device.Observer{
		State: func(st models.DeviceState) {
			h.Publish(TopicState, st)
		},
		Connection: func(st device.ConnectionState, transport models.Transport) {
			h.Publish(TopicConnection, ConnectionEvent{
				State:     st.Kind.String(),
				Transport: transport,
				Attempt:   st.Attempt,
			})
		},
	}
}

// Notify relays a user-facing link notification.
func (h *Hub) Notify(n device.Notification) {
	h.Publish(TopicNotification, NotificationEvent{
		Level:   string(n.Level),
		Kind:    n.Kind.String(),
		Host:    n.Host,
		Zone:    n.Zone,
		Message: n.Message,
	})
}
