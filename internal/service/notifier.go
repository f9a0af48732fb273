package service

import (
	"context"
	"sync"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"
	"agrismart/internal/repository"
)

const notifyWriteTimeout = 3 * time.Second

// EventNotifier records link notifications in the event log and relays them
// to subscribers (the dashboard hub).
type EventNotifier struct {
	events repository.EventRepo
	log    *logger.Logger

	mu   sync.RWMutex
	subs []func(device.Notification)
}

func NewEventNotifier(events repository.EventRepo, log *logger.Logger) *EventNotifier {
	return &EventNotifier{events: events, log: log}
}

var _ device.Notifier = (*EventNotifier)(nil)

// Subscribe registers fn for every later notification.
func (n *EventNotifier) Subscribe(fn func(device.Notification)) {
	n.mu.Lock()
	n.subs = append(n.subs, fn)
	n.mu.Unlock()
}

func (n *EventNotifier) Notify(note device.Notification) {
	switch note.Level {
	case device.LevelError:
		n.log.Errorw("device_alert", "host", note.Host, "kind", note.Kind.String(), "message", note.Message)
	case device.LevelWarning:
		n.log.Warnw("device_alert", "host", note.Host, "kind", note.Kind.String(), "message", note.Message)
	default:
		n.log.Infow("device_alert", "host", note.Host, "level", note.Level, "message", note.Message)
	}

	meta := map[string]any{
		"host":  note.Host,
		"level": string(note.Level),
		"kind":  note.Kind.String(),
	}
	if note.Zone > 0 {
		meta["zone"] = note.Zone
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyWriteTimeout)
	defer cancel()
	err := n.events.Append(ctx, models.DeviceEvent{
		Type:        eventTypeFor(note.Level),
		Description: note.Message,
		Metadata:    meta,
	})
	if err != nil {
		n.log.Errorw("event_append_failed", "err", err)
	}

	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()
	for _, fn := range subs {
		fn(note)
	}
}

func eventTypeFor(l device.Level) string {
	switch l {
	case device.LevelError:
		return models.EventError
	case device.LevelWarning:
		return models.EventWarning
	default:
		return models.EventConnection
	}
}
