package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agrismart/internal/models"
	"agrismart/internal/repository"
)

// History page sizes.
const (
	DefaultLogLimit = 500
	MaxLogLimit     = 5000
)

// ErrInvalidFilter marks a history query rejected before reaching storage.
var ErrInvalidFilter = errors.New("invalid log filter")

var errInvalidRetention = errors.New("retention must be positive")

var knownEventTypes = map[string]struct{}{
	models.EventConnection: {},
	models.EventWarning:    {},
	models.EventError:      {},
	models.EventCommand:    {},
	models.EventTelemetry:  {},
}

type EventLogService struct {
	events repository.EventRepo
	now    func() time.Time
}

func NewEventLogService(events repository.EventRepo) *EventLogService {
	return &EventLogService{events: events, now: time.Now}
}

// toQuery validates f and turns it into a storage query: bounds in UTC,
// type uppercased, limit defaulted and capped.
func toQuery(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit: f.Limit,
	}
	if !f.From.IsZero() {
		q.From = f.From.UTC()
	}
	if !f.To.IsZero() {
		q.To = f.To.UTC()
	}

	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return q, fmt.Errorf("%w: from %s is after to %s", ErrInvalidFilter,
			q.From.Format(time.RFC3339), q.To.Format(time.RFC3339))
	}
	if _, ok := knownEventTypes[q.Type]; q.Type != "" && !ok {
		return q, fmt.Errorf("%w: unknown event type %q", ErrInvalidFilter, q.Type)
	}
	switch {
	case q.Limit < 0:
		return q, fmt.Errorf("%w: limit must not be negative", ErrInvalidFilter)
	case q.Limit == 0:
		q.Limit = DefaultLogLimit
	case q.Limit > MaxLogLimit:
		q.Limit = MaxLogLimit
	}
	return q, nil
}

// List returns the newest matching events in chronological order.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error) {
	q, err := toQuery(f)
	if err != nil {
		return nil, err
	}
	return s.events.List(ctx, q)
}

// Prune deletes events older than olderThan.
func (s *EventLogService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errInvalidRetention
	}
	return s.events.Prune(ctx, s.now().UTC().Add(-olderThan))
}
