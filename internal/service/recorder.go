package service

import (
	"context"
	"sync"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"
	"agrismart/internal/repository"
)

// RecorderService appends a TELEMETRY event for each fresh device picture.
type RecorderService struct {
	link      Link
	eventRepo repository.EventRepo
	log       *logger.Logger

	mu   sync.Mutex
	last time.Time
}

func NewRecorderService(link Link, eventRepo repository.EventRepo, log *logger.Logger) *RecorderService {
	return &RecorderService{link: link, eventRepo: eventRepo, log: log}
}

// Run ticks at the given interval until ctx is canceled. A non-positive
// interval disables recording.
func (s *RecorderService) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		s.log.Infow("telemetry_recorder_disabled")
		return
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := s.RecordOnce(ctx, now); err != nil {
				s.log.Warnw("telemetry_record_failed", "err", err)
			}
		}
	}
}

// RecordOnce stores the current snapshot unless it is stale or was already
// recorded. It reports whether an event was written.
func (s *RecorderService) RecordOnce(ctx context.Context, now time.Time) (bool, error) {
	health := s.link.Health()
	if health.Stale {
		return false, nil
	}
	st := s.link.Snapshot()
	if st.LastUpdate.IsZero() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !st.LastUpdate.After(s.last) {
		return false, nil
	}

	err := s.eventRepo.Append(ctx, models.DeviceEvent{
		OccurredAt:  now.UTC(),
		Type:        models.EventTelemetry,
		Description: "telemetry sample",
		Metadata: map[string]any{
			"host":          s.link.Endpoint().Host,
			"transport":     string(health.Transport),
			"temperature":   st.Telemetry.Temperature,
			"humidity_air":  st.Telemetry.HumidityAir,
			"soil_moisture": st.Telemetry.SoilMoisture,
			"soil_ph":       st.Telemetry.SoilPH,
			"rssi":          st.Telemetry.RSSI,
			"pump_status":   st.PumpStatus,
			"auto_mode":     st.Actuators.AutoMode,
			"schedule_mode": st.Actuators.ScheduleMode,
		},
	})
	if err != nil {
		return false, err
	}
	s.last = st.LastUpdate
	return true, nil
}
