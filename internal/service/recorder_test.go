// internal/service/recorder_test.go
package service

import (
	"context"
	"testing"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/logger"
)

func TestRecorderService_RecordOnce(t *testing.T) {
	t.Parallel()

	repo := &fakeEventRepo{}
	link := newFakeLink()
	rec := NewRecorderService(link, repo, logger.Nop())
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	// no frame yet
	link.health = device.HealthStatus{Stale: true}
	if ok, err := rec.RecordOnce(ctx, now); ok || err != nil {
		t.Fatalf("before first frame: %v, %v", ok, err)
	}

	link.health = device.HealthStatus{Stale: false}
	link.state.LastUpdate = now.Add(-2 * time.Second)
	link.state.Telemetry.Temperature = 27.5
	if ok, err := rec.RecordOnce(ctx, now); !ok || err != nil {
		t.Fatalf("fresh frame: %v, %v", ok, err)
	}

	// same frame again is not duplicated
	if ok, _ := rec.RecordOnce(ctx, now.Add(time.Minute)); ok {
		t.Fatal("same frame recorded twice")
	}

	got := repo.Appended()
	if len(got) != 1 || got[0].Type != "TELEMETRY" {
		t.Fatalf("appended = %+v", got)
	}
	meta := got[0].Metadata.(map[string]any)
	if meta["temperature"] != 27.5 {
		t.Fatalf("metadata = %#v", meta)
	}
}

func TestRecorderService_SkipsStale(t *testing.T) {
	t.Parallel()

	repo := &fakeEventRepo{}
	link := newFakeLink()
	link.health = device.HealthStatus{Stale: true}
	link.state.LastUpdate = time.Now().Add(-time.Hour)
	rec := NewRecorderService(link, repo, logger.Nop())

	if ok, _ := rec.RecordOnce(context.Background(), time.Now()); ok {
		t.Fatal("stale data must not be recorded")
	}
}

func TestRecorderService_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	rec := NewRecorderService(newFakeLink(), &fakeEventRepo{}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRecorderService_RunDisabledWithZeroInterval(t *testing.T) {
	t.Parallel()

	rec := NewRecorderService(newFakeLink(), &fakeEventRepo{}, logger.Nop())
	done := make(chan struct{})
	go func() {
		rec.Run(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
