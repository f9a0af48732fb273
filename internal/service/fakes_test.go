// internal/service/fakes_test.go
package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/models"
	"agrismart/internal/repository"
)

// fakeEventRepo is a minimal stub that satisfies repository.EventRepo.
type fakeEventRepo struct {
	mu sync.Mutex

	gotQuery  repository.EventQuery
	gotBefore time.Time

	appended []models.DeviceEvent
	events   []models.DeviceEvent
	pruned   int64
	err      error

	calls int
}

func (f *fakeEventRepo) List(_ context.Context, q repository.EventQuery) ([]models.DeviceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotQuery = q
	return f.events, f.err
}

func (f *fakeEventRepo) Append(_ context.Context, e models.DeviceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventRepo) Prune(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotBefore = before
	return f.pruned, f.err
}

func (f *fakeEventRepo) Appended() []models.DeviceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DeviceEvent(nil), f.appended...)
}

type fakeSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeSettingsRepo(kv map[string]string) *fakeSettingsRepo {
	if kv == nil {
		kv = map[string]string{}
	}
	return &fakeSettingsRepo{values: kv}
}

func (f *fakeSettingsRepo) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettingsRepo) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettingsRepo) All(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

type fakeDeviceRepo struct {
	devices []models.RegisteredDevice
	err     error
}

func (f *fakeDeviceRepo) List(_ context.Context, kind string) ([]models.RegisteredDevice, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RegisteredDevice
	for _, d := range f.devices {
		if kind == "" || d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeLink records what the services ask of the device link.
type fakeLink struct {
	mu sync.Mutex

	state    models.DeviceState
	health   device.HealthStatus
	endpoint models.Endpoint
	camera   models.Endpoint

	// dispatchResult decides the outcome per command name; missing means success.
	dispatchResult map[string]device.Result
	dispatched     []device.Command
	debounced      map[string]device.Command
	thresholds     []models.Thresholds
	endpointCalls  []string
	cameraCalls    []string
	probe          device.ProbeResult
	streamErr      error
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		endpoint:       models.Endpoint{Host: "192.168.1.11", WSPort: 81, Transport: models.TransportWebSocket},
		camera:         models.Endpoint{Host: "192.168.1.93"},
		dispatchResult: map[string]device.Result{},
		debounced:      map[string]device.Command{},
		state:          models.DeviceState{Thresholds: models.DefaultThresholds(), PumpStatus: models.PumpStatusOff},
	}
}

func (l *fakeLink) Snapshot() models.DeviceState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLink) Health() device.HealthStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health
}

func (l *fakeLink) Endpoint() models.Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endpoint
}

func (l *fakeLink) CameraEndpoint() models.Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.camera
}

func (l *fakeLink) Dispatch(_ context.Context, cmd device.Command) device.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := device.Validate(cmd); err != nil {
		return device.Result{Err: &device.Error{Kind: device.KindInvalidCommand, Op: cmd.Name(), Err: err}}
	}
	l.dispatched = append(l.dispatched, cmd)
	if r, ok := l.dispatchResult[cmd.Name()]; ok {
		return r
	}
	return device.Result{Success: true}
}

func (l *fakeLink) Debounce(key string, cmd device.Command) error {
	if err := device.Validate(cmd); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debounced[key] = cmd
	return nil
}

func (l *fakeLink) Display(key string) (device.Command, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.debounced[key]
	return c, ok
}

func (l *fakeLink) ApplyThresholds(t models.Thresholds) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thresholds = append(l.thresholds, t)
	l.state.Thresholds = t
}

func (l *fakeLink) TestConnection(context.Context) device.ProbeResult {
	return l.probe
}

func (l *fakeLink) SetEndpoint(host string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endpointCalls = append(l.endpointCalls, host)
	l.endpoint.Host = host
	return nil
}

func (l *fakeLink) SetCameraEndpoint(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cameraCalls = append(l.cameraCalls, host)
	l.camera.Host = host
}

func (l *fakeLink) Capture(context.Context) ([]byte, string, error) {
	return []byte{0xff, 0xd8, 0xff}, "image/jpeg", nil
}

func (l *fakeLink) Stream(context.Context) (io.ReadCloser, string, error) {
	if l.streamErr != nil {
		return nil, "", l.streamErr
	}
	return io.NopCloser(strings.NewReader("--frame\r\n")), "multipart/x-mixed-replace; boundary=frame", nil
}

func (l *fakeLink) CameraInfo(context.Context) device.Result {
	return device.Result{Success: true, Message: "esp32-cam"}
}

func (l *fakeLink) Dispatched() []device.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]device.Command(nil), l.dispatched...)
}

var _ Link = (*fakeLink)(nil)
