// internal/handlers/mock_service_test.go
package handlers

import (
	"context"
	"io"
	"sync"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/models"
	"agrismart/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockControl struct {
	mu sync.Mutex

	result      device.Result
	camera      service.CameraOutcome
	cameraErr   error
	image       []byte
	contentType string
	captureErr  error
	info        device.Result
	settings    map[string]int
	stream      io.ReadCloser
	streamType  string
	streamErr   error

	calls       []string
	lastEnable  bool
	lastControl string
	lastValue   int
}

func (m *mockControl) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockControl) StartWatering(context.Context) device.Result {
	m.record("start")
	return m.result
}

func (m *mockControl) StopWatering(context.Context) device.Result {
	m.record("stop")
	return m.result
}

func (m *mockControl) SetAuto(_ context.Context, enable bool) device.Result {
	m.record("auto")
	m.lastEnable = enable
	return m.result
}

func (m *mockControl) SetSchedule(_ context.Context, enable bool) device.Result {
	m.record("schedule")
	m.lastEnable = enable
	return m.result
}

func (m *mockControl) CameraControl(_ context.Context, control string, value int) (service.CameraOutcome, error) {
	m.record("camera")
	m.lastControl, m.lastValue = control, value
	return m.camera, m.cameraErr
}

func (m *mockControl) Capture(context.Context) ([]byte, string, error) {
	m.record("capture")
	return m.image, m.contentType, m.captureErr
}

func (m *mockControl) CameraSettings() map[string]int {
	m.record("settings")
	return m.settings
}

func (m *mockControl) Stream(context.Context) (io.ReadCloser, string, error) {
	m.record("stream")
	return m.stream, m.streamType, m.streamErr
}

func (m *mockControl) CameraInfo(context.Context) device.Result {
	m.record("info")
	return m.info
}

func (m *mockControl) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockMonitoring struct {
	mu    sync.Mutex
	state service.StateView
	conn  service.ConnectionView
	probe device.ProbeResult
}

func (m *mockMonitoring) GetState(context.Context) service.StateView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockMonitoring) Connection(context.Context) service.ConnectionView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

func (m *mockMonitoring) TestConnection(context.Context) device.ProbeResult {
	return m.probe
}

func (m *mockMonitoring) setState(st service.StateView) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

type mockSettings struct {
	settings models.Settings
	getErr   error
	save     service.SaveResult
	saveErr  error
	lastSave service.SettingsUpdate
}

func (m *mockSettings) Get(context.Context) (models.Settings, error) {
	return m.settings, m.getErr
}

func (m *mockSettings) Save(_ context.Context, upd service.SettingsUpdate) (service.SaveResult, error) {
	m.lastSave = upd
	return m.save, m.saveErr
}

func (m *mockSettings) DeviceSettings(context.Context) (models.Settings, error) {
	return m.settings, m.getErr
}

func (m *mockSettings) ResolveController(context.Context) (string, error) {
	return m.settings.ControllerIP, nil
}

func (m *mockSettings) ResolveCamera(context.Context) (string, error) {
	return m.settings.CameraIP, nil
}

type mockEventLog struct {
	resp []models.DeviceEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.last = f
	return m.resp, m.err
}

func (m *mockEventLog) Prune(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
