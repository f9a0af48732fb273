package service

import (
	"context"
	"io"
	"time"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"
	"agrismart/internal/repository"
)

// Link is the device connection the services drive. *device.Manager implements it.
type Link interface {
	Snapshot() models.DeviceState
	Health() device.HealthStatus
	Endpoint() models.Endpoint
	CameraEndpoint() models.Endpoint
	Dispatch(ctx context.Context, cmd device.Command) device.Result
	Debounce(key string, cmd device.Command) error
	Display(key string) (device.Command, bool)
	ApplyThresholds(t models.Thresholds)
	TestConnection(ctx context.Context) device.ProbeResult
	SetEndpoint(host string) error
	SetCameraEndpoint(host string)
	Capture(ctx context.Context) ([]byte, string, error)
	Stream(ctx context.Context) (io.ReadCloser, string, error)
	CameraInfo(ctx context.Context) device.Result
}

// Control exposes watering and camera commands.
type Control interface {
	StartWatering(ctx context.Context) device.Result
	StopWatering(ctx context.Context) device.Result
	SetAuto(ctx context.Context, enable bool) device.Result
	SetSchedule(ctx context.Context, enable bool) device.Result
	CameraControl(ctx context.Context, control string, value int) (CameraOutcome, error)
	CameraSettings() map[string]int
	Capture(ctx context.Context) ([]byte, string, error)
	Stream(ctx context.Context) (io.ReadCloser, string, error)
	CameraInfo(ctx context.Context) device.Result
}

// Monitoring exposes the read side of the link.
type Monitoring interface {
	GetState(ctx context.Context) StateView
	Connection(ctx context.Context) ConnectionView
	TestConnection(ctx context.Context) device.ProbeResult
}

// Settings manages saved preferences and pushes them to the device.
type Settings interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, upd SettingsUpdate) (SaveResult, error)
	DeviceSettings(ctx context.Context) (models.Settings, error)
	ResolveController(ctx context.Context) (string, error)
	ResolveCamera(ctx context.Context) (string, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Recorder samples telemetry into the event log until ctx is canceled.
type Recorder interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services. Control, Monitoring and Recorder are
// nil until Bind attaches a Link.
type Service struct {
	Control
	Monitoring
	Settings
	EventLog
	Recorder

	Notifier *EventNotifier

	settings *SettingsService
	repos    *repository.Repository
	log      *logger.Logger
}

// NewService wires the repository layer into the link-independent services.
func NewService(repos *repository.Repository, defaults Defaults, log *logger.Logger) *Service {
	settings := NewSettingsService(repos.Settings, repos.Devices, defaults, log)
	return &Service{
		Settings: settings,
		EventLog: NewEventLogService(repos.Events),
		Notifier: NewEventNotifier(repos.Events, log),
		settings: settings,
		repos:    repos,
		log:      log,
	}
}

// Bind attaches the device link and builds the services that drive it.
func (s *Service) Bind(link Link) {
	s.settings.bind(link)
	s.Control = NewControlService(link, s.log)
	s.Monitoring = NewMonitoringService(link)
	s.Recorder = NewRecorderService(link, s.repos.Events, s.log)
}
