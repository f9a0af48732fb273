package service

import (
	"context"

	"agrismart/internal/device"
)

type MonitoringService struct {
	link Link
}

func NewMonitoringService(link Link) *MonitoringService {
	return &MonitoringService{link: link}
}

// GetState returns the merged device model with the link summary. Before the
// first frame every field carries its default.
func (s *MonitoringService) GetState(_ context.Context) StateView {
	return StateView{
		DeviceState: s.link.Snapshot(),
		Endpoint:    s.link.Endpoint(),
		Health:      s.link.Health(),
	}
}

func (s *MonitoringService) Connection(_ context.Context) ConnectionView {
	return ConnectionView{
		HealthStatus: s.link.Health(),
		Device:       s.link.Endpoint(),
		Camera:       s.link.CameraEndpoint(),
	}
}

func (s *MonitoringService) TestConnection(ctx context.Context) device.ProbeResult {
	return s.link.TestConnection(ctx)
}
