package service

import (
	"context"
	"fmt"
	"io"

	"agrismart/internal/device"
	"agrismart/internal/logger"
)

type ControlService struct {
	link Link
	log  *logger.Logger
}

func NewControlService(link Link, log *logger.Logger) *ControlService {
	return &ControlService{link: link, log: log}
}

// StartWatering switches every pump on.
func (s *ControlService) StartWatering(ctx context.Context) device.Result {
	return s.dispatch(ctx, device.PumpOn{})
}

// StopWatering switches every pump off.
func (s *ControlService) StopWatering(ctx context.Context) device.Result {
	return s.dispatch(ctx, device.PumpOff{})
}

func (s *ControlService) SetAuto(ctx context.Context, enable bool) device.Result {
	return s.dispatch(ctx, device.AutoMode{Enable: enable})
}

func (s *ControlService) SetSchedule(ctx context.Context, enable bool) device.Result {
	return s.dispatch(ctx, device.ScheduleMode{Enable: enable})
}

// CameraControl writes one camera register. Slider controls are coalesced;
// everything else is sent immediately.
func (s *ControlService) CameraControl(ctx context.Context, control string, value int) (CameraOutcome, error) {
	cmd := device.CameraSetting{Var: control, Value: value}
	out := CameraOutcome{Control: control, Value: value}

	if device.IsDebounced(control) {
		if err := s.link.Debounce(control, cmd); err != nil {
			return out, fmt.Errorf("camera %s: %w", control, err)
		}
		out.Debounced = true
		out.Result = device.Result{Success: true, Message: "queued"}
		return out, nil
	}

	out.Result = s.dispatch(ctx, cmd)
	return out, nil
}

// CameraSettings returns the last value submitted for each slider control,
// including values still waiting out the debounce delay. Sliders never
// touched since startup are absent.
func (s *ControlService) CameraSettings() map[string]int {
	out := make(map[string]int)
	for _, control := range device.DebouncedControls() {
		cmd, ok := s.link.Display(control)
		if !ok {
			continue
		}
		if cs, ok := cmd.(device.CameraSetting); ok {
			out[control] = cs.Value
		}
	}
	return out
}

func (s *ControlService) Capture(ctx context.Context) ([]byte, string, error) {
	return s.link.Capture(ctx)
}

// Stream opens the live camera feed. The caller closes the body.
func (s *ControlService) Stream(ctx context.Context) (io.ReadCloser, string, error) {
	body, contentType, err := s.link.Stream(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("camera stream: %w", err)
	}
	s.log.Infow("camera_stream_opened", "content_type", contentType)
	return body, contentType, nil
}

func (s *ControlService) CameraInfo(ctx context.Context) device.Result {
	return s.link.CameraInfo(ctx)
}

func (s *ControlService) dispatch(ctx context.Context, cmd device.Command) device.Result {
	res := s.link.Dispatch(ctx, cmd)
	if res.Success {
		s.log.Infow("command_dispatched", "command", cmd.Name())
	} else {
		s.log.Warnw("command_failed", "command", cmd.Name(), "err", res.AsError())
	}
	return res
}
