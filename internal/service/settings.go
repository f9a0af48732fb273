package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"agrismart/internal/device"
	"agrismart/internal/logger"
	"agrismart/internal/models"
	"agrismart/internal/repository"
)

// Keys in the settings table.
const (
	KeyControllerIP = "esp32_ip"
	KeyCameraIP     = "espcam_ip"
	KeyInterval     = "sensor_interval"
	KeyThresholds   = "thresholds"
)

const defaultInterval = 5

// ErrInvalidSettings marks a save rejected before anything was written.
var ErrInvalidSettings = errors.New("invalid settings")

// Defaults are used for keys that were never saved.
type Defaults struct {
	ControllerIP string
	CameraIP     string
	Interval     int
	Thresholds   models.Thresholds
}

type SettingsService struct {
	repo     repository.SettingsRepo
	devices  repository.DeviceRepo
	defaults Defaults
	log      *logger.Logger

	mu   sync.RWMutex
	link Link
}

func NewSettingsService(repo repository.SettingsRepo, devices repository.DeviceRepo, defaults Defaults, log *logger.Logger) *SettingsService {
	if defaults.Interval <= 0 {
		defaults.Interval = defaultInterval
	}
	if !defaults.Thresholds.Valid() {
		defaults.Thresholds = models.DefaultThresholds()
	}
	return &SettingsService{repo: repo, devices: devices, defaults: defaults, log: log}
}

func (s *SettingsService) bind(link Link) {
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()
}

func (s *SettingsService) linked() Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.link
}

// Get returns saved settings merged over the defaults. A corrupt stored
// value is logged and replaced by its default.
func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	out := models.Settings{
		ControllerIP: s.defaults.ControllerIP,
		CameraIP:     s.defaults.CameraIP,
		Interval:     s.defaults.Interval,
		Thresholds:   s.defaults.Thresholds,
	}
	if v := strings.TrimSpace(stored[KeyControllerIP]); v != "" {
		out.ControllerIP = v
	}
	if v := strings.TrimSpace(stored[KeyCameraIP]); v != "" {
		out.CameraIP = v
	}
	if v, ok := stored[KeyInterval]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.log.Warnw("settings_corrupt_value", "key", KeyInterval, "value", v)
		} else {
			out.Interval = n
		}
	}
	if v, ok := stored[KeyThresholds]; ok {
		var t models.Thresholds
		if err := json.Unmarshal([]byte(v), &t); err != nil || !t.Valid() {
			s.log.Warnw("settings_corrupt_value", "key", KeyThresholds, "value", v)
		} else {
			out.Thresholds = t
		}
	}
	return out, nil
}

// DeviceSettings satisfies device.SettingsSource.
func (s *SettingsService) DeviceSettings(ctx context.Context) (models.Settings, error) {
	return s.Get(ctx)
}

// ResolveController picks the controller IP: the first registered sprinkler
// with an IP, then the saved esp32_ip, then the configured default.
func (s *SettingsService) ResolveController(ctx context.Context) (string, error) {
	return s.resolve(ctx, models.DeviceKindSprinkler, KeyControllerIP, s.defaults.ControllerIP)
}

// ResolveCamera applies the same priority to the camera.
func (s *SettingsService) ResolveCamera(ctx context.Context) (string, error) {
	return s.resolve(ctx, models.DeviceKindCamera, KeyCameraIP, s.defaults.CameraIP)
}

func (s *SettingsService) resolve(ctx context.Context, kind, key, fallback string) (string, error) {
	if s.devices != nil {
		devs, err := s.devices.List(ctx, kind)
		if err != nil {
			return "", fmt.Errorf("list %s devices: %w", kind, err)
		}
		for _, d := range devs {
			if ip := strings.TrimSpace(d.IP); ip != "" {
				return ip, nil
			}
		}
	}
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	return fallback, nil
}

// Save validates and persists upd, then tries to push it to the device.
// Push failures never fail the save; interval and thresholds that cannot be
// delivered now are reported as deferred to the next WebSocket open.
func (s *SettingsService) Save(ctx context.Context, upd SettingsUpdate) (SaveResult, error) {
	if err := validateUpdate(upd); err != nil {
		return SaveResult{}, err
	}
	before, err := s.Get(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	writes := make(map[string]string)
	if upd.ControllerIP != nil {
		writes[KeyControllerIP] = strings.TrimSpace(*upd.ControllerIP)
	}
	if upd.CameraIP != nil {
		writes[KeyCameraIP] = strings.TrimSpace(*upd.CameraIP)
	}
	if upd.Interval != nil {
		writes[KeyInterval] = strconv.Itoa(*upd.Interval)
	}
	if upd.Thresholds != nil {
		b, err := json.Marshal(upd.Thresholds)
		if err != nil {
			return SaveResult{}, fmt.Errorf("encode thresholds: %w", err)
		}
		writes[KeyThresholds] = string(b)
	}
	for k, v := range writes {
		if err := s.repo.Set(ctx, k, v); err != nil {
			return SaveResult{}, fmt.Errorf("save %s: %w", k, err)
		}
	}

	after, err := s.Get(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	res := SaveResult{Settings: after, Delivered: []string{}, Deferred: []string{}}
	s.log.Infow("settings_saved", "keys", len(writes))

	link := s.linked()
	if link == nil {
		return res, nil
	}
	s.push(ctx, link, before, after, upd, &res)
	return res, nil
}

func (s *SettingsService) push(ctx context.Context, link Link, before, after models.Settings, upd SettingsUpdate, res *SaveResult) {
	if upd.CameraIP != nil && after.CameraIP != before.CameraIP {
		if host, err := s.ResolveCamera(ctx); err == nil && host != link.CameraEndpoint().Host {
			link.SetCameraEndpoint(host)
		}
	}
	if upd.ControllerIP != nil && after.ControllerIP != before.ControllerIP {
		host, err := s.ResolveController(ctx)
		if err != nil {
			s.log.Warnw("settings_resolve_failed", "err", err)
		} else if host != link.Endpoint().Host {
			if err := link.SetEndpoint(host); err != nil {
				s.log.Warnw("settings_endpoint_change_failed", "host", host, "err", err)
			}
			// the new link pushes interval and thresholds itself on open
			if upd.Interval != nil {
				res.Deferred = append(res.Deferred, device.CmdSetInterval)
			}
			if upd.Thresholds != nil {
				link.ApplyThresholds(after.Thresholds)
				res.Deferred = append(res.Deferred, device.CmdSetThreshold)
			}
			return
		}
	}

	if upd.Thresholds != nil {
		link.ApplyThresholds(after.Thresholds)
		s.deliver(ctx, link, device.SetThreshold{Thresholds: after.Thresholds}, res)
	}
	if upd.Interval != nil {
		s.deliver(ctx, link, device.SetInterval{Seconds: after.Interval}, res)
	}
}

func (s *SettingsService) deliver(ctx context.Context, link Link, cmd device.Command, res *SaveResult) {
	r := link.Dispatch(ctx, cmd)
	if r.Success {
		res.Delivered = append(res.Delivered, cmd.Name())
		return
	}
	res.Deferred = append(res.Deferred, cmd.Name())
	s.log.Infow("settings_push_deferred", "command", cmd.Name(), "err", r.AsError())
}

func validateUpdate(upd SettingsUpdate) error {
	if upd.ControllerIP != nil {
		if err := validateHost(*upd.ControllerIP); err != nil {
			return fmt.Errorf("%w: esp32_ip: %v", ErrInvalidSettings, err)
		}
	}
	if upd.CameraIP != nil {
		if err := validateHost(*upd.CameraIP); err != nil {
			return fmt.Errorf("%w: espcam_ip: %v", ErrInvalidSettings, err)
		}
	}
	if upd.Interval != nil && *upd.Interval < 1 {
		return fmt.Errorf("%w: sensor_interval must be at least 1 second", ErrInvalidSettings)
	}
	if upd.Thresholds != nil && !upd.Thresholds.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, device.ErrInvalidThresholds)
	}
	return nil
}

func validateHost(h string) error {
	h = strings.TrimSpace(h)
	if h == "" {
		return errors.New("host is empty")
	}
	if strings.ContainsAny(h, " /?#@") || strings.Contains(h, "://") {
		return fmt.Errorf("%q is not a bare host or IP address", h)
	}
	return nil
}
