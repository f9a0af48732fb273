package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"
)

// Camera register bounds enforced before a request is sent.
const (
	ledMin  = 0
	ledMax  = 255
	xclkMin = 10
	xclkMax = 30
)

var debouncedControls = map[string]bool{
	"brightness":    true,
	"contrast":      true,
	"saturation":    true,
	"quality":       true,
	"led_intensity": true,
}

// IsDebounced reports whether a camera control is coalesced before sending.
func IsDebounced(control string) bool {
	return debouncedControls[control]
}

// DebouncedControls lists the coalesced camera controls in name order.
func DebouncedControls() []string {
	out := make([]string, 0, len(debouncedControls))
	for c := range debouncedControls {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Sender is the WebSocket side of the dispatcher.
type Sender interface {
	Send(cmd Command) bool
}

// Dispatcher routes outbound commands over WebSocket first and HTTP second.
type Dispatcher struct {
	mu      sync.RWMutex
	session Sender
	device  *HTTPClient
	camera  *HTTPClient

	norm      *Normalizer
	coalescer *Coalescer[Command]
	log       *logger.Logger

	// base context for debounced sends
	ctx    context.Context
	cancel context.CancelFunc

	onDispatch func(command string, transport models.Transport, ok bool)
	onDebounce func(command string, res Result)
}

// NewDispatcher wires a dispatcher. session may be nil (HTTP only).
func NewDispatcher(session Sender, device, camera *HTTPClient, norm *Normalizer, debounce time.Duration, log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		session: session,
		device:  device,
		camera:  camera,
		norm:    norm,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	d.coalescer = NewCoalescer(debounce, d.fireDebounced)
	return d
}

// OnDispatch registers an observer for every routed command.
func (d *Dispatcher) OnDispatch(fn func(command string, transport models.Transport, ok bool)) {
	d.onDispatch = fn
}

// OnDebounced registers an observer for the outcome of debounced sends.
func (d *Dispatcher) OnDebounced(fn func(command string, res Result)) {
	d.onDebounce = fn
}

// Retarget points the dispatcher at a new session and device client.
func (d *Dispatcher) Retarget(session Sender, device *HTTPClient) {
	d.mu.Lock()
	d.session, d.device = session, device
	d.mu.Unlock()
}

// RetargetCamera points camera commands at a new camera client.
func (d *Dispatcher) RetargetCamera(camera *HTTPClient) {
	d.mu.Lock()
	d.camera = camera
	d.mu.Unlock()
}

func (d *Dispatcher) targets() (Sender, *HTTPClient, *HTTPClient) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session, d.device, d.camera
}

// Dispatch validates and sends cmd. Successful actuator commands are applied
// optimistically to the state model.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Result {
	session, device, camera := d.targets()

	host := hostOf(device)
	if _, ok := cmd.(CameraSetting); ok {
		host = hostOf(camera)
	}
	if err := Validate(cmd); err != nil {
		return Result{Err: newError(KindInvalidCommand, cmd.Name(), host, err)}
	}

	if cs, ok := cmd.(CameraSetting); ok {
		res := d.sendCamera(ctx, camera, cs)
		d.observe(cmd.Name(), models.TransportHTTP, res.Success)
		return res
	}

	if session != nil && session.Send(cmd) {
		d.applyOptimistic(cmd)
		d.observe(cmd.Name(), models.TransportWebSocket, true)
		return Result{Success: true, Message: "sent over websocket"}
	}

	res := d.sendHTTP(ctx, device, cmd)
	if res.Success {
		d.applyOptimistic(cmd)
		if _, ok := cmd.(GetStatus); ok && len(res.Body) > 0 && d.norm != nil {
			if err := d.norm.ApplyRaw(res.Body); err != nil && !errors.Is(err, errNoKnownFields) {
				d.log.Warnw("status_body_rejected", "host", host, "err", err)
			}
		}
	}
	d.observe(cmd.Name(), models.TransportHTTP, res.Success)
	return res
}

// Debounce records cmd as the display value for key and sends it once key has
// been quiet for the debounce delay.
func (d *Dispatcher) Debounce(key string, cmd Command) error {
	if err := Validate(cmd); err != nil {
		return err
	}
	d.coalescer.Submit(key, cmd)
	return nil
}

// Display returns the latest value submitted for a debounced key.
func (d *Dispatcher) Display(key string) (Command, bool) {
	return d.coalescer.Display(key)
}

// Close drops pending debounced sends and aborts in-flight ones.
func (d *Dispatcher) Close() {
	d.coalescer.Stop()
	d.cancel()
}

func (d *Dispatcher) fireDebounced(key string, cmd Command) {
	res := d.Dispatch(d.ctx, cmd)
	if !res.Success {
		d.log.Warnw("debounced_send_failed", "key", key, "command", cmd.Name(), "err", res.Err)
	}
	if d.onDebounce != nil {
		d.onDebounce(cmd.Name(), res)
	}
}

func (d *Dispatcher) sendHTTP(ctx context.Context, device *HTTPClient, cmd Command) Result {
	if device == nil {
		return Result{Err: newError(KindTransportUnavailable, cmd.Name(), "", errors.New("no device endpoint"))}
	}
	switch c := cmd.(type) {
	case GetStatus:
		return device.Status(ctx)
	case AutoMode:
		return device.SetAuto(ctx, c.Enable)
	case ScheduleMode:
		return device.SetSchedule(ctx, c.Enable)
	case PumpOn:
		return device.StartWatering(ctx)
	case PumpOff:
		return device.StopWatering(ctx)
	default:
		// set_interval and set_threshold have no HTTP route; they are pushed
		// from saved settings on the next WebSocket open.
		return Result{Err: newError(KindTransportUnavailable, cmd.Name(), device.Host(),
			errors.New("websocket not open and no HTTP route"))}
	}
}

func (d *Dispatcher) sendCamera(ctx context.Context, camera *HTTPClient, cs CameraSetting) Result {
	if camera == nil {
		return Result{Err: newError(KindTransportUnavailable, cs.Name(), "", errors.New("no camera endpoint"))}
	}
	timeout := defaultRequestTimeout
	if cs.Var == "led_intensity" {
		timeout = ledTimeout
	}
	return camera.Control(ctx, cs, timeout)
}

func (d *Dispatcher) applyOptimistic(cmd Command) {
	if d.norm == nil {
		return
	}
	switch c := cmd.(type) {
	case PumpOn:
		d.norm.ApplyOptimistic(setPumps(c.Pump, true))
	case PumpOff:
		d.norm.ApplyOptimistic(setPumps(c.Pump, false))
	case AutoMode:
		d.norm.ApplyOptimistic(func(a *models.Actuators) { a.AutoMode = c.Enable })
	case ScheduleMode:
		d.norm.ApplyOptimistic(func(a *models.Actuators) { a.ScheduleMode = c.Enable })
	case SetThreshold:
		d.norm.SetThresholds(c.Thresholds)
	}
}

// setPumps switches one pump, or every known pump for pump 0.
func setPumps(pump int, on bool) func(*models.Actuators) {
	return func(a *models.Actuators) {
		if a.Pumps == nil {
			a.Pumps = make(map[int]bool)
		}
		if pump != 0 {
			a.Pumps[pump] = on
			return
		}
		for p := range a.Pumps {
			a.Pumps[p] = on
		}
	}
}

func hostOf(c *HTTPClient) string {
	if c == nil {
		return ""
	}
	return c.Host()
}

func (d *Dispatcher) observe(command string, transport models.Transport, ok bool) {
	if d.onDispatch != nil {
		d.onDispatch(command, transport, ok)
	}
}

// Validate rejects commands the device would misapply.
func Validate(cmd Command) error {
	switch c := cmd.(type) {
	case SetThreshold:
		if !c.Thresholds.Valid() {
			return ErrInvalidThresholds
		}
	case SetInterval:
		if c.Seconds < 1 {
			return fmt.Errorf("interval must be at least 1 second, got %d", c.Seconds)
		}
	case PumpOn:
		if c.Pump < 0 {
			return fmt.Errorf("invalid pump %d", c.Pump)
		}
	case PumpOff:
		if c.Pump < 0 {
			return fmt.Errorf("invalid pump %d", c.Pump)
		}
	case CameraSetting:
		return validateCamera(c)
	}
	return nil
}

func validateCamera(c CameraSetting) error {
	if c.Var == "" {
		return errors.New("camera control name is empty")
	}
	switch c.Var {
	case "led_intensity":
		if c.Value < ledMin || c.Value > ledMax {
			return fmt.Errorf("led_intensity must be %d..%d, got %d", ledMin, ledMax, c.Value)
		}
	case "xclk":
		if c.Value < xclkMin || c.Value > xclkMax {
			return fmt.Errorf("xclk must be %d..%d MHz, got %d", xclkMin, xclkMax, c.Value)
		}
	}
	return nil
}
