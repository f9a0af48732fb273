package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"
)

const (
	defaultRecoveryDelay = 30 * time.Second
	defaultRecoveryRetry = 15 * time.Second
	settingsPushTimeout  = 5 * time.Second
	notificationBuffer   = 64
)

// ManagerConfig configures a Manager. Zero durations fall back to defaults.
type ManagerConfig struct {
	Device           models.Endpoint
	Camera           models.Endpoint
	Zones            int
	Session          SessionConfig
	Poll             PollerConfig
	RecoveryDelay    time.Duration
	RecoveryRetry    time.Duration
	Debounce         time.Duration
	StaleAfter       time.Duration
	HandshakeTimeout time.Duration
	Dial             DialFunc
	HTTPClient       *http.Client
}

// SettingsSource supplies the saved settings pushed on every WebSocket open.
type SettingsSource interface {
	DeviceSettings(ctx context.Context) (models.Settings, error)
}

// Observer receives link events. Nil fields are skipped. Callbacks run on
// link goroutines and must not block.
type Observer struct {
	State      func(models.DeviceState)
	Connection func(state ConnectionState, transport models.Transport)
	HTTPResult func(path string, ok bool)
	Dispatched func(command string, transport models.Transport, ok bool)
	Malformed  func()
	Reconnect  func(attempt int)
}

// ProbeResult is the outcome of TestConnection.
type ProbeResult struct {
	OK        bool             `json:"ok"`
	Transport models.Transport `json:"transport,omitempty"`
	Message   string           `json:"message"`
}

// link is everything bound to one device endpoint.
type link struct {
	endpoint models.Endpoint
	session  *Session
	http     *HTTPClient
	poller   *Poller
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	pollCancel context.CancelFunc
}

// Manager owns the connection to one field controller and its camera.
type Manager struct {
	cfg      ManagerConfig
	log      *logger.Logger
	settings SettingsSource
	notifier Notifier

	norm       *Normalizer
	selector   *Selector
	dispatcher *Dispatcher
	monitor    *Monitor
	ph         *phWatch

	observers []Observer
	notes     chan Notification

	mu     sync.RWMutex
	link   *link
	camera *HTTPClient

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a manager. settings and notifier may be nil.
func NewManager(cfg ManagerConfig, settings SettingsSource, notifier Notifier, log *logger.Logger) *Manager {
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = defaultRecoveryDelay
	}
	if cfg.RecoveryRetry <= 0 {
		cfg.RecoveryRetry = defaultRecoveryRetry
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = WebSocketDialer(cfg.HandshakeTimeout)
	}

	m := &Manager{
		cfg:      cfg,
		log:      log,
		settings: settings,
		notifier: notifier,
		norm:     NewNormalizer(cfg.Zones),
		selector: NewSelector(),
		ph:       newPHWatch(),
		notes:    make(chan Notification, notificationBuffer),
	}
	m.norm.OnApply(m.onApply)
	if cfg.Camera.Host != "" {
		m.camera = m.newHTTPClient(cfg.Camera)
	}
	m.dispatcher = NewDispatcher(nil, nil, m.camera, m.norm, cfg.Debounce, log)
	m.dispatcher.OnDispatch(m.fanoutDispatch)
	m.dispatcher.OnDebounced(func(_ string, res Result) { m.notifyResult(res) })
	m.monitor = NewMonitor(m.norm, m.selector, m.sessionState, cfg.StaleAfter)
	return m
}

// AddObserver registers o. Call before Start.
func (m *Manager) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Start connects to the configured device. It returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.Device.Host == "" {
		return errors.New("device host is empty")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.notifyLoop()

	m.startLink(m.cfg.Device)
	return nil
}

// Close stops every goroutine the manager started. No reconnect or poll runs after it returns.
func (m *Manager) Close() {
	if m.cancel == nil {
		m.dispatcher.Close()
		return
	}
	m.mu.Lock()
	l := m.link
	m.link = nil
	m.mu.Unlock()
	if l != nil {
		m.stopLink(l)
	}
	m.dispatcher.Close()
	m.cancel()
	m.wg.Wait()
}

// SetEndpoint restarts the link against a new controller host.
func (m *Manager) SetEndpoint(host string) error {
	if host == "" {
		return errors.New("device host is empty")
	}
	if m.ctx == nil {
		return errors.New("manager not started")
	}

	m.mu.Lock()
	old := m.link
	if old != nil && old.endpoint.Host == host {
		m.mu.Unlock()
		return nil
	}
	m.link = nil
	ep := m.cfg.Device
	ep.Host = host
	m.cfg.Device = ep
	m.mu.Unlock()

	if old != nil {
		m.stopLink(old)
	}
	m.selector.UseWebSocket()
	m.log.Infow("device_endpoint_changed", "host", host)
	m.startLink(ep)
	return nil
}

// SetCameraEndpoint points camera commands at a new host.
func (m *Manager) SetCameraEndpoint(host string) {
	m.mu.Lock()
	ep := m.cfg.Camera
	ep.Host = host
	client := m.newHTTPClient(ep)
	m.cfg.Camera = ep
	m.camera = client
	m.mu.Unlock()

	m.dispatcher.RetargetCamera(client)
	m.log.Infow("camera_endpoint_changed", "host", host)
}

// Endpoint returns the current controller endpoint with its active transport.
func (m *Manager) Endpoint() models.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep := m.cfg.Device
	if m.link != nil {
		ep = m.link.endpoint
	}
	ep.Transport = m.selector.Active()
	return ep
}

// CameraEndpoint returns the camera endpoint.
func (m *Manager) CameraEndpoint() models.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Camera
}

// Snapshot returns the merged device state.
func (m *Manager) Snapshot() models.DeviceState {
	return m.norm.Snapshot()
}

// Health returns the current link health.
func (m *Manager) Health() HealthStatus {
	return m.monitor.Status()
}

// State returns the WebSocket session state.
func (m *Manager) State() ConnectionState {
	return m.sessionState()
}

// Dispatch sends cmd and surfaces timeouts and unreachable hosts to the notifier.
func (m *Manager) Dispatch(ctx context.Context, cmd Command) Result {
	res := m.dispatcher.Dispatch(ctx, cmd)
	m.notifyResult(res)
	return res
}

// Debounce coalesces rapid changes to a camera control.
func (m *Manager) Debounce(key string, cmd Command) error {
	return m.dispatcher.Debounce(key, cmd)
}

// Display returns the latest value submitted for a debounced control.
func (m *Manager) Display(key string) (Command, bool) {
	return m.dispatcher.Display(key)
}

// ApplyThresholds updates the local threshold model without contacting the device.
func (m *Manager) ApplyThresholds(t models.Thresholds) {
	m.norm.SetThresholds(t)
}

// Capture fetches a still from the camera.
func (m *Manager) Capture(ctx context.Context) ([]byte, string, error) {
	m.mu.RLock()
	camera := m.camera
	m.mu.RUnlock()
	if camera == nil {
		return nil, "", newError(KindTransportUnavailable, "GET /capture", "", errors.New("no camera endpoint"))
	}
	return camera.Capture(ctx)
}

// Stream opens the camera's live MJPEG feed; see HTTPClient.Stream.
func (m *Manager) Stream(ctx context.Context) (io.ReadCloser, string, error) {
	m.mu.RLock()
	camera := m.camera
	m.mu.RUnlock()
	if camera == nil {
		return nil, "", newError(KindTransportUnavailable, "GET /stream", "", errors.New("no camera endpoint"))
	}
	return camera.Stream(ctx)
}

// CameraInfo reads the camera identity document.
func (m *Manager) CameraInfo(ctx context.Context) Result {
	m.mu.RLock()
	camera := m.camera
	m.mu.RUnlock()
	if camera == nil {
		return Result{Err: newError(KindTransportUnavailable, "GET /device", "", errors.New("no camera endpoint"))}
	}
	return camera.DeviceInfo(ctx)
}

// TestConnection checks the controller: an open socket, then a fresh
// WebSocket handshake, then HTTP /ping.
func (m *Manager) TestConnection(ctx context.Context) ProbeResult {
	l := m.current()
	if l == nil {
		return ProbeResult{Message: "manager not started"}
	}
	if l.session.State().Kind == StateConnected {
		return ProbeResult{OK: true, Transport: models.TransportWebSocket, Message: "websocket connection active"}
	}

	pctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	conn, err := m.cfg.Dial(pctx, l.endpoint.WebSocketURL())
	cancel()
	if err == nil {
		_ = conn.Close()
		m.selector.MarkWebSocket(true)
		l.session.Connect(l.ctx)
		return ProbeResult{OK: true, Transport: models.TransportWebSocket, Message: "websocket handshake succeeded"}
	}
	m.selector.MarkWebSocket(false)
	m.log.Debugw("probe_ws_failed", "host", l.endpoint.Host, "err", err)

	res := l.http.Ping(ctx)
	m.selector.MarkHTTP(res.Success)
	if res.Success {
		return ProbeResult{OK: true, Transport: models.TransportHTTP, Message: "HTTP ping succeeded"}
	}
	return ProbeResult{Message: fmt.Sprintf("connection test failed: %v", res.AsError())}
}

func (m *Manager) newHTTPClient(ep models.Endpoint) *HTTPClient {
	c := NewHTTPClient(ep, m.cfg.HTTPClient, m.log)
	c.OnResult(m.fanoutHTTP)
	return c
}

func (m *Manager) current() *link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.link
}

func (m *Manager) sessionState() ConnectionState {
	if l := m.current(); l != nil {
		return l.session.State()
	}
	return ConnectionState{Kind: StateDisconnected}
}

func (m *Manager) startLink(ep models.Endpoint) {
	l := &link{endpoint: ep, http: m.newHTTPClient(ep)}
	l.ctx, l.cancel = context.WithCancel(m.ctx)
	l.poller = NewPoller(l.http, m.cfg.Poll, m.applyStatus, m.log)
	l.session = NewSession(ep, m.cfg.Session, m.cfg.Dial, SessionHooks{
		OnOpen:    func() { m.onOpen(l) },
		OnMessage: m.onMessage,
		OnState:   func(st ConnectionState) { m.onState(l, st) },
		OnFailed:  func() { m.onFailed(l) },
	}, m.log)

	m.mu.Lock()
	m.link = l
	m.mu.Unlock()
	m.dispatcher.Retarget(l.session, l.http)

	l.session.Connect(l.ctx)
}

func (m *Manager) stopLink(l *link) {
	l.stopPolling()
	l.session.Close()
	l.cancel()
}

func (l *link) stopPolling() {
	l.mu.Lock()
	cancel := l.pollCancel
	l.pollCancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) onOpen(l *link) {
	m.selector.UseWebSocket()
	l.stopPolling()
	l.session.Send(GetStatus{})
	m.notify(Notification{Level: LevelSuccess, Host: l.endpoint.Host,
		Message: "connected to " + l.endpoint.Host + " over websocket"})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pushSettings(l)
	}()
}

// pushSettings sends the saved interval and thresholds; they have no HTTP
// route, so every open re-syncs them.
func (m *Manager) pushSettings(l *link) {
	if m.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, settingsPushTimeout)
	defer cancel()

	s, err := m.settings.DeviceSettings(ctx)
	if err != nil {
		m.log.Warnw("settings_load_failed", "host", l.endpoint.Host, "err", err)
		return
	}
	if s.Interval > 0 {
		l.session.Send(SetInterval{Seconds: s.Interval})
	}
	if s.Thresholds.Valid() {
		if l.session.Send(SetThreshold{Thresholds: s.Thresholds}) {
			m.norm.SetThresholds(s.Thresholds)
		}
	}
}

func (m *Manager) onMessage(data []byte) {
	err := m.norm.ApplyRaw(data)
	switch {
	case err == nil:
	case errors.Is(err, errNoKnownFields):
		m.log.Debugw("ws_frame_ignored", "bytes", len(data))
	default:
		m.log.Warnw("ws_frame_malformed", "err", err, "bytes", len(data))
		m.fanoutMalformed()
	}
}

// applyStatus merges a successful /status reply. A plain-text reply reaches
// here with an empty body and, like a JSON ack without telemetry, is not a
// malformed frame.
func (m *Manager) applyStatus(body json.RawMessage) {
	m.selector.MarkHTTP(true)
	if len(body) == 0 {
		m.log.Debugw("http_status_ignored", "reason", "no json body")
		return
	}
	err := m.norm.ApplyRaw(body)
	switch {
	case err == nil:
	case errors.Is(err, errNoKnownFields):
		m.log.Debugw("http_status_ignored", "bytes", len(body))
	default:
		m.log.Warnw("http_status_malformed", "err", err, "bytes", len(body))
		m.fanoutMalformed()
	}
}

func (m *Manager) onState(l *link, st ConnectionState) {
	if m.current() != l {
		return
	}
	if st.Kind == StateReconnecting {
		m.notify(Notification{Level: LevelInfo, Host: l.endpoint.Host,
			Message: fmt.Sprintf("reconnecting to %s (attempt %d, in %s)", l.endpoint.Host, st.Attempt, st.Backoff)})
		for _, o := range m.observers {
			if o.Reconnect != nil {
				o.Reconnect(st.Attempt)
			}
		}
	}
	m.fanoutConnection(st)
}

func (m *Manager) onFailed(l *link) {
	if m.current() != l {
		return
	}
	m.selector.UseHTTP()
	m.fanoutConnection(l.session.State())
	m.notify(Notification{Level: LevelWarning, Host: l.endpoint.Host,
		Message: "websocket unavailable on " + l.endpoint.Host + ", switching to HTTP polling"})
	m.startPolling(l)
}

func (m *Manager) startPolling(l *link) {
	l.mu.Lock()
	if l.pollCancel != nil {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.pollCancel = cancel
	l.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pollLoop(ctx, l)
	}()
}

// pollLoop runs the poller; after it gives up, it waits RecoveryDelay and
// pings every RecoveryRetry until the device answers, then polls again.
func (m *Manager) pollLoop(ctx context.Context, l *link) {
	for {
		err := l.poller.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		m.selector.MarkHTTP(false)
		var de *Error
		if errors.As(err, &de) {
			m.notifyError(de)
		}
		if !m.recoverHTTP(ctx, l) {
			return
		}
	}
}

func (m *Manager) recoverHTTP(ctx context.Context, l *link) bool {
	delay := m.cfg.RecoveryDelay
	for {
		if !sleepCtx(ctx, delay) {
			return false
		}
		delay = m.cfg.RecoveryRetry

		m.log.Infow("http_recovery_ping", "host", l.endpoint.Host)
		res := l.http.Ping(ctx)
		if res.Success {
			m.selector.MarkHTTP(true)
			m.notify(Notification{Level: LevelSuccess, Host: l.endpoint.Host,
				Message: "HTTP connection to " + l.endpoint.Host + " re-established"})
			// the socket may be back as well
			l.session.Connect(l.ctx)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		m.log.Warnw("http_recovery_failed", "host", l.endpoint.Host, "retry_in", m.cfg.RecoveryRetry, "err", res.Err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) notifyResult(res Result) {
	if res.Err != nil {
		m.notifyError(res.Err)
	}
}

func (m *Manager) notifyError(err *Error) {
	if n, ok := notificationFor(err); ok {
		m.notify(n)
	}
}

// notify queues n without blocking; the queue is drained in order by notifyLoop.
func (m *Manager) notify(n Notification) {
	m.log.Infow("device_notification", "level", n.Level, "host", n.Host, "zone", n.Zone, "message", n.Message)
	if m.notifier == nil {
		return
	}
	select {
	case m.notes <- n:
	default:
		m.log.Warnw("notification_dropped", "host", n.Host, "message", n.Message)
	}
}

func (m *Manager) notifyLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case n := <-m.notes:
			if m.notifier != nil {
				m.notifier.Notify(n)
			}
		}
	}
}

// onApply runs for every published state: observers first, then pH alerts
// for the controller the state came from.
func (m *Manager) onApply(st models.DeviceState) {
	m.fanoutState(st)
	alerts := m.ph.check(m.Endpoint().Host, st)
	for _, n := range alerts {
		m.notify(n)
	}
}

func (m *Manager) fanoutState(st models.DeviceState) {
	for _, o := range m.observers {
		if o.State != nil {
			o.State(st)
		}
	}
}

func (m *Manager) fanoutConnection(st ConnectionState) {
	transport := m.selector.Active()
	for _, o := range m.observers {
		if o.Connection != nil {
			o.Connection(st, transport)
		}
	}
}

func (m *Manager) fanoutHTTP(path string, ok bool) {
	for _, o := range m.observers {
		if o.HTTPResult != nil {
			o.HTTPResult(path, ok)
		}
	}
}

func (m *Manager) fanoutDispatch(command string, transport models.Transport, ok bool) {
	for _, o := range m.observers {
		if o.Dispatched != nil {
			o.Dispatched(command, transport, ok)
		}
	}
}

func (m *Manager) fanoutMalformed() {
	for _, o := range m.observers {
		if o.Malformed != nil {
			o.Malformed()
		}
	}
}
