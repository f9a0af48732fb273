package device

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"agrismart/internal/logger"
	"agrismart/internal/models"

	"github.com/gorilla/websocket"
)

// Session timing defaults.
const (
	defaultMaxAttempts      = 5
	defaultBackoffStep      = 5 * time.Second
	defaultBackoffMax       = 30 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	writeWait               = 10 * time.Second
	maxFrameSize            = 1 << 14 // 16 KB
	sessionEventBuffer      = 64
)

// Conn is the subset of *websocket.Conn a Session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a WebSocket connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebSocketDialer dials with gorilla/websocket.
func WebSocketDialer(handshakeTimeout time.Duration) DialFunc {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return func(ctx context.Context, url string) (Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(maxFrameSize)
		return conn, nil
	}
}

// SessionConfig tunes reconnect behavior.
type SessionConfig struct {
	MaxAttempts int
	BackoffStep time.Duration
	BackoffMax  time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = defaultBackoffStep
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	return c
}

// SessionHooks are invoked from the session's event loop and must not block.
type SessionHooks struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnState   func(ConnectionState)
	OnFailed  func()
}

type eventKind int

const (
	evConnect eventKind = iota
	evOpen
	evMessage
	evError
	evClose
	evRetry
	evShutdown
)

type sessionEvent struct {
	kind eventKind
	gen  uint64
	conn Conn
	data []byte
	err  error
}

// Session owns the lifecycle of one WebSocket connection to a device.
// All transitions happen on a single event-loop goroutine.
type Session struct {
	url   string
	host  string
	cfg   SessionConfig
	dial  DialFunc
	hooks SessionHooks
	log   *logger.Logger

	events    chan sessionEvent
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// owned by the event loop
	gen      uint64
	attempts int
	timer    *time.Timer

	mu      sync.RWMutex
	state   ConnectionState
	conn    Conn
	writeMu sync.Mutex
}

// NewSession prepares a session for endpoint. Nothing is dialed until Connect.
func NewSession(endpoint models.Endpoint, cfg SessionConfig, dial DialFunc, hooks SessionHooks, log *logger.Logger) *Session {
	if dial == nil {
		dial = WebSocketDialer(defaultHandshakeTimeout)
	}
	return &Session{
		url:    endpoint.WebSocketURL(),
		host:   endpoint.Host,
		cfg:    cfg.withDefaults(),
		dial:   dial,
		hooks:  hooks,
		log:    log,
		events: make(chan sessionEvent, sessionEventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect starts (or restarts after Failed) the connection. Calling it while
// connecting or connected is a no-op.
func (s *Session) Connect(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.run()
	})
	s.post(sessionEvent{kind: evConnect})
}

// Send writes cmd as a JSON text frame. It returns false when the socket is
// not open or the write fails; callers fall back to HTTP.
func (s *Session) Send(cmd Command) bool {
	s.mu.RLock()
	conn, kind := s.conn, s.state.Kind
	s.mu.RUnlock()
	if conn == nil || kind != StateConnected {
		return false
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		s.log.Errorw("ws_marshal_failed", "command", cmd.Name(), "err", err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Warnw("ws_send_failed", "command", cmd.Name(), "host", s.host, "err", err)
		return false
	}
	s.log.Debugw("ws_sent", "command", cmd.Name(), "host", s.host)
	return true
}

// Close tears the session down. No reconnect fires after Close returns.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		started := true
		s.startOnce.Do(func() {
			started = false
			close(s.done)
		})
		if started {
			s.post(sessionEvent{kind: evShutdown})
			<-s.done
		}
	})
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// post delivers ev to the loop. It reports false once the loop has exited.
func (s *Session) post(ev sessionEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case ev := <-s.events:
			if ev.kind == evShutdown {
				s.shutdown()
				return
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev sessionEvent) {
	switch ev.kind {
	case evConnect:
		switch s.State().Kind {
		case StateConnecting, StateConnected:
			return
		}
		s.stopTimer()
		s.attempts = 0
		s.dialAsync()

	case evRetry:
		if ev.gen != s.gen || s.State().Kind != StateReconnecting {
			return
		}
		s.dialAsync()

	case evOpen:
		if ev.gen != s.gen {
			_ = ev.conn.Close()
			return
		}
		s.attempts = 0
		s.mu.Lock()
		s.conn = ev.conn
		s.mu.Unlock()
		s.setState(ConnectionState{Kind: StateConnected})
		s.log.Infow("ws_open", "url", s.url)
		go s.readLoop(ev.gen, ev.conn)
		if s.hooks.OnOpen != nil {
			s.hooks.OnOpen()
		}

	case evMessage:
		if ev.gen != s.gen {
			return
		}
		if s.hooks.OnMessage != nil {
			s.hooks.OnMessage(ev.data)
		}

	case evError:
		if ev.gen != s.gen {
			return
		}
		s.log.Warnw("ws_error", "url", s.url, "err", ev.err)

	case evClose:
		if ev.gen != s.gen {
			return
		}
		s.onClose()
	}
}

// dialAsync starts a new connection generation. A failed dial always posts
// an error followed by a close, so Connecting never sticks.
func (s *Session) dialAsync() {
	s.gen++
	gen := s.gen
	s.setState(ConnectionState{Kind: StateConnecting})
	s.log.Debugw("ws_connecting", "url", s.url, "attempt", s.attempts)

	go func() {
		conn, err := s.dial(s.ctx, s.url)
		if err != nil {
			s.post(sessionEvent{kind: evError, gen: gen, err: err})
			s.post(sessionEvent{kind: evClose, gen: gen})
			return
		}
		if !s.post(sessionEvent{kind: evOpen, gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

func (s *Session) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.post(sessionEvent{kind: evError, gen: gen, err: err})
			}
			s.post(sessionEvent{kind: evClose, gen: gen})
			return
		}
		if !s.post(sessionEvent{kind: evMessage, gen: gen, data: data}) {
			return
		}
	}
}

func (s *Session) onClose() {
	s.dropConn(false)
	s.setState(ConnectionState{Kind: StateDisconnected})
	s.log.Infow("ws_closed", "url", s.url, "attempts", s.attempts)

	if s.attempts < s.cfg.MaxAttempts {
		s.attempts++
		delay := Backoff(s.attempts, s.cfg.BackoffStep, s.cfg.BackoffMax)
		s.setState(ConnectionState{Kind: StateReconnecting, Attempt: s.attempts, Backoff: delay})
		s.log.Infow("ws_reconnect_scheduled", "url", s.url, "attempt", s.attempts,
			"max_attempts", s.cfg.MaxAttempts, "backoff", delay)
		gen := s.gen
		s.timer = time.AfterFunc(delay, func() {
			s.post(sessionEvent{kind: evRetry, gen: gen})
		})
		return
	}

	s.setState(ConnectionState{Kind: StateFailed})
	s.log.Warnw("ws_failed", "url", s.url, "attempts", s.attempts)
	if s.hooks.OnFailed != nil {
		s.hooks.OnFailed()
	}
}

func (s *Session) shutdown() {
	s.cancel()
	s.stopTimer()
	s.gen++
	s.dropConn(true)
	s.setState(ConnectionState{Kind: StateDisconnected})
	s.log.Infow("ws_session_closed", "url", s.url)
}

func (s *Session) dropConn(graceful bool) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if graceful {
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
	}
	_ = conn.Close()
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) setState(st ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}
