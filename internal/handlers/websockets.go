package handlers

import (
	"net/http"
	"strconv"
	"time"

	"agrismart/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 5 * time.Second
	maxInterval      = 60 * time.Second
	maxIntervalMilli = 60_000
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect sends a state snapshot, then forwards hub updates. A connection
// heartbeat every interval keeps the stale indicator ageing while the device
// is silent.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	var updates hub.Subscription
	if h.events != nil {
		updates = h.events.Subscribe(hub.TopicState, hub.TopicConnection, hub.TopicNotification)
		defer h.events.Unsubscribe(updates)
	}

	heartbeat := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		heartbeat.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	if err := h.write(conn, wsEnvelope{Type: hub.TopicState, Data: h.services.Monitoring.GetState(ctx)}); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-heartbeat.C:
			if err := h.write(conn, wsEnvelope{Type: hub.TopicConnection, Data: h.services.Monitoring.Connection(ctx)}); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		case v, ok := <-updates:
			if !ok {
				// hub closed during shutdown
				return
			}
			msg, ok := v.(hub.Message)
			if !ok {
				continue
			}
			if err := h.write(conn, h.envelopeFor(c, msg)); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// envelopeFor turns a hub message into what the dashboard renders. State
// frames are re-read through Monitoring so health rides along.
func (h *Handler) envelopeFor(c *gin.Context, msg hub.Message) wsEnvelope {
	switch msg.Topic {
	case hub.TopicState:
		return wsEnvelope{Type: hub.TopicState, Data: h.services.Monitoring.GetState(c.Request.Context())}
	case hub.TopicConnection:
		return wsEnvelope{Type: hub.TopicConnection, Data: h.services.Monitoring.Connection(c.Request.Context())}
	default:
		return wsEnvelope{Type: msg.Topic, Data: msg.Data}
	}
}

func (h *Handler) write(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return defaultInterval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Infow("ws_read_closed", "err", err)
			return
		}
	}
}
