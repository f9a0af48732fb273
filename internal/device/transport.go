package device

import (
	"sync"

	"agrismart/internal/models"
)

// Capabilities records which transports last proved reachable.
type Capabilities struct {
	WebSocket bool `json:"websocket"`
	HTTP      bool `json:"http"`
}

// Selector decides which transport is active for an endpoint.
type Selector struct {
	mu     sync.RWMutex
	active models.Transport
	caps   Capabilities
}

// NewSelector starts on WebSocket, the primary transport.
func NewSelector() *Selector {
	return &Selector{active: models.TransportWebSocket}
}

// Active returns the transport commands and polling should use.
func (s *Selector) Active() models.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// UseWebSocket switches to WebSocket and marks it capable.
// It reports whether the active transport changed.
func (s *Selector) UseWebSocket() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps.WebSocket = true
	changed := s.active != models.TransportWebSocket
	s.active = models.TransportWebSocket
	return changed
}

// UseHTTP switches to HTTP polling and marks WebSocket as not capable.
func (s *Selector) UseHTTP() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps.WebSocket = false
	changed := s.active != models.TransportHTTP
	s.active = models.TransportHTTP
	return changed
}

// MarkHTTP records the outcome of the last HTTP exchange.
func (s *Selector) MarkHTTP(ok bool) {
	s.mu.Lock()
	s.caps.HTTP = ok
	s.mu.Unlock()
}

// Capabilities returns the current capability flags.
func (s *Selector) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// MarkWebSocket records whether the last WebSocket handshake succeeded
// without changing the active transport.
func (s *Selector) MarkWebSocket(ok bool) {
	s.mu.Lock()
	s.caps.WebSocket = ok
	s.mu.Unlock()
}
