package device

import (
	"fmt"
	"time"
)

// StateKind is the tag of a ConnectionState.
type StateKind int

const (
	StateDisconnected StateKind = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// ConnectionState is the WebSocket session state. Attempt and Backoff are
// only meaningful for StateReconnecting.
type ConnectionState struct {
	Kind    StateKind
	Attempt int
	Backoff time.Duration
}

func (s ConnectionState) String() string {
	if s.Kind == StateReconnecting {
		return fmt.Sprintf("reconnecting(attempt=%d, backoff=%s)", s.Attempt, s.Backoff)
	}
	return s.Kind.String()
}

// Backoff returns the delay before reconnect attempt n (1-indexed):
// step*n, capped at max.
func Backoff(attempt int, step, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := step * time.Duration(attempt)
	if d > max {
		return max
	}
	return d
}
