package device

import (
	"errors"
	"fmt"
)

// Kind classifies link failures so callers can pick how loudly to report them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransportUnavailable: socket not open; handled by falling back to HTTP.
	KindTransportUnavailable
	// KindTimeout: request aborted after its deadline.
	KindTimeout
	// KindNetworkUnreachable: dial or fetch failure.
	KindNetworkUnreachable
	// KindMalformedResponse: payload could not be parsed. Logged only.
	KindMalformedResponse
	// KindMaxRetriesExceeded: a reconnect or poll cycle gave up.
	KindMaxRetriesExceeded
	// KindHTTPStatus: device answered with a non-2xx status.
	KindHTTPStatus
	// KindInvalidCommand: command rejected before it reached the device.
	KindInvalidCommand
	// KindRejected: device answered {"success": false}.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransportUnavailable:
		return "transport_unavailable"
	case KindTimeout:
		return "timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindMalformedResponse:
		return "malformed_response"
	case KindMaxRetriesExceeded:
		return "max_retries_exceeded"
	case KindHTTPStatus:
		return "http_status"
	case KindInvalidCommand:
		return "invalid_command"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is a link failure tied to a device host.
type Error struct {
	Kind   Kind
	Op     string // e.g. "GET /status", "dial", "set_threshold"
	Host   string
	Status int // HTTP status for KindHTTPStatus
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s (device %s)", e.Op, e.Kind, e.Host)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

var (
	// ErrInvalidThresholds is returned when dry >= wet or acidic >= alkaline.
	ErrInvalidThresholds = errors.New("invalid thresholds: humidity_dry must be < humidity_wet and ph_acidic < ph_alkaline")
	errNotObject         = errors.New("frame is not a JSON object")
	errNoKnownFields     = errors.New("frame has no recognized fields")
)

func newError(kind Kind, op, host string, err error) *Error {
	return &Error{Kind: kind, Op: op, Host: host, Err: err}
}
