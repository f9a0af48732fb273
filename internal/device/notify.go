package device

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing link event. Host is always set; Zone is
// set for per-zone sensor alerts and zero otherwise.
type Notification struct {
	Level   Level
	Kind    Kind
	Host    string
	Zone    int
	Message string
}

// Notifier receives link notifications in the order they occur.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

const maxRetriesGuidance = "check that the controller is powered on and that the saved IP address is correct"

// notificationFor maps a failed result to the notification the user sees.
// Only timeouts and unreachable hosts are surfaced.
func notificationFor(err *Error) (Notification, bool) {
	if err == nil {
		return Notification{}, false
	}
	switch err.Kind {
	case KindTimeout:
		return Notification{Level: LevelWarning, Kind: err.Kind, Host: err.Host,
			Message: "request to " + err.Host + " timed out"}, true
	case KindNetworkUnreachable:
		return Notification{Level: LevelError, Kind: err.Kind, Host: err.Host,
			Message: "cannot reach device at " + err.Host}, true
	case KindMaxRetriesExceeded:
		return Notification{Level: LevelError, Kind: err.Kind, Host: err.Host,
			Message: "lost contact with " + err.Host + " after repeated failures; " + maxRetriesGuidance}, true
	default:
		return Notification{}, false
	}
}
