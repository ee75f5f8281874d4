package logger

import (
	"log/slog"
	"time"
)

// sessionIDPrefix is how many characters of a session id are logged.
const sessionIDPrefix = 8

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// Empty ids produce an empty Attr.
func UserID(id string) slog.Attr {
	return nonEmpty("user_id", id)
}

// ClientID records the current client (team) under the key "client_id".
func ClientID(id string) slog.Attr {
	return nonEmpty("client_id", id)
}

// OrganizationID records the organization under the key "organization_id".
func OrganizationID(id string) slog.Attr {
	return nonEmpty("organization_id", id)
}

// SessionID logs a short prefix of a session id, never the full value.
func SessionID(id string) slog.Attr {
	if len(id) > sessionIDPrefix {
		id = id[:sessionIDPrefix]
	}
	return nonEmpty("session", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return nonEmpty("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Duration records d under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Attempt records the 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Status records an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int("status", code)
}

// Method and Path describe an outgoing or incoming HTTP call.
func Method(m string) slog.Attr {
	return slog.String("method", m)
}

// Path records a request path.
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

func nonEmpty(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}
