package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotAuthorized       = errors.New("apiclient.not_authorized")
	ErrNotFound            = errors.New("apiclient.not_found")
	ErrTransientUpstream   = errors.New("apiclient.transient_upstream")
	ErrInvalidResponseBody = errors.New("apiclient.invalid_response_body")
	ErrRemote              = errors.New("apiclient.remote_error")
	ErrTransport           = errors.New("apiclient.transport_error")
	ErrInvalidParams       = errors.New("apiclient.invalid_params")
)

// Kind classifies a failed call.
type Kind int

const (
	KindRemote Kind = iota
	KindNotAuthorized
	KindNotFound
	KindTransientUpstream
	KindInvalidResponseBody
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthorized:
		return "not authorized"
	case KindNotFound:
		return "not found"
	case KindTransientUpstream:
		return "transient upstream failure"
	case KindInvalidResponseBody:
		return "invalid response body"
	case KindTransport:
		return "transport failure"
	default:
		return "remote error"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotAuthorized:
		return ErrNotAuthorized
	case KindNotFound:
		return ErrNotFound
	case KindTransientUpstream:
		return ErrTransientUpstream
	case KindInvalidResponseBody:
		return ErrInvalidResponseBody
	case KindTransport:
		return ErrTransport
	default:
		return ErrRemote
	}
}

// Error is a failed upstream call.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	// Err is the underlying cause, such as a network or JSON decode error.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("apiclient: %s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf extracts the Kind of an *Error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// StatusCodeOf returns the upstream status code, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindNotAuthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusGatewayTimeout:
		return KindTransientUpstream
	default:
		return KindRemote
	}
}
