package battlemap

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a session or relay failure. Glue layers map kinds to
// HTTP status codes; the core only ever surfaces one of these.
type Kind int

const (
	// KindSessionLaunch means the browser process failed to start.
	KindSessionLaunch Kind = iota + 1
	// KindNavigation means a required page failed to load.
	KindNavigation
	// KindFormNotFound means expected login markup was absent. Usually an
	// upstream UI change, needs human attention.
	KindFormNotFound
	// KindLoginFailed means credentials were submitted but the
	// authenticated marker never appeared.
	KindLoginFailed
	// KindUnauthorized means an API call was rejected even after one
	// re-authentication attempt.
	KindUnauthorized
	// KindRemoteCrash means the remote application returned a server error.
	KindRemoteCrash
	// KindSessionCrash means the browser process itself became unusable.
	KindSessionCrash
	// KindRequestFailed is the catch-all for unclassified failures.
	KindRequestFailed
)

func (k Kind) String() string {
	switch k {
	case KindSessionLaunch:
		return "session-launch"
	case KindNavigation:
		return "navigation"
	case KindFormNotFound:
		return "form-not-found"
	case KindLoginFailed:
		return "login-failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindRemoteCrash:
		return "remote-crash"
	case KindSessionCrash:
		return "session-crash"
	case KindRequestFailed:
		return "request-failed"
	default:
		return "unknown"
	}
}

// Error is the classified failure surfaced by the session controller.
type Error struct {
	Kind    Kind
	Status  int // remote HTTP status when one was seen, 0 otherwise
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("battlemap: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("battlemap: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the failure kind to a response status for the relay layer.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRemoteCrash:
		return http.StatusBadGateway
	case KindSessionCrash, KindSessionLaunch, KindNavigation,
		KindFormNotFound, KindLoginFailed:
		return http.StatusServiceUnavailable
	default:
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, status int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Status: status, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf extracts the failure kind from an error chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
