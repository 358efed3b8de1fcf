package booking

import (
	"errors"
	"fmt"
)

// Kind classifies booking API failures.
type Kind int

const (
	// KindConnectivity: the service could not be reached at all.
	KindConnectivity Kind = iota + 1
	// KindStatus: the service answered with a non-success HTTP status.
	KindStatus
	// KindMalformed: the body was not JSON or not of the expected shape.
	KindMalformed
	// KindServer: the service reported an error message of its own.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation that fails. Error() is meant to
// be shown to the user as-is.
type Error struct {
	Kind    Kind
	Op      string // "fetch", "create" or "health"
	Status  int    // HTTP status, 0 if none was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 when err is not a booking error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// ErrUnhealthy is wrapped by Health when the probe gets a non-success status.
var ErrUnhealthy = errors.New("booking service is not healthy")

// truncateBody shortens a response body for inclusion in a message.
func truncateBody(b []byte, n int) string {
	r := []rune(string(b))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
