package device

import (
	"context"
	"errors"
)

var (
	// ErrConnection indicates that the serial port could not be opened or reopened.
	ErrConnection = errors.New("connection error")

	// ErrTransport indicates an I/O failure while writing to or reading from the port.
	ErrTransport = errors.New("transport error")

	// ErrProtocol indicates that a response did not match the expected grammar.
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout indicates that no complete response arrived within the allowed time.
	ErrTimeout = errors.New("timeout")

	// ErrSafetyViolation indicates that an interlock refused a hazardous action.
	ErrSafetyViolation = errors.New("safety violation")
)

// Outcome is the classification of a completed (or failed) device operation.
type Outcome int

const (
	// Success means the response matched the expected grammar.
	Success Outcome = iota
	// Mismatch means a response arrived but did not match the expected grammar.
	Mismatch
	// Timeout means nothing (or nothing complete) arrived in time.
	Timeout
	// TransportFailure means an I/O error occurred on the link.
	TransportFailure
	// ConnectionFailure means the link could not be opened.
	ConnectionFailure
	// SafetyRefusal means an interlock refused the operation.
	SafetyRefusal
	// Cancelled means the caller's context ended before the operation started.
	Cancelled
	// Unclassified is any other error.
	Unclassified
)

// String returns string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Mismatch:
		return "mismatch"
	case Timeout:
		return "timeout"
	case TransportFailure:
		return "transport-error"
	case ConnectionFailure:
		return "connection-error"
	case SafetyRefusal:
		return "safety-violation"
	case Cancelled:
		return "cancelled"
	default:
		return "unclassified"
	}
}

// Classify maps err onto the error taxonomy. A nil error is Success.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrSafetyViolation):
		return SafetyRefusal
	case errors.Is(err, ErrConnection):
		return ConnectionFailure
	case errors.Is(err, ErrTimeout):
		return Timeout
	case errors.Is(err, ErrProtocol):
		return Mismatch
	case errors.Is(err, ErrTransport):
		return TransportFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled
	default:
		return Unclassified
	}
}
