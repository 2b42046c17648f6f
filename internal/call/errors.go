package call

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrSignalingError   = errors.New("signaling server error")
	ErrTransportClosed  = errors.New("signaling transport closed")
	ErrICEFailed        = errors.New("ice connection failed")
	ErrNoControlChannel = errors.New("control channel not open")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

// Error is the error type surfaced through the OnError notification. State
// records the session state at the moment of failure.
type Error struct {
	Op      string
	State   State
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, state State, err error) *Error {
	return &Error{Op: op, State: state, Err: err}
}

func WrapError(op string, state State, err error, details string) *Error {
	return &Error{Op: op, State: state, Err: err, Details: details}
}
