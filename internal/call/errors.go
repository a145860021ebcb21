package call

import (
	"errors"
	"fmt"
)

var (
	ErrBusy             = errors.New("already in a call")
	ErrNoIncomingCall   = errors.New("no incoming call")
	ErrNotInCall        = errors.New("not in a call")
	ErrNoTarget         = errors.New("call target is empty")
	ErrSelfCall         = errors.New("cannot call yourself")
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrRejected         = errors.New("call declined")
	ErrCancelled        = errors.New("call cancelled")
	ErrNegotiation      = errors.New("session negotiation failed")
)

// Error carries the operation a call failure happened in.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Peer != "" {
		msg += " " + e.Peer
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", msg, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func wrapError(op, peer string, err error, cause error) *Error {
	e := &Error{Op: op, Peer: peer, Err: err}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}
