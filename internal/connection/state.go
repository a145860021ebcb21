package connection

import "time"

// Status is the lifecycle phase of the server connection.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// State is a snapshot of the connection lifecycle.
type State struct {
	Status Status
	// LastHeartbeatAck is stamped locally whenever a heartbeat goes out.
	// Zero until the first one.
	LastHeartbeatAck time.Time
	ReconnectAttempt int
}

// StateEvent is passed to state observers on every status change.
type StateEvent struct {
	Old State
	New State
}
