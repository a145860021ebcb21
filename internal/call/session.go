package call

import (
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
)

// State is the phase of the call session.
type State int

const (
	Idle State = iota
	Ringing
	Outgoing
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Outgoing:
		return "outgoing"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// RemoteTrack describes a track received from the counterpart.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     string
	Codec    string
}

// Session is a snapshot of the call.
type Session struct {
	State       State
	Counterpart string
	Media       protocol.MediaKind
	// Pending is set while local media is being acquired.
	Pending       bool
	HasLocalMedia bool
	HasPeer       bool
	RemoteTracks  []RemoteTrack
	// Since is when the session entered its current state.
	Since time.Time
}
