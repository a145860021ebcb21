package call

import (
	"context"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Sender is the outbound signaling path.
type Sender interface {
	Send(*protocol.Envelope) error
	Username() string
}

// LocalMedia is a set of captured local tracks. Close stops capture.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// MediaSource acquires local media. Acquire may block; it is never called on
// the event loop. ctx bounds the acquisition only, not the returned media.
type MediaSource interface {
	Acquire(ctx context.Context, kind protocol.MediaKind) (LocalMedia, error)
}

// Peer is the part of a peer connection the machine drives.
// *webrtc.PeerConnection satisfies it.
type Peer interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// PeerHandlers are invoked from the peer's own goroutines.
type PeerHandlers struct {
	OnICECandidate    func(webrtc.ICECandidateInit)
	OnTrack           func(RemoteTrack)
	OnConnectionState func(webrtc.PeerConnectionState)
}

// PeerFactory builds a peer carrying the given local tracks.
type PeerFactory interface {
	NewPeer(tracks []webrtc.TrackLocal, h PeerHandlers) (Peer, error)
}
