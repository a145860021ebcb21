package protocol

import "strings"

// UserStatus is the presence status reported for a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusAway    UserStatus = "away"
	StatusOffline UserStatus = "offline"
)

// MediaKind selects the local media a call needs.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

// WantsVideo reports whether k captures a camera track in addition to audio.
func (k MediaKind) WantsVideo() bool {
	return k == MediaVideo
}

// User is one entry of a presence list.
type User struct {
	ID          string     `json:"id,omitempty"`
	Username    string     `json:"username"`
	Status      UserStatus `json:"status,omitempty"`
	LastSeen    Timestamp  `json:"lastSeen,omitzero"`
	CurrentRoom string     `json:"currentRoom,omitempty"`
}

// Key identifies the user inside a directory. The server does not always
// send ids, so the username stands in for a missing one.
func (u User) Key() string {
	if u.ID != "" {
		return u.ID
	}
	return u.Username
}

// IdentityPayload is carried by LOGIN, PING and the ONLINE_USERS request.
type IdentityPayload struct {
	Username string `json:"username"`
}

// RoomPayload is carried by JOIN and LEAVE in both directions.
type RoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	RoomName string `json:"roomName,omitempty"`
}

// RoomPresenceRequest asks the server for the members of one room.
type RoomPresenceRequest struct {
	RoomID string `json:"roomId"`
}

// OnlineUsersPayload is the server's full snapshot of connected users.
type OnlineUsersPayload struct {
	Users []User `json:"users"`
}

// RoomPresencePayload is the server's full snapshot of one room.
type RoomPresencePayload struct {
	RoomID string `json:"roomId"`
	Users  []User `json:"users"`
}

// SystemPayload is a server-originated notice.
type SystemPayload struct {
	Message          string `json:"message"`
	NotificationType string `json:"notificationType,omitempty"`
}

// ChatPayload is one line of room conversation.
type ChatPayload struct {
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content"`
}

// CallRequestPayload starts a call. Type mirrors Kind because the browser
// client reads the media kind from "type".
type CallRequestPayload struct {
	To   string    `json:"to"`
	From string    `json:"from"`
	Kind MediaKind `json:"kind,omitempty"`
	Type MediaKind `json:"type,omitempty"`
}

// Media returns the requested media kind, defaulting to audio.
func (p CallRequestPayload) Media() MediaKind {
	for _, k := range []MediaKind{p.Kind, p.Type} {
		if k := MediaKind(strings.ToLower(string(k))); k.Valid() {
			return k
		}
	}
	return MediaAudio
}

// CallResponsePayload answers a CALL_REQUEST.
type CallResponsePayload struct {
	To       string `json:"to"`
	Accepted bool   `json:"accepted"`
}

// SessionDescriptionPayload carries an SDP offer or answer.
type SessionDescriptionPayload struct {
	To   string `json:"to,omitempty"`
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload carries one trickled ICE candidate. Field names follow
// RTCIceCandidateInit so browser peers can consume it unchanged.
type ICECandidatePayload struct {
	To               string  `json:"to,omitempty"`
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// HangupPayload ends a call.
type HangupPayload struct {
	To string `json:"to,omitempty"`
}
