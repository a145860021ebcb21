package protocol

import (
	"encoding/json"
	"time"
)

// Kind is the envelope tag carried in the "type" field of every frame.
type Kind string

// Envelope kinds.
const (
	KindLogin        Kind = "LOGIN"
	KindPing         Kind = "PING"
	KindJoin         Kind = "JOIN"
	KindLeave        Kind = "LEAVE"
	KindOnlineUsers  Kind = "ONLINE_USERS"
	KindRoomPresence Kind = "ROOM_PRESENCE"
	KindSystem       Kind = "SYSTEM"
	KindChat         Kind = "CHAT"

	KindCallRequest  Kind = "CALL_REQUEST"
	KindCallResponse Kind = "CALL_RESPONSE"
	KindOffer        Kind = "OFFER"
	KindAnswer       Kind = "ANSWER"
	KindICECandidate Kind = "ICE_CANDIDATE"
	KindCallHangup   Kind = "CALL_HANGUP"
)

// IsPresence reports whether k is consumed by the presence synchronizer.
func (k Kind) IsPresence() bool {
	switch k {
	case KindSystem, KindJoin, KindLeave, KindOnlineUsers, KindRoomPresence:
		return true
	}
	return false
}

// IsSignaling reports whether k belongs to the call signaling exchange.
func (k Kind) IsSignaling() bool {
	switch k {
	case KindCallRequest, KindCallResponse, KindOffer, KindAnswer, KindICECandidate, KindCallHangup:
		return true
	}
	return false
}

// Known reports whether k is part of the protocol at all.
func (k Kind) Known() bool {
	return k.IsPresence() || k.IsSignaling() || k == KindLogin || k == KindPing || k == KindChat
}

// Envelope is the unit of wire exchange. Envelopes are not modified after
// construction; WithSender returns a copy.
type Envelope struct {
	Kind       Kind
	Payload    any
	SentAt     time.Time
	SenderID   string
	SenderName string

	// raw holds the undecoded payload of an inbound envelope in the
	// encoding of the codec that produced it.
	raw   []byte
	codec Codec
}

// New creates an outbound envelope stamped with the current time.
func New(kind Kind, payload any) *Envelope {
	return &Envelope{
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
}

// WithSender returns a copy of e carrying the sender identity.
func (e *Envelope) WithSender(id, name string) *Envelope {
	c := *e
	c.SenderID = id
	c.SenderName = name
	return &c
}

// Sender returns the most specific sender identity available.
func (e *Envelope) Sender() string {
	if e.SenderName != "" {
		return e.SenderName
	}
	return e.SenderID
}

// DecodePayload decodes the payload into v. Inbound envelopes decode with the
// codec they arrived in; locally built envelopes round-trip through JSON.
func (e *Envelope) DecodePayload(v any) error {
	if e.codec != nil {
		if len(e.raw) == 0 {
			return nil
		}
		if err := e.codec.decodePayload(e.raw, v); err != nil {
			return &DecodeError{Codec: e.codec.Name(), Err: ErrMalformedPayload, Details: err.Error()}
		}
		return nil
	}

	if e.Payload == nil {
		return nil
	}
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return &DecodeError{Codec: "json", Err: ErrMalformedPayload, Details: err.Error()}
	}
	if err := json.Unmarshal(payloadBytes, v); err != nil {
		return &DecodeError{Codec: "json", Err: ErrMalformedPayload, Details: err.Error()}
	}
	return nil
}
