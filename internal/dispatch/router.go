// Package dispatch routes decoded envelopes to the component that owns
// their kind.
package dispatch

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
)

// Presence consumes room and directory updates.
type Presence interface {
	System(p protocol.SystemPayload)
	Joined(p protocol.RoomPayload)
	Left(p protocol.RoomPayload)
	OnlineUsers(p protocol.OnlineUsersPayload)
	RoomPresence(p protocol.RoomPresencePayload)
}

// Calls consumes call signaling. from is the sender reported by the
// envelope, empty when the server does not stamp one.
type Calls interface {
	CallRequest(from string, p protocol.CallRequestPayload)
	CallResponse(from string, p protocol.CallResponsePayload)
	Offer(from string, p protocol.SessionDescriptionPayload)
	Answer(from string, p protocol.SessionDescriptionPayload)
	ICECandidate(from string, p protocol.ICECandidatePayload)
	Hangup(from string, p protocol.HangupPayload)
}

// Chat consumes room conversation lines.
type Chat interface {
	Message(sender string, sentAt time.Time, p protocol.ChatPayload)
}

// Router delivers each envelope to exactly one consumer. Unknown kinds and
// undecodable payloads are logged and discarded.
type Router struct {
	presence Presence
	calls    Calls
	chat     Chat
	logger   *slog.Logger
}

// NewRouter wires the consumers. Any of them may be nil, in which case its
// kinds are discarded.
func NewRouter(presence Presence, calls Calls, chat Chat, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		presence: presence,
		calls:    calls,
		chat:     chat,
		logger:   logger.With(slog.String("component", "dispatch")),
	}
}

// Route delivers env to its consumer.
func (r *Router) Route(env *protocol.Envelope) {
	switch {
	case env.Kind.IsPresence():
		if r.presence == nil {
			r.discard(env, "no presence consumer")
			return
		}
		r.routePresence(env)

	case env.Kind.IsSignaling():
		if r.calls == nil {
			r.discard(env, "no call consumer")
			return
		}
		r.routeCall(env)

	case env.Kind == protocol.KindChat:
		if r.chat == nil {
			r.discard(env, "no chat consumer")
			return
		}
		var p protocol.ChatPayload
		if r.decode(env, &p) {
			r.chat.Message(env.Sender(), env.SentAt, p)
		}

	default:
		r.discard(env, "unhandled type")
	}
}

func (r *Router) routePresence(env *protocol.Envelope) {
	switch env.Kind {
	case protocol.KindSystem:
		var p protocol.SystemPayload
		if r.decode(env, &p) {
			r.presence.System(p)
		}

	case protocol.KindJoin:
		var p protocol.RoomPayload
		if r.decode(env, &p) {
			r.presence.Joined(p)
		}

	case protocol.KindLeave:
		var p protocol.RoomPayload
		if r.decode(env, &p) {
			r.presence.Left(p)
		}

	case protocol.KindOnlineUsers:
		var p protocol.OnlineUsersPayload
		if r.decode(env, &p) {
			r.presence.OnlineUsers(p)
		}

	case protocol.KindRoomPresence:
		var p protocol.RoomPresencePayload
		if r.decode(env, &p) {
			r.presence.RoomPresence(p)
		}
	}
}

func (r *Router) routeCall(env *protocol.Envelope) {
	from := env.Sender()

	switch env.Kind {
	case protocol.KindCallRequest:
		var p protocol.CallRequestPayload
		if r.decode(env, &p) {
			if p.From == "" {
				p.From = from
			}
			r.calls.CallRequest(from, p)
		}

	case protocol.KindCallResponse:
		var p protocol.CallResponsePayload
		if r.decode(env, &p) {
			r.calls.CallResponse(from, p)
		}

	case protocol.KindOffer:
		var p protocol.SessionDescriptionPayload
		if r.decode(env, &p) {
			r.calls.Offer(from, p)
		}

	case protocol.KindAnswer:
		var p protocol.SessionDescriptionPayload
		if r.decode(env, &p) {
			r.calls.Answer(from, p)
		}

	case protocol.KindICECandidate:
		var p protocol.ICECandidatePayload
		if r.decode(env, &p) {
			r.calls.ICECandidate(from, p)
		}

	case protocol.KindCallHangup:
		var p protocol.HangupPayload
		if r.decode(env, &p) {
			r.calls.Hangup(from, p)
		}
	}
}

func (r *Router) decode(env *protocol.Envelope, v any) bool {
	if err := env.DecodePayload(v); err != nil {
		r.logger.Warn("dropping envelope with malformed payload",
			slog.String("type", string(env.Kind)),
			slog.Any("error", err))
		return false
	}
	return true
}

func (r *Router) discard(env *protocol.Envelope, reason string) {
	r.logger.Debug("discarding envelope",
		slog.String("type", string(env.Kind)),
		slog.String("reason", reason))
}
