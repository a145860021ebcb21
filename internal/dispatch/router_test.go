package dispatch

import (
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
)

type recorder struct {
	calls []string
	from  []string
	req   protocol.CallRequestPayload
}

func (r *recorder) System(protocol.SystemPayload)             { r.calls = append(r.calls, "system") }
func (r *recorder) Joined(protocol.RoomPayload)               { r.calls = append(r.calls, "joined") }
func (r *recorder) Left(protocol.RoomPayload)                 { r.calls = append(r.calls, "left") }
func (r *recorder) OnlineUsers(protocol.OnlineUsersPayload)   { r.calls = append(r.calls, "online") }
func (r *recorder) RoomPresence(protocol.RoomPresencePayload) { r.calls = append(r.calls, "presence") }

func (r *recorder) CallRequest(from string, p protocol.CallRequestPayload) {
	r.calls = append(r.calls, "request")
	r.from = append(r.from, from)
	r.req = p
}

func (r *recorder) CallResponse(from string, _ protocol.CallResponsePayload) {
	r.calls = append(r.calls, "response")
	r.from = append(r.from, from)
}

func (r *recorder) Offer(string, protocol.SessionDescriptionPayload) {
	r.calls = append(r.calls, "offer")
}
func (r *recorder) Answer(string, protocol.SessionDescriptionPayload) {
	r.calls = append(r.calls, "answer")
}
func (r *recorder) ICECandidate(string, protocol.ICECandidatePayload) {
	r.calls = append(r.calls, "ice")
}
func (r *recorder) Hangup(string, protocol.HangupPayload) { r.calls = append(r.calls, "hangup") }

func (r *recorder) Message(sender string, _ time.Time, _ protocol.ChatPayload) {
	r.calls = append(r.calls, "chat:"+sender)
}

func decode(t *testing.T, frame string) *protocol.Envelope {
	t.Helper()
	env, err := protocol.JSON.Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode %s: %v", frame, err)
	}
	return env
}

func TestRouteByKind(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"type":"SYSTEM","payload":{"message":"hi"}}`, "system"},
		{`{"type":"JOIN","payload":{"roomId":"tech","username":"bob"}}`, "joined"},
		{`{"type":"LEAVE","payload":{"roomId":"tech","username":"bob"}}`, "left"},
		{`{"type":"ONLINE_USERS","payload":{"users":[]}}`, "online"},
		{`{"type":"ROOM_PRESENCE","payload":{"roomId":"tech","users":[]}}`, "presence"},
		{`{"type":"CALL_REQUEST","payload":{"to":"alice","from":"bob","type":"audio"}}`, "request"},
		{`{"type":"CALL_RESPONSE","payload":{"to":"alice","accepted":true}}`, "response"},
		{`{"type":"OFFER","payload":{"type":"offer","sdp":"v=0"}}`, "offer"},
		{`{"type":"ANSWER","payload":{"type":"answer","sdp":"v=0"}}`, "answer"},
		{`{"type":"ICE_CANDIDATE","payload":{"candidate":"candidate:1"}}`, "ice"},
		{`{"type":"CALL_HANGUP","payload":{}}`, "hangup"},
		{`{"type":"CHAT","payload":{"content":"yo"},"senderName":"bob"}`, "chat:bob"},
	}

	for _, tt := range tests {
		rec := &recorder{}
		NewRouter(rec, rec, rec, nil).Route(decode(t, tt.frame))
		if len(rec.calls) != 1 || rec.calls[0] != tt.want {
			t.Errorf("%s routed to %v, want [%s]", tt.frame, rec.calls, tt.want)
		}
	}
}

func TestUnknownAndEchoedKindsAreDiscarded(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec, rec, rec, nil)

	for _, frame := range []string{
		`{"type":"TYPING","payload":{}}`,
		`{"type":"PING","payload":{"username":"alice"}}`,
		`{"type":"LOGIN","payload":{"username":"alice"}}`,
	} {
		r.Route(decode(t, frame))
	}

	if len(rec.calls) != 0 {
		t.Fatalf("unexpected deliveries: %v", rec.calls)
	}
}

func TestMalformedPayloadIsDiscarded(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec, rec, rec, nil)

	r.Route(decode(t, `{"type":"ONLINE_USERS","payload":{"users":42}}`))
	r.Route(decode(t, `{"type":"SYSTEM","payload":{"message":"still alive"}}`))

	if len(rec.calls) != 1 || rec.calls[0] != "system" {
		t.Fatalf("calls = %v", rec.calls)
	}
}

func TestCallRequestFromFallsBackToSender(t *testing.T) {
	rec := &recorder{}
	NewRouter(nil, rec, nil, nil).Route(decode(t,
		`{"type":"CALL_REQUEST","payload":{"to":"alice","kind":"video"},"senderName":"carol"}`))

	if rec.req.From != "carol" || rec.req.Media() != protocol.MediaVideo {
		t.Fatalf("request = %+v", rec.req)
	}
	if len(rec.from) != 1 || rec.from[0] != "carol" {
		t.Fatalf("from = %v", rec.from)
	}
}

func TestNilConsumerDiscards(t *testing.T) {
	r := NewRouter(nil, nil, nil, nil)
	r.Route(decode(t, `{"type":"JOIN","payload":{"roomId":"x","username":"y"}}`))
	r.Route(decode(t, `{"type":"OFFER","payload":{"sdp":"v=0"}}`))
	r.Route(decode(t, `{"type":"CHAT","payload":{"content":"hi"}}`))
}
