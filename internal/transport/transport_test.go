package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer writes every frame it receives straight back, after first
// sending the frames in greet.
func echoServer(t *testing.T, greet ...[]byte) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for _, g := range greet {
			if err := ws.WriteMessage(websocket.TextMessage, g); err != nil {
				return
			}
		}
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type recorder struct {
	envelopes chan *protocol.Envelope
	errors    chan error
	closed    chan error
}

func newRecorder() *recorder {
	return &recorder{
		envelopes: make(chan *protocol.Envelope, 16),
		errors:    make(chan error, 4),
		closed:    make(chan error, 1),
	}
}

func (r *recorder) events() Events {
	return Events{
		OnEnvelope: func(env *protocol.Envelope) { r.envelopes <- env },
		OnError:    func(err error) { r.errors <- err },
		OnClose:    func(err error) { r.closed <- err },
	}
}

func (r *recorder) next(t *testing.T) *protocol.Envelope {
	t.Helper()
	select {
	case env := <-r.envelopes:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func TestSendAndReceiveBothCodecs(t *testing.T) {
	url := echoServer(t)

	for _, codec := range []protocol.Codec{protocol.JSON, protocol.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			conn, err := Dial(context.Background(), url, Options{Codec: codec})
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			rec := newRecorder()
			conn.Start(rec.events())
			defer conn.Close()

			if err := conn.Send(protocol.New(protocol.KindJoin, protocol.RoomPayload{RoomID: "tech", Username: "alice"})); err != nil {
				t.Fatalf("send: %v", err)
			}

			env := rec.next(t)
			if env.Kind != protocol.KindJoin {
				t.Fatalf("kind = %q", env.Kind)
			}
			var p protocol.RoomPayload
			if err := env.DecodePayload(&p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if p.RoomID != "tech" || p.Username != "alice" {
				t.Fatalf("payload = %+v", p)
			}
		})
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	url := echoServer(t,
		[]byte(`{{{ not json`),
		[]byte(`{"payload":{}}`),
		[]byte(`{"type":"SYSTEM","payload":{"message":"hello"}}`),
	)

	conn, err := Dial(context.Background(), url, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	rec := newRecorder()
	conn.Start(rec.events())
	defer conn.Close()

	env := rec.next(t)
	if env.Kind != protocol.KindSystem {
		t.Fatalf("first delivered kind = %q, want SYSTEM", env.Kind)
	}
}

func TestLocalCloseReportsCloseOnly(t *testing.T) {
	url := echoServer(t)

	conn, err := Dial(context.Background(), url, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	rec := newRecorder()
	conn.Start(rec.events())

	conn.Close()

	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	select {
	case err := <-rec.errors:
		t.Fatalf("unexpected OnError: %v", err)
	default:
	}

	if err := conn.Send(protocol.New(protocol.KindPing, nil)); err != ErrClosed {
		t.Fatalf("send after close = %v, want ErrClosed", err)
	}
}

func TestServerDropReportsErrorThenClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.UnderlyingConn().Close()
	}))
	defer srv.Close()

	conn, err := Dial(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	rec := newRecorder()
	conn.Start(rec.events())

	select {
	case <-rec.errors:
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}
	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
}

func TestDialRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := Dial(context.Background(), url, Options{}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://localhost:8080/ws", "ws://localhost:8080/ws", false},
		{"https://example.com/ws", "wss://example.com/ws", false},
		{"http://example.com", "ws://example.com", false},
		{"ftp://example.com", "", true},
		{"ws://", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NormalizeURL(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
