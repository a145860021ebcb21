package client

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/connection"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/relaytest"
	"github.com/BioHazard786/huddle/internal/rtc"
)

func newRelay(t *testing.T) *relaytest.Server {
	t.Helper()
	s := relaytest.New(nil)
	t.Cleanup(s.Close)
	return s
}

func newClient(t *testing.T, relay *relaytest.Server, username string, codec protocol.Codec) *Client {
	t.Helper()

	peers, err := rtc.NewFactory(rtc.Config{IncludeLoopback: true})
	if err != nil {
		t.Fatalf("rtc factory: %v", err)
	}
	c, err := New(Config{
		URL:            relay.URL(),
		Username:       username,
		Codec:          codec,
		ReconnectDelay: 50 * time.Millisecond,
	}, Deps{
		Media: media.Synthetic{StreamID: username},
		Peers: peers,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start %s: %v", username, err)
	}
	t.Cleanup(c.Stop)

	eventually(t, c, "connected", func(s Snapshot) bool {
		return s.Connection.Status == connection.Connected
	})
	return c
}

// eventually polls the client until cond holds.
func eventually(t *testing.T, c *Client, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s, err := c.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot %+v", what, s)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatal("expected error without media source")
	}
	if _, err := New(Config{}, Deps{Media: media.Synthetic{}}); err == nil {
		t.Fatal("expected error without peer factory")
	}
}

func TestStartWithoutUsername(t *testing.T) {
	peers, err := rtc.NewFactory(rtc.Config{})
	if err != nil {
		t.Fatalf("rtc factory: %v", err)
	}
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws"}, Deps{Media: media.Synthetic{}, Peers: peers})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, connection.ErrNoIdentity) {
		t.Fatalf("err = %v, want ErrNoIdentity", err)
	}
}

func TestPresenceAndChat(t *testing.T) {
	relay := newRelay(t)
	alice := newClient(t, relay, "alice", protocol.JSON)
	bob := newClient(t, relay, "bob", protocol.Msgpack)
	ctx := context.Background()

	eventually(t, alice, "directory", func(s Snapshot) bool { return len(s.Users) == 2 })

	if err := alice.JoinRoom(ctx, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	eventually(t, alice, "alice confirmed", func(s Snapshot) bool { return s.ConfirmedRoom == "general" })

	if err := bob.JoinRoom(ctx, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	s := eventually(t, alice, "bob in room", func(s Snapshot) bool {
		for _, r := range s.Rooms {
			if r.ID == "general" {
				return r.UserCount == 2
			}
		}
		return false
	})
	found := slices.ContainsFunc(s.Notifications, func(n notify.Notification) bool {
		return n.Message == "bob joined General"
	})
	if !found {
		t.Fatalf("no join notification in %+v", s.Notifications)
	}

	if err := bob.SendChat(ctx, "hello there"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	s = eventually(t, alice, "chat line", func(s Snapshot) bool { return len(s.Chat) == 1 })
	if s.Chat[0].Sender != "bob" || s.Chat[0].Text != "hello there" || s.Chat[0].Own {
		t.Fatalf("line = %+v", s.Chat[0])
	}

	if err := alice.JoinRoom(ctx, "tech"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	eventually(t, alice, "transcript cleared", func(s Snapshot) bool {
		return s.CurrentRoom == "tech" && len(s.Chat) == 0
	})
}

func TestCallBetweenClients(t *testing.T) {
	relay := newRelay(t)
	alice := newClient(t, relay, "alice", protocol.JSON)
	bob := newClient(t, relay, "bob", protocol.JSON)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := alice.StartCall(ctx, "bob", protocol.MediaVideo); err != nil {
		t.Fatalf("start call: %v", err)
	}

	s := eventually(t, bob, "ringing", func(s Snapshot) bool { return s.Call.State == call.Ringing })
	if s.Call.Counterpart != "alice" || s.Call.Media != protocol.MediaVideo {
		t.Fatalf("ringing session = %+v", s.Call)
	}

	if err := bob.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}

	eventually(t, alice, "caller active", func(s Snapshot) bool {
		return s.Call.State == call.Active && s.Call.HasPeer
	})
	eventually(t, bob, "callee active", func(s Snapshot) bool {
		return s.Call.State == call.Active && s.Call.HasPeer && s.Call.HasLocalMedia
	})

	if err := alice.EndCall(ctx); err != nil {
		t.Fatalf("end call: %v", err)
	}
	eventually(t, alice, "caller idle", func(s Snapshot) bool { return s.Call.State == call.Idle && !s.Call.HasPeer })
	eventually(t, bob, "callee idle", func(s Snapshot) bool { return s.Call.State == call.Idle && !s.Call.HasLocalMedia })
}

func TestDeclinedCall(t *testing.T) {
	relay := newRelay(t)
	alice := newClient(t, relay, "alice", protocol.JSON)
	bob := newClient(t, relay, "bob", protocol.JSON)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := alice.StartCall(ctx, "bob", protocol.MediaAudio); err != nil {
		t.Fatalf("start call: %v", err)
	}
	eventually(t, bob, "ringing", func(s Snapshot) bool { return s.Call.State == call.Ringing })

	if err := bob.Decline(ctx); err != nil {
		t.Fatalf("decline: %v", err)
	}
	eventually(t, alice, "caller idle", func(s Snapshot) bool {
		return s.Call.State == call.Idle && !s.Call.HasLocalMedia
	})
}

func TestReconnectRejoinsRoom(t *testing.T) {
	relay := newRelay(t)
	alice := newClient(t, relay, "alice", protocol.JSON)
	ctx := context.Background()

	if err := alice.JoinRoom(ctx, "random"); err != nil {
		t.Fatalf("join: %v", err)
	}
	eventually(t, alice, "confirmed", func(s Snapshot) bool { return s.ConfirmedRoom == "random" })

	if err := relay.Drop(ctx, "alice"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	eventually(t, alice, "connection lost", func(s Snapshot) bool {
		return slices.ContainsFunc(s.Notifications, func(n notify.Notification) bool {
			return strings.HasPrefix(n.Message, "Connection lost")
		})
	})
	eventually(t, alice, "rejoined", func(s Snapshot) bool {
		return s.Connection.Status == connection.Connected && s.ConfirmedRoom == "random"
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		members, err := relay.Members(ctx, "random")
		if err != nil {
			t.Fatalf("members: %v", err)
		}
		if slices.Equal(members, []string{"alice"}) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("members = %v", members)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
