package presence

import (
	"slices"
	"testing"

	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/protocol"
)

type fakeSender struct {
	username string
	sent     []*protocol.Envelope
}

func (f *fakeSender) Send(env *protocol.Envelope) error {
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) Username() string { return f.username }

func (f *fakeSender) kinds() []protocol.Kind {
	out := make([]protocol.Kind, len(f.sent))
	for i, env := range f.sent {
		out[i] = env.Kind
	}
	return out
}

func (f *fakeSender) room(t *testing.T, i int) string {
	t.Helper()
	switch p := f.sent[i].Payload.(type) {
	case protocol.RoomPayload:
		return p.RoomID
	case protocol.RoomPresenceRequest:
		return p.RoomID
	}
	t.Fatalf("envelope %d (%s) has no room", i, f.sent[i].Kind)
	return ""
}

func newSync() (*Synchronizer, *fakeSender, *notify.Log) {
	sender := &fakeSender{username: "alice"}
	notes := notify.New(notify.DefaultCapacity)
	return New(sender, notes, nil, nil), sender, notes
}

func users(names ...string) []protocol.User {
	out := make([]protocol.User, len(names))
	for i, n := range names {
		out[i] = protocol.User{ID: "id-" + n, Username: n, Status: protocol.StatusOnline}
	}
	return out
}

func TestJoinSendsJoinThenPresenceRequest(t *testing.T) {
	s, sender, _ := newSync()

	if err := s.JoinRoom("general"); err != nil {
		t.Fatalf("join: %v", err)
	}

	want := []protocol.Kind{protocol.KindJoin, protocol.KindRoomPresence}
	if got := sender.kinds(); !slices.Equal(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if p := sender.sent[0].Payload.(protocol.RoomPayload); p.Username != "alice" || p.RoomName != "General" {
		t.Fatalf("join payload = %+v", p)
	}
	if s.Current() != "general" || s.Confirmed() != "" {
		t.Fatalf("current/confirmed = %q/%q", s.Current(), s.Confirmed())
	}
}

func TestSwitchingRoomsLeavesBeforeJoining(t *testing.T) {
	s, sender, _ := newSync()
	s.JoinRoom("general")
	sender.sent = nil

	s.JoinRoom("tech")

	want := []protocol.Kind{protocol.KindLeave, protocol.KindJoin, protocol.KindRoomPresence}
	if got := sender.kinds(); !slices.Equal(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if sender.room(t, 0) != "general" || sender.room(t, 1) != "tech" {
		t.Fatalf("leave/join rooms = %s/%s", sender.room(t, 0), sender.room(t, 1))
	}
	if s.Current() != "tech" {
		t.Fatalf("current = %q", s.Current())
	}
}

func TestJoinRejectsEmptyRoom(t *testing.T) {
	s, sender, _ := newSync()
	if err := s.JoinRoom("  "); err != ErrNoRoom {
		t.Fatalf("err = %v, want ErrNoRoom", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sent %v", sender.kinds())
	}
}

func TestLeaveWithoutRoomIsNoOp(t *testing.T) {
	s, sender, notes := newSync()
	before := s.Rooms()

	s.LeaveRoom()

	if len(sender.sent) != 0 {
		t.Fatalf("sent %v", sender.kinds())
	}
	if s.Current() != "" || notes.Len() != 0 {
		t.Fatal("state changed")
	}
	if !slices.EqualFunc(before, s.Rooms(), func(a, b Room) bool { return a.ID == b.ID && a.UserCount == b.UserCount }) {
		t.Fatal("rooms changed")
	}
}

func TestLeaveClearsMembership(t *testing.T) {
	s, sender, _ := newSync()
	s.JoinRoom("general")
	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "general", Users: users("alice")})
	sender.sent = nil

	var changes []string
	s.OnRoomChange(func(room string) { changes = append(changes, room) })
	s.LeaveRoom()

	if got := sender.kinds(); !slices.Equal(got, []protocol.Kind{protocol.KindLeave}) {
		t.Fatalf("sent %v", got)
	}
	if s.Current() != "" || s.Confirmed() != "" {
		t.Fatalf("current/confirmed = %q/%q", s.Current(), s.Confirmed())
	}
	if !slices.Equal(changes, []string{""}) {
		t.Fatalf("room changes = %v", changes)
	}
}

func TestOnlineUsersReplacesDirectory(t *testing.T) {
	s, _, _ := newSync()

	s.OnlineUsers(protocol.OnlineUsersPayload{Users: users("alice", "bob", "carol")})
	s.OnlineUsers(protocol.OnlineUsersPayload{Users: users("dave")})

	got := s.Directory()
	if len(got) != 1 || got[0].Username != "dave" {
		t.Fatalf("directory = %+v", got)
	}

	s.OnlineUsers(protocol.OnlineUsersPayload{})
	if len(s.Directory()) != 0 {
		t.Fatal("empty snapshot did not clear the directory")
	}
}

func TestRoomPresenceReplacesOneRoom(t *testing.T) {
	s, _, _ := newSync()
	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "tech", Users: users("bob")})

	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "general", Users: users("alice", "bob", "bob")})

	general, _ := s.Room("general")
	if general.UserCount != 2 || len(general.Users) != 2 {
		t.Fatalf("general = %+v", general)
	}
	tech, _ := s.Room("tech")
	if tech.UserCount != 1 || tech.Users[0].Username != "bob" {
		t.Fatalf("tech changed: %+v", tech)
	}
	for _, r := range s.Rooms() {
		if r.UserCount != len(r.Users) {
			t.Fatalf("room %s count %d != %d", r.ID, r.UserCount, len(r.Users))
		}
	}
}

func TestJoinThenPresenceScenario(t *testing.T) {
	s, _, _ := newSync()

	s.JoinRoom("general")
	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "general", Users: users("alice", "bob")})

	general, _ := s.Room("general")
	if general.UserCount != 2 {
		t.Fatalf("userCount = %d, want 2", general.UserCount)
	}
	if s.Current() != "general" || s.Confirmed() != "general" {
		t.Fatalf("current/confirmed = %q/%q", s.Current(), s.Confirmed())
	}
}

func TestPresenceWithoutSelfDoesNotConfirm(t *testing.T) {
	s, _, _ := newSync()

	s.JoinRoom("general")
	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "general", Users: users("bob")})

	if s.Current() != "general" || s.Confirmed() != "" {
		t.Fatalf("current/confirmed = %q/%q", s.Current(), s.Confirmed())
	}
}

func TestJoinEchoConfirms(t *testing.T) {
	s, _, _ := newSync()
	s.JoinRoom("tech")

	s.Joined(protocol.RoomPayload{RoomID: "tech", Username: "alice"})

	if s.Confirmed() != "tech" {
		t.Fatalf("confirmed = %q", s.Confirmed())
	}
}

func TestUnknownRoomIsAdded(t *testing.T) {
	s, _, _ := newSync()

	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "gophers", Users: users("bob")})

	r, ok := s.Room("gophers")
	if !ok || r.Name != "gophers" || r.UserCount != 1 {
		t.Fatalf("room = %+v, %v", r, ok)
	}
	if rooms := s.Rooms(); rooms[len(rooms)-1].ID != "gophers" {
		t.Fatalf("new room not appended: %v", rooms)
	}
}

func TestJoinLeaveNotifications(t *testing.T) {
	s, _, notes := newSync()

	s.Joined(protocol.RoomPayload{RoomID: "tech", Username: "bob", RoomName: "Tech Corner"})
	s.Joined(protocol.RoomPayload{RoomID: "random", Username: "bob"})
	s.Left(protocol.RoomPayload{RoomID: "nowhere", Username: "bob"})

	list := notes.List()
	want := []struct {
		msg string
		sev notify.Severity
	}{
		{"bob left the room", notify.Warning},
		{"bob joined Random", notify.Success},
		{"bob joined Tech Corner", notify.Success},
	}
	if len(list) != len(want) {
		t.Fatalf("notifications = %d", len(list))
	}
	for i, w := range want {
		if list[i].Message != w.msg || list[i].Severity != w.sev {
			t.Errorf("notification %d = %q/%s, want %q/%s", i, list[i].Message, list[i].Severity, w.msg, w.sev)
		}
	}

	if s.Rooms()[1].UserCount != 0 {
		t.Fatal("join notification changed membership")
	}
}

func TestSystemNotification(t *testing.T) {
	s, _, notes := newSync()

	s.System(protocol.SystemPayload{Message: "maintenance soon", NotificationType: "warning"})
	s.System(protocol.SystemPayload{Message: "hello"})

	list := notes.List()
	if list[0].Severity != notify.Info || list[1].Severity != notify.Warning {
		t.Fatalf("severities = %s, %s", list[0].Severity, list[1].Severity)
	}
}

func TestRoomsAreCopies(t *testing.T) {
	s, _, _ := newSync()
	s.RoomPresence(protocol.RoomPresencePayload{RoomID: "general", Users: users("bob")})

	r, _ := s.Room("general")
	r.Users[0].Username = "mallory"

	again, _ := s.Room("general")
	if again.Users[0].Username != "bob" {
		t.Fatal("Room returned shared storage")
	}
}
