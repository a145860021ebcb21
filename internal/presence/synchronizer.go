// Package presence tracks who is online and who is in which room.
//
// The server is the source of truth: the imperative operations only send
// requests, and local state changes when the server's snapshots arrive. The
// one exception is the pending room membership, which is set optimistically
// on join so the interface can route immediately.
package presence

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/protocol"
)

var ErrNoRoom = errors.New("room id is empty")

// Sender is the outbound path, normally the connection manager.
type Sender interface {
	Send(*protocol.Envelope) error
	Username() string
}

// Synchronizer is confined to the event loop.
type Synchronizer struct {
	sender Sender
	notes  *notify.Log
	logger *slog.Logger

	directory []protocol.User
	rooms     map[string]*Room
	order     []string

	pending   string
	confirmed string

	onRoomChange []func(room string)
}

// New creates a synchronizer seeded with catalog, or DefaultCatalog when
// catalog is empty.
func New(sender Sender, notes *notify.Log, catalog []Room, logger *slog.Logger) *Synchronizer {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Synchronizer{
		sender: sender,
		notes:  notes,
		logger: logger.With(slog.String("component", "presence")),
		rooms:  make(map[string]*Room, len(catalog)),
	}
	for _, r := range catalog {
		if r.ID == "" || s.rooms[r.ID] != nil {
			continue
		}
		room := Room{ID: r.ID, Name: r.Name, Description: r.Description}
		if room.Name == "" {
			room.Name = r.ID
		}
		room.setUsers(r.Users)
		s.rooms[r.ID] = &room
		s.order = append(s.order, r.ID)
	}
	return s
}

// OnRoomChange registers fn to be called whenever the pending room changes.
func (s *Synchronizer) OnRoomChange(fn func(room string)) {
	s.onRoomChange = append(s.onRoomChange, fn)
}

// JoinRoom leaves the current room, if any, then joins roomID and asks for
// its membership. LEAVE always goes out before JOIN.
func (s *Synchronizer) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrNoRoom
	}
	username := s.sender.Username()

	if s.pending != "" {
		s.sender.Send(protocol.New(protocol.KindLeave, protocol.RoomPayload{
			RoomID:   s.pending,
			Username: username,
			RoomName: s.roomName(s.pending),
		}))
	}

	s.sender.Send(protocol.New(protocol.KindJoin, protocol.RoomPayload{
		RoomID:   roomID,
		Username: username,
		RoomName: s.roomName(roomID),
	}))

	s.confirmed = ""
	s.setPending(roomID)
	s.RequestRoomPresence(roomID)
	return nil
}

// LeaveRoom leaves the current room. Without one it does nothing.
func (s *Synchronizer) LeaveRoom() {
	if s.pending == "" {
		return
	}

	s.sender.Send(protocol.New(protocol.KindLeave, protocol.RoomPayload{
		RoomID:   s.pending,
		Username: s.sender.Username(),
		RoomName: s.roomName(s.pending),
	}))

	s.confirmed = ""
	s.setPending("")
}

// RequestOnlineUsers asks the server for a fresh directory snapshot.
func (s *Synchronizer) RequestOnlineUsers() {
	s.sender.Send(protocol.New(protocol.KindOnlineUsers, protocol.IdentityPayload{Username: s.sender.Username()}))
}

// RequestRoomPresence asks the server for the members of roomID.
func (s *Synchronizer) RequestRoomPresence(roomID string) {
	s.sender.Send(protocol.New(protocol.KindRoomPresence, protocol.RoomPresenceRequest{RoomID: roomID}))
}

// System records a server notice.
func (s *Synchronizer) System(p protocol.SystemPayload) {
	if p.Message == "" {
		return
	}
	s.notes.Add(notify.ParseSeverity(p.NotificationType), p.Message)
}

// Joined records that a user entered a room. Membership itself is only
// updated by the following ROOM_PRESENCE; our own echoed join confirms the
// pending membership.
func (s *Synchronizer) Joined(p protocol.RoomPayload) {
	s.notes.Successf("%s joined %s", p.Username, s.displayName(p))

	if p.Username == s.sender.Username() && p.RoomID == s.pending {
		s.confirmed = p.RoomID
	}
}

// Left records that a user left a room.
func (s *Synchronizer) Left(p protocol.RoomPayload) {
	s.notes.Warnf("%s left %s", p.Username, s.displayName(p))

	if p.Username == s.sender.Username() && p.RoomID == s.confirmed {
		s.confirmed = ""
	}
}

// OnlineUsers replaces the directory with the server's snapshot.
func (s *Synchronizer) OnlineUsers(p protocol.OnlineUsersPayload) {
	s.directory = append([]protocol.User(nil), p.Users...)
	s.logger.Debug("directory replaced", slog.Int("users", len(s.directory)))
}

// RoomPresence replaces the membership of exactly one room. Rooms missing
// from the catalog are added.
func (s *Synchronizer) RoomPresence(p protocol.RoomPresencePayload) {
	if p.RoomID == "" {
		s.logger.Warn("room presence without room id")
		return
	}

	room, ok := s.rooms[p.RoomID]
	if !ok {
		room = &Room{ID: p.RoomID, Name: p.RoomID}
		s.rooms[p.RoomID] = room
		s.order = append(s.order, p.RoomID)
	}
	room.setUsers(p.Users)

	me := s.sender.Username()
	switch {
	case room.has(me) && p.RoomID == s.pending:
		s.confirmed = p.RoomID
	case !room.has(me) && p.RoomID == s.confirmed:
		s.confirmed = ""
	}
}

// Directory returns a copy of the online users snapshot.
func (s *Synchronizer) Directory() []protocol.User {
	return append([]protocol.User(nil), s.directory...)
}

// Rooms returns copies of every room in catalog order.
func (s *Synchronizer) Rooms() []Room {
	out := make([]Room, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rooms[id].clone())
	}
	return out
}

// Room returns a copy of one room.
func (s *Synchronizer) Room(id string) (Room, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return Room{}, false
	}
	return r.clone(), true
}

// Current returns the room this client has asked to be in.
func (s *Synchronizer) Current() string {
	return s.pending
}

// Confirmed returns the room the server has reported this client in.
func (s *Synchronizer) Confirmed() string {
	return s.confirmed
}

func (s *Synchronizer) setPending(room string) {
	if s.pending == room {
		return
	}
	s.pending = room
	for _, fn := range s.onRoomChange {
		fn(room)
	}
}

func (s *Synchronizer) roomName(id string) string {
	if r, ok := s.rooms[id]; ok {
		return r.Name
	}
	return ""
}

func (s *Synchronizer) displayName(p protocol.RoomPayload) string {
	if p.RoomName != "" {
		return p.RoomName
	}
	if name := s.roomName(p.RoomID); name != "" {
		return name
	}
	return "the room"
}
