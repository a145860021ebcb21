package relaytest

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/BioHazard786/huddle/internal/protocol"
)

type inbound struct {
	from *client
	env  *protocol.Envelope
}

// hub owns every client and room. All state is touched only by run.
type hub struct {
	clients map[*client]bool
	rooms   map[string]map[*client]bool

	register   chan *client
	unregister chan *client
	inbound    chan inbound
	do         chan func()
	quit       chan struct{}

	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients:    make(map[*client]bool),
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan inbound),
		do:         make(chan func()),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if !h.clients[c] {
				continue
			}
			delete(h.clients, c)
			for _, roomID := range sortedKeys(c.rooms) {
				h.leave(c, roomID)
			}
			close(c.send)
			if c.username != "" {
				h.broadcastOnline()
			}

		case in := <-h.inbound:
			h.handle(in.from, in.env)

		case fn := <-h.do:
			fn()

		case <-h.quit:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

func (h *hub) handle(c *client, env *protocol.Envelope) {
	h.logger.Debug("relay received", slog.String("type", string(env.Kind)), slog.String("from", c.username))

	switch env.Kind {
	case protocol.KindLogin:
		var p protocol.IdentityPayload
		if err := env.DecodePayload(&p); err != nil || p.Username == "" {
			return
		}
		c.username = p.Username
		h.broadcastOnline()

	case protocol.KindPing:

	case protocol.KindOnlineUsers:
		h.deliver(c, protocol.New(protocol.KindOnlineUsers, protocol.OnlineUsersPayload{Users: h.online()}))

	case protocol.KindJoin:
		var p protocol.RoomPayload
		if err := env.DecodePayload(&p); err != nil || p.RoomID == "" {
			return
		}
		members := h.rooms[p.RoomID]
		if members == nil {
			members = make(map[*client]bool)
			h.rooms[p.RoomID] = members
		}
		members[c] = true
		c.rooms[p.RoomID] = true

		p.Username = c.username
		h.toRoom(p.RoomID, h.stamp(c, protocol.New(protocol.KindJoin, p)))
		h.toRoom(p.RoomID, protocol.New(protocol.KindRoomPresence, h.presence(p.RoomID)))

	case protocol.KindLeave:
		var p protocol.RoomPayload
		if err := env.DecodePayload(&p); err != nil || p.RoomID == "" {
			return
		}
		if c.rooms[p.RoomID] {
			h.deliver(c, h.stamp(c, protocol.New(protocol.KindLeave, protocol.RoomPayload{
				RoomID: p.RoomID, Username: c.username, RoomName: p.RoomName,
			})))
			h.leave(c, p.RoomID)
		}

	case protocol.KindRoomPresence:
		var p protocol.RoomPresenceRequest
		if err := env.DecodePayload(&p); err != nil || p.RoomID == "" {
			return
		}
		h.deliver(c, protocol.New(protocol.KindRoomPresence, h.presence(p.RoomID)))

	case protocol.KindChat:
		var p protocol.ChatPayload
		if err := env.DecodePayload(&p); err != nil || !c.rooms[p.RoomID] {
			return
		}
		h.toRoom(p.RoomID, h.stamp(c, protocol.New(protocol.KindChat, p)))

	default:
		if env.Kind.IsSignaling() {
			h.relay(c, env)
		}
	}
}

// relay forwards a signaling envelope to the user named in its "to" field.
func (h *hub) relay(c *client, env *protocol.Envelope) {
	var payload map[string]any
	if err := env.DecodePayload(&payload); err != nil {
		return
	}
	to, _ := payload["to"].(string)

	target := h.byName(to)
	if target == nil {
		h.deliver(c, protocol.New(protocol.KindSystem, protocol.SystemPayload{
			Message:          fmt.Sprintf("User %s is not online", to),
			NotificationType: "warning",
		}))
		return
	}
	h.deliver(target, h.stamp(c, protocol.New(env.Kind, payload)))
}

func (h *hub) leave(c *client, roomID string) {
	members := h.rooms[roomID]
	delete(c.rooms, roomID)
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
		return
	}
	h.toRoom(roomID, h.stamp(c, protocol.New(protocol.KindLeave, protocol.RoomPayload{
		RoomID: roomID, Username: c.username,
	})))
	h.toRoom(roomID, protocol.New(protocol.KindRoomPresence, h.presence(roomID)))
}

func (h *hub) stamp(c *client, env *protocol.Envelope) *protocol.Envelope {
	return env.WithSender(c.username, c.username)
}

func (h *hub) deliver(c *client, env *protocol.Envelope) {
	select {
	case c.send <- env:
	default:
		h.logger.Warn("client send buffer full", slog.String("user", c.username))
	}
}

func (h *hub) toRoom(roomID string, env *protocol.Envelope) {
	for c := range h.rooms[roomID] {
		h.deliver(c, env)
	}
}

func (h *hub) broadcastOnline() {
	env := protocol.New(protocol.KindOnlineUsers, protocol.OnlineUsersPayload{Users: h.online()})
	for c := range h.clients {
		if c.username != "" {
			h.deliver(c, env)
		}
	}
}

func (h *hub) byName(name string) *client {
	if name == "" {
		return nil
	}
	for c := range h.clients {
		if c.username == name {
			return c
		}
	}
	return nil
}

func (h *hub) online() []protocol.User {
	users := []protocol.User{}
	for c := range h.clients {
		if c.username == "" {
			continue
		}
		var current string
		if rooms := sortedKeys(c.rooms); len(rooms) > 0 {
			current = rooms[0]
		}
		users = append(users, protocol.User{
			ID:          c.username,
			Username:    c.username,
			Status:      protocol.StatusOnline,
			CurrentRoom: current,
		})
	}
	slices.SortFunc(users, func(a, b protocol.User) int {
		if a.Username < b.Username {
			return -1
		}
		if a.Username > b.Username {
			return 1
		}
		return 0
	})
	return users
}

func (h *hub) presence(roomID string) protocol.RoomPresencePayload {
	users := []protocol.User{}
	for _, u := range h.online() {
		if c := h.byName(u.Username); c != nil && c.rooms[roomID] {
			users = append(users, u)
		}
	}
	return protocol.RoomPresencePayload{RoomID: roomID, Users: users}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
