// Package relaytest runs an in-process presence and signaling relay for
// integration tests.
//
// The relay keeps users and rooms in memory, echoes JOIN and LEAVE to room
// members, answers ONLINE_USERS and ROOM_PRESENCE requests, fans CHAT out to
// a room and forwards call signaling to the user named in "to".
package relaytest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server is a running relay. Close it when done.
type Server struct {
	hub   *hub
	http  *httptest.Server
	close sync.Once
}

// New starts a relay on a loopback port.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{hub: newHub(logger.With(slog.String("component", "relay")))}
	go s.hub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	s.http = httptest.NewServer(mux)
	return s
}

// URL returns the websocket endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

// Close stops the relay and drops every client.
func (s *Server) Close() {
	s.close.Do(func() {
		close(s.hub.quit)
		s.http.CloseClientConnections()
		s.http.Close()
	})
}

// Online returns the logged-in usernames, sorted.
func (s *Server) Online(ctx context.Context) ([]string, error) {
	var names []string
	err := s.exec(ctx, func() {
		for _, u := range s.hub.online() {
			names = append(names, u.Username)
		}
	})
	return names, err
}

// Members returns the usernames in a room, sorted.
func (s *Server) Members(ctx context.Context, roomID string) ([]string, error) {
	var names []string
	err := s.exec(ctx, func() {
		for _, u := range s.hub.presence(roomID).Users {
			names = append(names, u.Username)
		}
	})
	return names, err
}

// Drop closes the connection of username without a close handshake.
func (s *Server) Drop(ctx context.Context, username string) error {
	return s.exec(ctx, func() {
		if c := s.hub.byName(username); c != nil {
			c.conn.UnderlyingConn().Close()
		}
	})
}

// Broadcast sends env to every logged-in client.
func (s *Server) Broadcast(ctx context.Context, env *protocol.Envelope) error {
	return s.exec(ctx, func() {
		for c := range s.hub.clients {
			if c.username != "" {
				s.hub.deliver(c, env)
			}
		}
	})
}

func (s *Server) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.hub.do <- func() { fn(); close(done) }:
	case <-s.hub.quit:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		hub:   s.hub,
		conn:  conn,
		send:  make(chan *protocol.Envelope, 256),
		rooms: make(map[string]bool),
		codec: protocol.JSON,
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.quit:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
