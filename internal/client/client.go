// Package client wires the connection, presence, chat and call components
// onto one event loop and exposes them as a goroutine-safe service.
package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/chat"
	"github.com/BioHazard786/huddle/internal/connection"
	"github.com/BioHazard786/huddle/internal/dispatch"
	"github.com/BioHazard786/huddle/internal/eventloop"
	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/presence"
	"github.com/BioHazard786/huddle/internal/protocol"
)

// Config configures a Client. Zero values take the package defaults of the
// component they belong to.
type Config struct {
	URL      string
	Username string
	Codec    protocol.Codec

	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	NotificationCapacity int
	ChatHistory          int
	Rooms                []presence.Room

	Logger *slog.Logger
}

// Deps are the pluggable edges of the client.
type Deps struct {
	Media call.MediaSource
	Peers call.PeerFactory
	// Dialer overrides the websocket dialer.
	Dialer connection.Dialer
}

// Snapshot is a deep copy of everything the client exposes.
type Snapshot struct {
	Connection    connection.State
	Username      string
	Users         []protocol.User
	Rooms         []presence.Room
	CurrentRoom   string
	ConfirmedRoom string
	Call          call.Session
	Chat          []chat.Line
	Notifications []notify.Notification
}

// Client owns the event loop and every component confined to it.
type Client struct {
	loop     *eventloop.Loop
	notes    *notify.Log
	conn     *connection.Manager
	presence *presence.Synchronizer
	chat     *chat.Transcript
	calls    *call.Machine
	logger   *slog.Logger

	changes chan struct{}
	cancel  context.CancelFunc
}

// New builds a client. Nothing runs until Start.
func New(cfg Config, deps Deps) (*Client, error) {
	if deps.Media == nil {
		return nil, errors.New("client: media source is required")
	}
	if deps.Peers == nil {
		return nil, errors.New("client: peer factory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		loop:    eventloop.New(cfg.Logger),
		notes:   notify.New(cfg.NotificationCapacity),
		logger:  cfg.Logger.With(slog.String("component", "client")),
		changes: make(chan struct{}, 1),
	}

	c.conn = connection.NewManager(connection.Config{
		URL:                  cfg.URL,
		Username:             cfg.Username,
		Codec:                cfg.Codec,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Dialer:               deps.Dialer,
		Logger:               cfg.Logger,
	}, c.loop, c.notes)

	c.presence = presence.New(c.conn, c.notes, cfg.Rooms, cfg.Logger)
	c.chat = chat.NewTranscript(c.conn, c.presence.Current, cfg.ChatHistory)
	c.calls = call.NewMachine(call.Config{
		Sender: c.conn,
		Media:  deps.Media,
		Peers:  deps.Peers,
		Notes:  c.notes,
		Post:   c.loop.Post,
		Logger: cfg.Logger,
	})

	router := dispatch.NewRouter(c.presence, c.calls, c.chat, cfg.Logger)
	c.conn.OnEnvelope(func(env *protocol.Envelope) {
		router.Route(env)
		c.changed()
	})
	c.conn.OnConnected(c.rejoin)
	c.conn.OnStateChange(func(connection.StateEvent) { c.changed() })
	c.presence.OnRoomChange(c.chat.Reset)
	c.calls.OnChange(func(call.Session) { c.changed() })
	c.notes.OnAppend(func(notify.Notification) { c.changed() })

	return c, nil
}

// Start runs the event loop and connects.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop.Run(runCtx)

	var err error
	if callErr := c.loop.Call(ctx, func() { err = c.conn.Connect() }); callErr != nil {
		return callErr
	}
	return err
}

// Stop ends any call, disconnects and stops the loop.
func (c *Client) Stop() {
	_ = c.loop.Call(context.Background(), func() {
		c.calls.EndCall()
		c.conn.Disconnect()
	})
	c.loop.Stop()
	c.loop.Wait()
	if c.cancel != nil {
		c.cancel()
	}
}

// Changes is signalled, coalesced, whenever observable state may have
// changed.
func (c *Client) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot copies the observable state.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.loop.Call(ctx, func() {
		s = Snapshot{
			Connection:    c.conn.State(),
			Username:      c.conn.Username(),
			Users:         c.presence.Directory(),
			Rooms:         c.presence.Rooms(),
			CurrentRoom:   c.presence.Current(),
			ConfirmedRoom: c.presence.Confirmed(),
			Call:          c.calls.Session(),
			Chat:          c.chat.Lines(),
			Notifications: c.notes.List(),
		}
	})
	return s, err
}

// Connect opens the connection, or brings a pending reconnect forward.
func (c *Client) Connect(ctx context.Context) error {
	var err error
	if callErr := c.loop.Call(ctx, func() { err = c.conn.Connect() }); callErr != nil {
		return callErr
	}
	return err
}

// Disconnect closes the connection. An active call is left running.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.loop.Call(ctx, c.conn.Disconnect)
}

// SetUsername changes the identity used by the next connection.
func (c *Client) SetUsername(ctx context.Context, username string) error {
	return c.loop.Call(ctx, func() { c.conn.SetUsername(username) })
}

// JoinRoom switches to roomID.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	var err error
	if callErr := c.loop.Call(ctx, func() { err = c.presence.JoinRoom(roomID) }); callErr != nil {
		return callErr
	}
	return err
}

// LeaveRoom leaves the current room, if any.
func (c *Client) LeaveRoom(ctx context.Context) error {
	return c.loop.Call(ctx, c.presence.LeaveRoom)
}

// RefreshUsers asks the server for the online users.
func (c *Client) RefreshUsers(ctx context.Context) error {
	return c.loop.Call(ctx, c.presence.RequestOnlineUsers)
}

// RefreshRoom asks the server for the members of roomID.
func (c *Client) RefreshRoom(ctx context.Context, roomID string) error {
	return c.loop.Call(ctx, func() { c.presence.RequestRoomPresence(roomID) })
}

// SendChat posts text to the current room.
func (c *Client) SendChat(ctx context.Context, text string) error {
	var err error
	if callErr := c.loop.Call(ctx, func() { err = c.chat.Send(text) }); callErr != nil {
		return callErr
	}
	return err
}

// StartCall places a call and waits until the request is sent or the attempt
// fails.
func (c *Client) StartCall(ctx context.Context, to string, kind protocol.MediaKind) error {
	return c.await(ctx, func(done func(error)) { c.calls.StartCall(to, kind, done) })
}

// Accept answers the ringing call and waits for local media.
func (c *Client) Accept(ctx context.Context) error {
	return c.await(ctx, c.calls.Accept)
}

// Decline rejects the ringing call.
func (c *Client) Decline(ctx context.Context) error {
	var err error
	if callErr := c.loop.Call(ctx, func() { err = c.calls.Decline() }); callErr != nil {
		return callErr
	}
	return err
}

// EndCall hangs up. It is a no-op when no call is in progress.
func (c *Client) EndCall(ctx context.Context) error {
	return c.loop.Call(ctx, c.calls.EndCall)
}

// await runs op on the loop and waits for its completion callback.
func (c *Client) await(ctx context.Context, op func(done func(error))) error {
	result := make(chan error, 1)
	if err := c.loop.Call(ctx, func() {
		op(func(err error) { result <- err })
	}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loop.Done():
		return eventloop.ErrStopped
	}
}

// rejoin restores room membership after a reconnect. The server forgets it
// with the old socket.
func (c *Client) rejoin() {
	room := c.presence.Current()
	if room == "" {
		return
	}
	c.logger.Debug("rejoining room after reconnect", slog.String("room", room))
	if err := c.presence.JoinRoom(room); err != nil {
		c.logger.Warn("rejoin failed", slog.String("room", room), slog.Any("error", err))
	}
}

func (c *Client) changed() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
