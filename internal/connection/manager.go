// Package connection owns the server connection lifecycle: dialing,
// reconnecting on a fixed delay, heartbeats and the outbound send path.
//
// A Manager is confined to an event loop. Every method must be called from
// a task running on that loop; socket and timer events are posted back to it.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/eventloop"
	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/transport"
)

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5

	dialTimeout = 15 * time.Second
)

var (
	ErrNoIdentity   = errors.New("username is not set")
	ErrNotConnected = errors.New("not connected")
)

// Conn is a live connection as returned by a Dialer.
type Conn interface {
	Start(transport.Events)
	Send(*protocol.Envelope) error
	Close()
}

// Dialer opens a connection. It runs off the event loop.
type Dialer func(ctx context.Context, url string, opts transport.Options) (Conn, error)

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, url string, opts transport.Options) (Conn, error) {
	c, err := transport.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config configures a Manager. Zero durations and counts take defaults.
type Config struct {
	URL                  string
	Username             string
	Codec                protocol.Codec
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	Dialer               Dialer
	Logger               *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Codec == nil {
		c.Codec = protocol.JSON
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Dialer == nil {
		c.Dialer = DialWebsocket
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager drives the connection state machine.
type Manager struct {
	cfg    Config
	loop   *eventloop.Loop
	notes  *notify.Log
	logger *slog.Logger

	state State
	conn  Conn

	// generation identifies the current dial attempt. Events carrying an
	// older generation belong to a replaced or abandoned connection.
	generation uint64
	dialing    bool
	cancelDial context.CancelFunc

	reconnectTimer *time.Timer
	heartbeatTimer *time.Timer

	onEnvelope  func(*protocol.Envelope)
	onConnected []func()
	onState     []func(StateEvent)
	now         func() time.Time
}

// NewManager creates a disconnected manager.
func NewManager(cfg Config, loop *eventloop.Loop, notes *notify.Log) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:    cfg,
		loop:   loop,
		notes:  notes,
		logger: cfg.Logger.With(slog.String("component", "connection")),
		now:    time.Now,
	}
}

// OnEnvelope sets the consumer of inbound envelopes.
func (m *Manager) OnEnvelope(fn func(*protocol.Envelope)) {
	m.onEnvelope = fn
}

// OnConnected registers fn to run after the identity handshake of every
// successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.onConnected = append(m.onConnected, fn)
}

// OnStateChange registers an observer of status changes.
func (m *Manager) OnStateChange(fn func(StateEvent)) {
	m.onState = append(m.onState, fn)
}

// SetUsername changes the identity used by the next connection.
func (m *Manager) SetUsername(username string) {
	m.cfg.Username = username
}

// Username returns the identity announced to the server.
func (m *Manager) Username() string {
	return m.cfg.Username
}

// State returns a snapshot of the lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Connected reports whether envelopes can currently be sent.
func (m *Manager) Connected() bool {
	return m.state.Status == Connected && m.conn != nil
}

// Connect opens a connection if none is open or being opened. A pending
// reconnect is brought forward; from Disconnected the retry budget starts over.
func (m *Manager) Connect() error {
	if m.cfg.Username == "" {
		return ErrNoIdentity
	}
	if m.conn != nil || m.dialing {
		return nil
	}

	if m.state.Status == Disconnected {
		m.state.ReconnectAttempt = 0
	}
	m.stopReconnect()
	m.dial()
	return nil
}

// Disconnect closes the connection, cancels every timer and resets the
// state. Events from the closed connection are ignored.
func (m *Manager) Disconnect() {
	m.generation++
	m.stopReconnect()
	m.stopHeartbeat()

	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.dialing = false

	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	old := m.state
	m.state = State{Status: Disconnected}
	if old.Status != Disconnected {
		m.notes.Infof("Disconnected from server")
	}
	if old != m.state {
		m.emit(old)
	}
}

// Send writes env if connected, stamped with our identity as sender.
// Envelopes sent while disconnected are dropped, never queued.
func (m *Manager) Send(env *protocol.Envelope) error {
	if !m.Connected() {
		m.logger.Debug("dropping envelope while not connected",
			slog.String("type", string(env.Kind)),
			slog.String("status", m.state.Status.String()))
		return ErrNotConnected
	}

	if env.SenderID == "" && env.SenderName == "" {
		env = env.WithSender(m.cfg.Username, m.cfg.Username)
	}
	if err := m.conn.Send(env); err != nil {
		m.logger.Warn("send failed", slog.String("type", string(env.Kind)), slog.Any("error", err))
		return err
	}
	return nil
}

func (m *Manager) dial() {
	m.generation++
	gen := m.generation

	m.setStatus(Connecting, notify.Info, fmt.Sprintf("Connecting to %s", m.cfg.URL))

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	m.cancelDial = cancel
	m.dialing = true

	url, opts := m.cfg.URL, transport.Options{Codec: m.cfg.Codec, Logger: m.cfg.Logger}
	dialer := m.cfg.Dialer
	go func() {
		conn, err := dialer(ctx, url, opts)
		cancel()
		if !m.loop.Post(func() { m.dialed(gen, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (m *Manager) dialed(gen uint64, conn Conn, err error) {
	if gen != m.generation {
		if conn != nil {
			conn.Close()
		}
		return
	}
	m.dialing = false
	m.cancelDial = nil

	if err != nil {
		m.logger.Warn("dial failed", slog.String("url", m.cfg.URL), slog.Any("error", err))
		m.notes.Errorf("Failed to connect to server")
		m.closed(gen)
		return
	}

	m.conn = conn
	conn.Start(transport.Events{
		OnEnvelope: func(env *protocol.Envelope) {
			m.loop.Post(func() {
				if gen == m.generation {
					m.deliver(env)
				}
			})
		},
		OnError: func(err error) {
			m.loop.Post(func() {
				if gen == m.generation {
					m.logger.Warn("connection error", slog.Any("error", err))
					m.notes.Errorf("Connection error occurred")
				}
			})
		},
		OnClose: func(err error) {
			m.loop.Post(func() {
				if gen == m.generation {
					m.logger.Info("connection closed", slog.Any("cause", err))
					m.closed(gen)
				}
			})
		},
	})

	m.opened()
}

func (m *Manager) opened() {
	m.state.ReconnectAttempt = 0
	m.setStatus(Connected, notify.Success, "Connected to server")

	identity := protocol.IdentityPayload{Username: m.cfg.Username}
	m.Send(protocol.New(protocol.KindLogin, identity))
	m.Send(protocol.New(protocol.KindOnlineUsers, identity))

	m.scheduleHeartbeat(m.generation)

	for _, fn := range m.onConnected {
		fn()
	}
}

func (m *Manager) closed(gen uint64) {
	m.conn = nil
	m.stopHeartbeat()

	if m.state.ReconnectAttempt >= m.cfg.MaxReconnectAttempts {
		m.setStatus(Disconnected, notify.Error,
			fmt.Sprintf("Could not reconnect after %d attempts", m.cfg.MaxReconnectAttempts))
		return
	}

	m.setStatus(Reconnecting, notify.Warning,
		fmt.Sprintf("Connection lost, reconnecting in %s (attempt %d/%d)",
			m.cfg.ReconnectDelay, m.state.ReconnectAttempt+1, m.cfg.MaxReconnectAttempts))

	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.loop.Post(func() {
			if gen != m.generation || m.state.Status != Reconnecting {
				return
			}
			m.reconnectTimer = nil
			m.state.ReconnectAttempt++
			m.dial()
		})
	})
}

func (m *Manager) scheduleHeartbeat(gen uint64) {
	m.heartbeatTimer = time.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.loop.Post(func() {
			if gen != m.generation || m.state.Status != Connected {
				return
			}
			m.heartbeat()
			m.scheduleHeartbeat(gen)
		})
	})
}

func (m *Manager) heartbeat() {
	if err := m.Send(protocol.New(protocol.KindPing, protocol.IdentityPayload{Username: m.cfg.Username})); err != nil {
		return
	}
	m.state.LastHeartbeatAck = m.now()
}

func (m *Manager) deliver(env *protocol.Envelope) {
	if m.onEnvelope == nil {
		m.logger.Debug("no consumer for envelope", slog.String("type", string(env.Kind)))
		return
	}
	m.onEnvelope(env)
}

func (m *Manager) stopReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) stopHeartbeat() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
}

// setStatus moves to status and records exactly one notification when the
// status actually changes.
func (m *Manager) setStatus(status Status, sev notify.Severity, message string) {
	old := m.state
	if old.Status == status {
		return
	}
	m.state.Status = status
	m.notes.Add(sev, message)
	m.logger.Debug("status changed",
		slog.String("from", old.Status.String()),
		slog.String("to", status.String()))
	m.emit(old)
}

func (m *Manager) emit(old State) {
	ev := StateEvent{Old: old, New: m.state}
	for _, fn := range m.onState {
		fn(ev)
	}
}
