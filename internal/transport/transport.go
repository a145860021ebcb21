// Package transport owns a single websocket connection to the presence
// server and converts frames to and from protocol envelopes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/dns"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 10 * time.Second
	sendBuffer       = 64

	// MaxFrameSize bounds a single inbound frame.
	MaxFrameSize = 64 * 1024
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

// Events receives what happens on a connection. Callbacks run on the
// connection's read goroutine, one at a time and in arrival order.
type Events struct {
	OnEnvelope func(*protocol.Envelope)
	// OnError reports an abnormal failure. OnClose always follows.
	OnError func(error)
	// OnClose is called exactly once when the connection is gone.
	OnClose func(error)
}

// Options configures Dial.
type Options struct {
	// Codec encodes outbound envelopes. Inbound frames are decoded by frame
	// type regardless. Defaults to protocol.JSON.
	Codec  protocol.Codec
	Header http.Header
	Logger *slog.Logger
}

type frame struct {
	messageType int
	data        []byte
}

// Conn is one live websocket connection.
type Conn struct {
	ws       *websocket.Conn
	codec    protocol.Codec
	logger   *slog.Logger
	outgoing chan frame
	done     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// Dial connects to serverURL. Plain http(s) URLs are upgraded to ws(s).
func Dial(ctx context.Context, serverURL string, opts Options) (*Conn, error) {
	u, err := NormalizeURL(serverURL)
	if err != nil {
		return nil, err
	}

	if opts.Codec == nil {
		opts.Codec = protocol.JSON
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, u, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	ws.SetReadLimit(MaxFrameSize)

	return &Conn{
		ws:       ws,
		codec:    opts.Codec,
		logger:   opts.Logger.With(slog.String("component", "transport")),
		outgoing: make(chan frame, sendBuffer),
		done:     make(chan struct{}),
	}, nil
}

// NormalizeURL validates serverURL and maps http(s) schemes to ws(s).
func NormalizeURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: scheme must be ws, wss, http or https", serverURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}
	return u.String(), nil
}

// Start launches the read and write pumps.
func (c *Conn) Start(ev Events) {
	go c.readPump(ev)
	go c.writePump()
}

// Send encodes env and queues it for writing. It never blocks.
func (c *Conn) Send(env *protocol.Envelope) error {
	data, err := c.codec.Encode(env)
	if err != nil {
		return err
	}

	mt := websocket.TextMessage
	if c.codec.Binary() {
		mt = websocket.BinaryMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.outgoing <- frame{messageType: mt, data: data}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close sends a close frame and tears the connection down. The read pump
// then reports OnClose.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump decodes inbound frames until the connection fails.
func (c *Conn) readPump(ev Events) {
	var cause error
	defer func() {
		c.Close()
		c.ws.Close()
		if ev.OnClose != nil {
			ev.OnClose(cause)
		}
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			cause = err
			if !c.isClosed() && abnormal(err) {
				if ev.OnError != nil {
					ev.OnError(err)
				}
			}
			return
		}

		codec := protocol.JSON
		if mt == websocket.BinaryMessage {
			codec = protocol.Msgpack
		}

		env, err := codec.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", slog.String("codec", codec.Name()), slog.Any("error", err))
			continue
		}

		if ev.OnEnvelope != nil {
			ev.OnEnvelope(env)
		}
	}
}

// abnormal reports whether err is anything other than a clean close
// handshake from the server.
func abnormal(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway
	}
	return true
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case f := <-c.outgoing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Debug("write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
