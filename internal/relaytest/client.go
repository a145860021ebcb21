package relaytest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// client is one websocket connection held by the hub.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan *protocol.Envelope

	// Owned by the hub goroutine.
	username string
	rooms    map[string]bool

	mu    sync.Mutex
	codec protocol.Codec
}

func (c *client) setCodec(codec protocol.Codec) {
	c.mu.Lock()
	c.codec = codec
	c.mu.Unlock()
}

func (c *client) currentCodec() protocol.Codec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec
}

// readPump decodes frames in the codec matching their frame type and hands
// them to the hub. Clients are answered in the codec they last used.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		codec := protocol.JSON
		if frameType == websocket.BinaryMessage {
			codec = protocol.Msgpack
		}
		c.setCodec(codec)

		env, err := codec.Decode(data)
		if err != nil {
			c.hub.logger.Debug("dropping malformed frame", slog.Any("error", err))
			continue
		}
		select {
		case c.hub.inbound <- inbound{from: c, env: env}:
		case <-c.hub.quit:
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			codec := c.currentCodec()
			data, err := codec.Encode(env)
			if err != nil {
				c.hub.logger.Warn("encode failed", slog.String("type", string(env.Kind)), slog.Any("error", err))
				continue
			}
			frame := websocket.TextMessage
			if codec.Binary() {
				frame = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(frame, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
