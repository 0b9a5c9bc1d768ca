package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

type role int

const (
	roleNone role = iota
	roleMaster
	roleOperator
)

// Client is one WebSocket connection. conn is only touched by the pumps;
// every other field belongs to the hub goroutine.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	role   role
	office string
	pcID   string
	closed bool
}

// readPump forwards decoded envelopes to the hub until the connection fails
// or goes quiet for longer than PongWait.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(context.Background(), "read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.hub.logger.Debug(context.Background(), "dropping malformed frame", "conn_id", c.id)
			continue
		}

		select {
		case c.hub.inbound <- inbound{client: c, env: env}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump writes queued frames, one envelope per frame, and pings the peer
// every PingInterval. A closed send channel ends the connection.
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
