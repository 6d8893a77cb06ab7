package main

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowscript/orchestrator/common/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 30 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Watchers only send pongs; resume commands go through the
	// orchestrator API, not the fanout tier.
	maxMessageSize = 512
)

// Client is one watcher connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	executionID string
	send        chan []byte
	log         *logger.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, executionID string, log *logger.Logger) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		executionID: executionID,
		send:        make(chan []byte, 512),
		log:         log,
	}
}

// readPump discards inbound frames and detects disconnects. The fanout
// stream is server-push only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("watcher read error",
					"execution_id", c.executionID,
					"error", err)
			}
			return
		}
	}
}

// writePump forwards hub payloads to the peer, each event as its own
// text frame so clients can decode frame by frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain whatever queued up behind this frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				message, ok := <-c.send
				if !ok {
					return
				}
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
