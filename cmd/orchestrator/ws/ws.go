// Package ws bridges execution events onto WebSocket connections and
// routes inbound resume messages back to the execution manager.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowscript/orchestrator/cmd/orchestrator/service"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/executor"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 30 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Maximum inbound message size; resume payloads are small JSON docs
	maxMessageSize = 32 << 10

	// Buffered events per connection; overflow is dropped and counted
	sendBuffer = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Bridge upgrades HTTP connections and streams one execution's events
// per connection.
type Bridge struct {
	executions *service.ExecutionService
	log        *logger.Logger
}

// NewBridge creates a new bridge
func NewBridge(executions *service.ExecutionService, log *logger.Logger) *Bridge {
	return &Bridge{
		executions: executions,
		log:        log,
	}
}

// clientMessage is an inbound frame. Only resume is understood.
type clientMessage struct {
	Type   string                 `json:"type"`
	NodeID string                 `json:"nodeId"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Handle implements GET /ws/executions/:id.
func (b *Bridge) Handle(c echo.Context) error {
	executionID := c.Param("id")
	log := b.log.WithExecutionID(executionID)

	rt, err := b.executions.Runtime(executionID)
	if err != nil {
		if errors.Is(err, executor.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return nil
	}

	cl := &client{
		bridge:      b,
		conn:        conn,
		executionID: executionID,
		emitter:     rt.Emitter(),
		sub:         rt.Emitter().SubscribeChan(sendBuffer),
		outbound:    make(chan []byte, 8),
		done:        make(chan struct{}),
		log:         log,
	}

	log.Info("websocket client connected", "remote", c.Request().RemoteAddr)

	go cl.writePump()
	cl.readPump()
	return nil
}

// client is one WebSocket connection bound to one execution.
type client struct {
	bridge      *Bridge
	conn        *websocket.Conn
	executionID string
	emitter     *events.Emitter
	sub         *events.ChannelSub
	outbound    chan []byte
	done        chan struct{}
	log         *logger.Logger
}

// readPump consumes inbound frames until the peer goes away. Resume
// messages are routed to the execution manager; the outcome is
// reported back on the outbound channel.
func (cl *client) readPump() {
	defer func() {
		close(cl.done)
		cl.emitter.UnsubscribeChan(cl.sub)
		cl.conn.Close()
		if n := cl.sub.Dropped(); n > 0 {
			cl.log.Warn("websocket client missed events", "dropped", n)
		}
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				cl.log.Warn("websocket read error", "error", err)
			}
			return
		}
		cl.handleMessage(raw)
	}
}

func (cl *client) handleMessage(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		cl.reply(map[string]interface{}{"type": "error", "error": "invalid message"})
		return
	}

	switch msg.Type {
	case "resume":
		if err := cl.bridge.executions.Resume(cl.executionID, msg.NodeID, msg.Data); err != nil {
			cl.reply(map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
		cl.reply(map[string]interface{}{"type": "ack", "nodeId": msg.NodeID})
	default:
		cl.reply(map[string]interface{}{"type": "error", "error": fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// reply queues a frame for the writer, dropping it if the writer has
// fallen behind. Acks are advisory; the event stream is the truth.
func (cl *client) reply(doc map[string]interface{}) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}
	select {
	case cl.outbound <- payload:
	default:
	}
}

// writePump streams events and replies to the peer, pinging to keep
// the connection alive. It exits when the subscription closes, a write
// fails, or the reader goes away.
func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-cl.sub.Events():
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Execution finished; say goodbye cleanly.
				cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "execution finished"))
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				cl.log.Error("failed to encode event", "event", ev.Type, "error", err)
				continue
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case payload := <-cl.outbound:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-cl.done:
			return
		}
	}
}
