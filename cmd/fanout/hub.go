package main

import (
	"context"
	"sync"

	"github.com/flowscript/orchestrator/common/logger"
)

// Hub tracks WebSocket watchers by execution ID and fans relay
// payloads out to them. Register, unregister and broadcast are all
// handled on the Run goroutine; the mutex only guards the stats
// readers.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	log *logger.Logger
}

// Message is one event payload addressed to an execution's watchers.
type Message struct {
	ExecutionID string
	Data        []byte
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		log:         log,
	}
}

// Run dispatches hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("hub stopped")
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.fanout(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[client.executionID] = append(h.connections[client.executionID], client)
	h.log.Debug("watcher registered",
		"execution_id", client.executionID,
		"watchers", len(h.connections[client.executionID]))
}

// remove is the only place that closes a client's send channel.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.connections[client.executionID]
	for i, c := range clients {
		if c == client {
			h.connections[client.executionID] = append(clients[:i], clients[i+1:]...)
			close(client.send)

			if len(h.connections[client.executionID]) == 0 {
				delete(h.connections, client.executionID)
			}

			h.log.Debug("watcher unregistered",
				"execution_id", client.executionID,
				"watchers", len(h.connections[client.executionID]))
			break
		}
	}
}

// fanout delivers a payload to every watcher of its execution. A
// watcher whose buffer is full loses its connection rather than stall
// the hub; closing the conn makes its readPump unregister it.
func (h *Hub) fanout(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.connections[message.ExecutionID] {
		select {
		case client.send <- message.Data:
		default:
			h.log.Warn("watcher send buffer full, dropping connection",
				"execution_id", client.executionID)
			client.conn.Close()
		}
	}
}

// ConnectionCount returns the number of active watcher connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// ExecutionCount returns the number of executions with at least one
// watcher.
func (h *Hub) ExecutionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}
