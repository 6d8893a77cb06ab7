package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/flowscript/orchestrator/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The fanout tier fronts browsers on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades watcher connections and hands them to the hub.
type Server struct {
	hub *Hub
	log *logger.Logger
}

// NewServer creates the HTTP surface for the fanout tier.
func NewServer(hub *Hub, log *logger.Logger) *Server {
	return &Server{
		hub: hub,
		log: log,
	}
}

// HandleWebSocket upgrades a watcher connection.
// GET /ws?executionId=exec-1234
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	executionID := r.URL.Query().Get("executionId")
	if executionID == "" {
		http.Error(w, "executionId query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, executionID, s.log)
	s.hub.register <- client

	s.log.Info("watcher connected",
		"execution_id", executionID,
		"remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// HandleStats reports live watcher counts.
// GET /stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": s.hub.ConnectionCount(),
		"executions":  s.hub.ExecutionCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
