// Command fanout serves workflow events to WebSocket watchers. It
// subscribes to the redis channels the orchestrator's relay publishes
// on and forwards each event to the clients watching that execution,
// letting browser traffic scale independently of the engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/flowscript/orchestrator/common/bootstrap"
	"github.com/flowscript/orchestrator/common/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "fanout", bootstrap.WithoutDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start fanout: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	log := components.Logger
	if components.Redis == nil {
		log.Error("fanout requires redis, set REDIS_ENABLED=true")
		os.Exit(1)
	}

	hub := NewHub(log)
	go hub.Run(ctx)

	subscriber := NewSubscriber(components.Redis, hub, components.Config.Redis.ChannelPrefix, log)
	go func() {
		if err := subscriber.Start(ctx); err != nil {
			log.Error("relay subscriber failed", "error", err)
			components.Shutdown(context.Background())
			os.Exit(1)
		}
	}()

	srv := NewServer(hub, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)
	mux.HandleFunc("/stats", srv.HandleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := components.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "fanout",
		})
	})

	httpServer := server.New("fanout", components.Config.Service.Port, mux, log)
	if err := httpServer.Start(); err != nil {
		log.Error("fanout server failed", "error", err)
		os.Exit(1)
	}
}
