package routes

import (
	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/ws"
	"github.com/labstack/echo/v4"
)

// RegisterWSRoutes registers the per-execution WebSocket bridge
func RegisterWSRoutes(e *echo.Echo, c *container.Container) {
	bridge := ws.NewBridge(c.ExecutionService, c.Components.Logger)

	e.GET("/ws/executions/:id", bridge.Handle)
}
