package routes

import (
	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterNodeRoutes registers node registry metadata routes
func RegisterNodeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewNodeHandler(c.Registry)

	n := e.Group("/api/v1/nodes")
	{
		n.GET("", h.ListNodes)          // GET /api/v1/nodes
		n.GET("/search", h.SearchNodes) // GET /api/v1/nodes/search?q=data
	}
}
