package routes

import (
	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterExecutionRoutes registers all execution lifecycle routes
func RegisterExecutionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewExecutionHandler(c.ExecutionService)

	// Starting an execution lives under the workflow it runs
	e.POST("/api/v1/workflows/:id/execute", h.ExecuteWorkflow)

	ex := e.Group("/api/v1/executions")
	{
		ex.GET("", h.ListExecutions)              // GET /api/v1/executions?status=paused
		ex.GET("/:id/status", h.GetExecutionStatus) // GET /api/v1/executions/:id/status
		ex.POST("/:id/resume", h.ResumeExecution) // POST /api/v1/executions/:id/resume
		ex.POST("/:id/cancel", h.CancelExecution) // POST /api/v1/executions/:id/cancel
	}
}
