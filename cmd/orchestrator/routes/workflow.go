package routes

import (
	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterWorkflowRoutes registers all workflow catalog routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c.WorkflowService)

	wf := e.Group("/api/v1/workflows")
	{
		wf.POST("", h.CreateWorkflow)       // POST /api/v1/workflows
		wf.GET("", h.ListWorkflows)         // GET /api/v1/workflows
		wf.GET("/:id", h.GetWorkflow)       // GET /api/v1/workflows/expense-approval
		wf.PUT("/:id", h.UpdateWorkflow)    // PUT /api/v1/workflows/expense-approval
		wf.PATCH("/:id", h.PatchWorkflow)   // PATCH /api/v1/workflows/expense-approval
		wf.DELETE("/:id", h.DeleteWorkflow) // DELETE /api/v1/workflows/expense-approval
	}
}
