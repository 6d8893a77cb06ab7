package handlers

import (
	"errors"
	"net/http"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/cmd/orchestrator/service"
	"github.com/flowscript/orchestrator/executor"
	"github.com/labstack/echo/v4"
)

// ExecutionHandler handles execution lifecycle requests
type ExecutionHandler struct {
	executions *service.ExecutionService
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(executions *service.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
	}
}

// ResumeRequest is the POST resume body.
type ResumeRequest struct {
	NodeID string                 `json:"nodeId"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// ExecuteWorkflow starts an execution of a stored workflow
// POST /api/v1/workflows/:id/execute
func (h *ExecutionHandler) ExecuteWorkflow(c echo.Context) error {
	var req service.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	executionID, err := h.executions.Execute(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, executor.ErrBusy):
			return errorJSON(c, http.StatusTooManyRequests, err)
		default:
			return errorJSON(c, http.StatusBadRequest, err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"executionId": executionID,
		"status":      "started",
	})
}

// GetExecutionStatus returns a point-in-time execution snapshot
// GET /api/v1/executions/:id/status
func (h *ExecutionHandler) GetExecutionStatus(c echo.Context) error {
	status, err := h.executions.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, executor.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, status)
}

// ListExecutions lists executions with optional filters
// GET /api/v1/executions?status=paused&workflowId=wf-1
func (h *ExecutionHandler) ListExecutions(c echo.Context) error {
	executions := h.executions.List(c.QueryParam("status"), c.QueryParam("workflowId"))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	})
}

// ResumeExecution delivers human input to a paused execution
// POST /api/v1/executions/:id/resume
func (h *ExecutionHandler) ResumeExecution(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	if err := h.executions.Resume(c.Param("id"), req.NodeID, req.Data); err != nil {
		switch {
		case errors.Is(err, executor.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, executor.ErrNotPaused):
			return errorJSON(c, http.StatusConflict, err)
		default:
			return errorJSON(c, http.StatusBadRequest, err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"executionId": c.Param("id"),
		"status":      "resumed",
	})
}

// CancelExecution requests cancellation of an execution
// POST /api/v1/executions/:id/cancel
func (h *ExecutionHandler) CancelExecution(c echo.Context) error {
	if err := h.executions.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, executor.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"executionId": c.Param("id"),
		"status":      "cancelling",
	})
}
