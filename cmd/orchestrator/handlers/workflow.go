package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/cmd/orchestrator/service"
	"github.com/labstack/echo/v4"
)

// WorkflowHandler handles workflow catalog requests
type WorkflowHandler struct {
	workflows *service.WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflows *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		workflows: workflows,
	}
}

// CreateWorkflow stores a new workflow definition
// POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	def, err := h.workflows.Create(c.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, catalog.ErrExists) {
			return errorJSON(c, http.StatusConflict, err)
		}
		return errorJSON(c, http.StatusBadRequest, err)
	}

	return c.JSON(http.StatusCreated, def)
}

// GetWorkflow retrieves a workflow definition by ID
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	def, err := h.workflows.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, def)
}

// ListWorkflows lists all stored workflow definitions
// GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	defs, err := h.workflows.List(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"workflows": defs,
		"count":     len(defs),
	})
}

// UpdateWorkflow replaces a workflow definition
// PUT /api/v1/workflows/:id
func (h *WorkflowHandler) UpdateWorkflow(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	def, err := h.workflows.Update(c.Request().Context(), c.Param("id"), raw)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusBadRequest, err)
	}

	return c.JSON(http.StatusOK, def)
}

// PatchWorkflow applies an RFC 7386 merge patch to a stored definition
// PATCH /api/v1/workflows/:id
func (h *WorkflowHandler) PatchWorkflow(c echo.Context) error {
	patch, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	def, err := h.workflows.Patch(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusBadRequest, err)
	}

	return c.JSON(http.StatusOK, def)
}

// DeleteWorkflow removes a workflow definition
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) DeleteWorkflow(c echo.Context) error {
	if err := h.workflows.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}

	return c.NoContent(http.StatusNoContent)
}
