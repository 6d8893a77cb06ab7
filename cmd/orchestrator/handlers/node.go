package handlers

import (
	"net/http"

	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/sdk"
	"github.com/labstack/echo/v4"
)

// NodeHandler serves node registry metadata
type NodeHandler struct {
	registry *registry.Registry
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(reg *registry.Registry) *NodeHandler {
	return &NodeHandler{
		registry: reg,
	}
}

// ListNodes lists metadata for every registered node
// GET /api/v1/nodes
func (h *NodeHandler) ListNodes(c echo.Context) error {
	nodes := h.registry.List()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// SearchNodes filters registry metadata
// GET /api/v1/nodes/search?q=data&type=action&edge=approved
func (h *NodeHandler) SearchNodes(c echo.Context) error {
	nodes := h.registry.Search(registry.Query{
		NamePattern:  c.QueryParam("q"),
		Type:         sdk.NodeType(c.QueryParam("type")),
		ExpectedEdge: c.QueryParam("edge"),
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"nodes": nodes,
		"count": len(nodes),
	})
}
