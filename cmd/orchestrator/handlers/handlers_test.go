package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/routes"
	"github.com/flowscript/orchestrator/common/bootstrap"
	"github.com/flowscript/orchestrator/common/config"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/flowscript/orchestrator/executor"
	"github.com/flowscript/orchestrator/workflow"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		Service: config.ServiceConfig{
			Name:      "orchestrator-test",
			Port:      8080,
			LogLevel:  "error",
			LogFormat: "text",
		},
		Engine: config.EngineConfig{
			SubscribeGrace:    5 * time.Millisecond,
			MaxDepth:          100,
			MaxLoopIterations: 10000,
			CleanupInterval:   time.Minute,
			RetainTerminal:    time.Hour,
		},
	}
	components := &bootstrap.Components{
		Config: cfg,
		Logger: logger.New("error", "text"),
	}

	c, err := container.NewContainer(context.Background(), components)
	require.NoError(t, err, "container must initialize")

	e := echo.New()
	e.HideBanner = true
	routes.RegisterWorkflowRoutes(e, c)
	routes.RegisterExecutionRoutes(e, c)
	routes.RegisterNodeRoutes(e, c)
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
		"response must be JSON: %s", rec.Body.String())
}

// pollStatus waits until the execution reaches the wanted status.
func pollStatus(t *testing.T, e *echo.Echo, executionID, want string) executor.ExecutionStatus {
	t.Helper()
	var status executor.ExecutionStatus
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := doRequest(e, http.MethodGet, "/api/v1/executions/"+executionID+"/status", "")
		require.Equal(t, http.StatusOK, rec.Code, "status endpoint failed: %s", rec.Body.String())
		decodeJSON(t, rec, &status)
		if status.Status == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s never reached %s, stuck in %s", executionID, want, status.Status)
	return status
}

const simpleWorkflow = `{
	"id": "wf-simple",
	"name": "Simple",
	"initialState": {"x": 0},
	"nodes": [["setData", {"path": "x", "value": 1}]]
}`

func TestWorkflowCRUD(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/workflows", simpleWorkflow)
	require.Equal(t, http.StatusCreated, rec.Code, "create failed: %s", rec.Body.String())

	var created workflow.Definition
	decodeJSON(t, rec, &created)
	assert.Equal(t, "wf-simple", created.ID)
	assert.False(t, created.CreatedAt.IsZero(), "create should stamp created_at")

	// Duplicate ID conflicts
	rec = doRequest(e, http.MethodPost, "/api/v1/workflows", simpleWorkflow)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// List includes it
	rec = doRequest(e, http.MethodGet, "/api/v1/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Workflows []workflow.Definition `json:"workflows"`
		Count     int                   `json:"count"`
	}
	decodeJSON(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	// Get returns it
	rec = doRequest(e, http.MethodGet, "/api/v1/workflows/wf-simple", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got workflow.Definition
	decodeJSON(t, rec, &got)
	assert.Equal(t, "Simple", got.Name)

	// Full update
	renamed := strings.Replace(simpleWorkflow, `"name": "Simple"`, `"name": "Renamed"`, 1)
	rec = doRequest(e, http.MethodPut, "/api/v1/workflows/wf-simple", renamed)
	require.Equal(t, http.StatusOK, rec.Code, "update failed: %s", rec.Body.String())
	decodeJSON(t, rec, &got)
	assert.Equal(t, "Renamed", got.Name)

	// Update with a mismatched document ID is rejected
	rec = doRequest(e, http.MethodPut, "/api/v1/workflows/other", renamed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Merge patch
	rec = doRequest(e, http.MethodPatch, "/api/v1/workflows/wf-simple",
		`{"description": "patched", "metadata": {"owner": "finance"}}`)
	require.Equal(t, http.StatusOK, rec.Code, "patch failed: %s", rec.Body.String())
	decodeJSON(t, rec, &got)
	assert.Equal(t, "patched", got.Description)
	assert.Equal(t, "finance", got.Metadata["owner"])

	rec = doRequest(e, http.MethodPatch, "/api/v1/workflows/ghost", `{"name": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete
	rec = doRequest(e, http.MethodDelete, "/api/v1/workflows/wf-simple", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(e, http.MethodGet, "/api/v1/workflows/wf-simple", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(e, http.MethodDelete, "/api/v1/workflows/wf-simple", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowValidation(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/workflows", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/workflows", `{"id": "wf-empty", "name": "Empty"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no nodes")

	// Patch that breaks the flow grammar is rejected and not stored
	rec = doRequest(e, http.MethodPost, "/api/v1/workflows", simpleWorkflow)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(e, http.MethodPatch, "/api/v1/workflows/wf-simple", `{"nodes": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/workflows/wf-simple", "")
	var got workflow.Definition
	decodeJSON(t, rec, &got)
	assert.NotEmpty(t, got.Nodes, "failed patch must not clobber the stored definition")
}

func TestExecuteLifecycle(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/workflows", simpleWorkflow)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/workflows/wf-simple/execute", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, "execute failed: %s", rec.Body.String())

	var started struct {
		ExecutionID string `json:"executionId"`
		Status      string `json:"status"`
	}
	decodeJSON(t, rec, &started)
	require.NotEmpty(t, started.ExecutionID)
	assert.Equal(t, "started", started.Status)

	status := pollStatus(t, e, started.ExecutionID, executor.StatusCompleted)
	assert.Equal(t, "wf-simple", status.WorkflowID)
	assert.Equal(t, float64(1), status.State["x"], "node write should land in the final state")

	// Listing and filters
	rec = doRequest(e, http.MethodGet, "/api/v1/executions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Executions []executor.ExecutionStatus `json:"executions"`
		Count      int                        `json:"count"`
	}
	decodeJSON(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = doRequest(e, http.MethodGet, "/api/v1/executions?workflowId=wf-simple&status=completed", "")
	decodeJSON(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = doRequest(e, http.MethodGet, "/api/v1/executions?status=paused", "")
	decodeJSON(t, rec, &list)
	assert.Equal(t, 0, list.Count)

	// Input state merges over the initial state
	rec = doRequest(e, http.MethodPost, "/api/v1/workflows/wf-simple/execute",
		`{"state": {"y": 7}, "subscribeGraceMs": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeJSON(t, rec, &started)
	status = pollStatus(t, e, started.ExecutionID, executor.StatusCompleted)
	assert.Equal(t, float64(7), status.State["y"])

	// Unknown workflow
	rec = doRequest(e, http.MethodPost, "/api/v1/workflows/ghost/execute", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeOverREST(t *testing.T) {
	e := newTestServer(t)

	def := `{
		"id": "wf-approval",
		"name": "Expense approval",
		"nodes": [["approveExpense", {"amount": 500}]]
	}`
	rec := doRequest(e, http.MethodPost, "/api/v1/workflows", def)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/workflows/wf-approval/execute", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started struct {
		ExecutionID string `json:"executionId"`
	}
	decodeJSON(t, rec, &started)

	status := pollStatus(t, e, started.ExecutionID, executor.StatusPaused)
	assert.Len(t, status.PauseTokenIDs, 1, "paused execution should hold one token")

	// Resume an execution that exists but is missing the node
	rec = doRequest(e, http.MethodPost,
		"/api/v1/executions/"+started.ExecutionID+"/resume",
		`{"nodeId": "noSuchNode", "data": {}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodPost,
		"/api/v1/executions/"+started.ExecutionID+"/resume",
		`{"nodeId": "approveExpense", "data": {"decision": "approved", "comment": "ok"}}`)
	require.Equal(t, http.StatusOK, rec.Code, "resume failed: %s", rec.Body.String())

	status = pollStatus(t, e, started.ExecutionID, executor.StatusCompleted)
	decision, ok := status.State["approvalDecision"].(map[string]interface{})
	require.True(t, ok, "approval decision should land in state: %v", status.State)
	assert.Equal(t, "approved", decision["decision"])

	// Resuming a finished execution conflicts
	rec = doRequest(e, http.MethodPost,
		"/api/v1/executions/"+started.ExecutionID+"/resume",
		`{"nodeId": "approveExpense", "data": {}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown execution
	rec = doRequest(e, http.MethodPost, "/api/v1/executions/ghost/resume",
		`{"nodeId": "approveExpense", "data": {}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOverREST(t *testing.T) {
	e := newTestServer(t)

	def := `{
		"id": "wf-slow",
		"name": "Slow",
		"nodes": [["delay", {"duration": 5000}]]
	}`
	rec := doRequest(e, http.MethodPost, "/api/v1/workflows", def)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/workflows/wf-slow/execute", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started struct {
		ExecutionID string `json:"executionId"`
	}
	decodeJSON(t, rec, &started)

	pollStatus(t, e, started.ExecutionID, executor.StatusRunning)

	rec = doRequest(e, http.MethodPost, "/api/v1/executions/"+started.ExecutionID+"/cancel", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	status := pollStatus(t, e, started.ExecutionID, executor.StatusCancelled)
	assert.Equal(t, executor.StatusCancelled, status.Status)

	// Cancel is idempotent
	rec = doRequest(e, http.MethodPost, "/api/v1/executions/"+started.ExecutionID+"/cancel", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/executions/ghost/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/executions/ghost/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNodeEndpoints(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Nodes []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"nodes"`
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &list)
	require.NotZero(t, list.Count)

	names := make(map[string]bool, list.Count)
	for _, n := range list.Nodes {
		names[n.Name] = true
	}
	for _, want := range []string{"setData", "checkValue", "forEach", "delay", "approveExpense"} {
		assert.True(t, names[want], "built-in node %s should be listed", want)
	}

	// Substring search
	rec = doRequest(e, http.MethodGet, "/api/v1/nodes/search?q=data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &list)
	require.NotZero(t, list.Count)
	for _, n := range list.Nodes {
		assert.Contains(t, strings.ToLower(n.Name), "data")
	}

	// Type filter
	rec = doRequest(e, http.MethodGet, "/api/v1/nodes/search?type=human", "")
	decodeJSON(t, rec, &list)
	require.NotZero(t, list.Count)
	for _, n := range list.Nodes {
		assert.Equal(t, "human", n.Type)
	}

	// Edge filter narrows to nodes that can emit it
	rec = doRequest(e, http.MethodGet, fmt.Sprintf("/api/v1/nodes/search?edge=%s", "approved"), "")
	decodeJSON(t, rec, &list)
	require.NotZero(t, list.Count)
	for _, n := range list.Nodes {
		assert.Equal(t, "human", n.Type, "only human gates emit approved")
	}
}
