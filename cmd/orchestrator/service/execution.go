package service

import (
	"context"
	"time"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/flowscript/orchestrator/executor"
	"github.com/flowscript/orchestrator/relay"
	"github.com/flowscript/orchestrator/runtime"
)

// ExecutionService drives the execution manager on behalf of the REST
// and WebSocket surfaces.
type ExecutionService struct {
	manager *executor.Manager
	repo    catalog.Repository
	relay   *relay.Publisher
	runCtx  context.Context
	log     *logger.Logger
}

// NewExecutionService creates a new execution service. runCtx is the
// service-lifetime context executions run under; relayPub may be nil
// when the redis relay is disabled.
func NewExecutionService(runCtx context.Context, manager *executor.Manager, repo catalog.Repository, relayPub *relay.Publisher, log *logger.Logger) *ExecutionService {
	return &ExecutionService{
		manager: manager,
		repo:    repo,
		relay:   relayPub,
		runCtx:  runCtx,
		log:     log,
	}
}

// ExecuteRequest is the POST execute body.
type ExecuteRequest struct {
	State            map[string]interface{} `json:"state,omitempty"`
	SubscribeGraceMs *int                   `json:"subscribeGraceMs,omitempty"`
}

// Execute starts an execution of a stored workflow. The execution runs
// on the service context, not the request context, so it survives the
// HTTP response.
func (s *ExecutionService) Execute(ctx context.Context, workflowID string, req ExecuteRequest) (string, error) {
	def, err := s.repo.Get(ctx, workflowID)
	if err != nil {
		return "", err
	}

	var opts []executor.StartOption
	if req.SubscribeGraceMs != nil {
		opts = append(opts, executor.WithSubscribeGrace(time.Duration(*req.SubscribeGraceMs)*time.Millisecond))
	}

	id, err := s.manager.Start(s.runCtx, def, req.State, opts...)
	if err != nil {
		return "", err
	}

	// Attaching inside the subscribe grace window, so the relay sees the
	// execution's events from workflow:started on.
	if s.relay != nil {
		if rt, err := s.manager.GetRuntime(id); err == nil {
			s.relay.Attach(s.runCtx, rt.Emitter())
		}
	}

	return id, nil
}

// Status returns a point-in-time snapshot of one execution.
func (s *ExecutionService) Status(executionID string) (*executor.ExecutionStatus, error) {
	return s.manager.Status(executionID)
}

// List returns execution snapshots, optionally filtered by status
// and/or workflow ID. Empty filters match everything.
func (s *ExecutionService) List(status, workflowID string) []*executor.ExecutionStatus {
	all := s.manager.List()
	if status == "" && workflowID == "" {
		return all
	}

	out := make([]*executor.ExecutionStatus, 0, len(all))
	for _, st := range all {
		if status != "" && st.Status != status {
			continue
		}
		if workflowID != "" && st.WorkflowID != workflowID {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Resume delivers human input to a paused execution.
func (s *ExecutionService) Resume(executionID, nodeRef string, data map[string]interface{}) error {
	return s.manager.Resume(executionID, nodeRef, data)
}

// Cancel requests cancellation. It is idempotent and a no-op on
// executions that already reached a terminal status.
func (s *ExecutionService) Cancel(executionID string) error {
	return s.manager.Cancel(executionID)
}

// Runtime exposes an execution's runtime context, used by the
// WebSocket bridge to subscribe to its events.
func (s *ExecutionService) Runtime(executionID string) (*runtime.Context, error) {
	return s.manager.GetRuntime(executionID)
}
