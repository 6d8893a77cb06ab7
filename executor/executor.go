// Package executor manages workflow executions end to end: admission,
// the pending/running/paused lifecycle, resume and cancel, and
// eviction of finished runs. Every execution gets its own state store,
// event emitter and runtime context, so concurrent runs share nothing
// but the node registry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/interpreter"
	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/runtime"
	"github.com/flowscript/orchestrator/state"
	"github.com/flowscript/orchestrator/workflow"
)

// Execution statuses. pending and running and paused are live;
// completed, failed and cancelled are terminal and sticky.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const defaultSubscribeGrace = 100 * time.Millisecond

var (
	// ErrNotFound is returned for unknown executions and unknown
	// resume targets.
	ErrNotFound = errors.New("execution not found")
	// ErrNotPaused is returned when resuming an execution that is not
	// waiting for input.
	ErrNotPaused = errors.New("execution is not paused")
	// ErrBusy is returned when the concurrent execution limit is
	// reached.
	ErrBusy = errors.New("too many concurrent executions")
)

// Logger interface for executor logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Options configures a Manager. Zero values pick the defaults.
type Options struct {
	// SubscribeGrace is how long a started execution waits before
	// emitting its first event, giving the caller time to subscribe.
	// Default 100ms.
	SubscribeGrace time.Duration
	// MaxConcurrentExecutions caps live executions. 0 means unlimited.
	MaxConcurrentExecutions int
	// MaxDepth and MaxLoopIterations are passed to the interpreter.
	MaxDepth          int
	MaxLoopIterations int
	// Metrics enables Prometheus collection when non-nil.
	Metrics *Metrics
}

// StartOption overrides manager defaults for a single Start call.
type StartOption func(*startOptions)

type startOptions struct {
	grace    time.Duration
	graceSet bool
}

// WithSubscribeGrace overrides the subscribe grace for one execution.
func WithSubscribeGrace(d time.Duration) StartOption {
	return func(o *startOptions) {
		o.grace = d
		o.graceSet = true
	}
}

// ExecutionStatus is a point-in-time copy of one execution. State and
// PauseTokenIDs are deep copies; mutating them does not touch the
// execution.
type ExecutionStatus struct {
	ID              string                 `json:"id"`
	WorkflowID      string                 `json:"workflowId"`
	Status          string                 `json:"status"`
	CurrentNodeID   string                 `json:"currentNodeId,omitempty"`
	CurrentNodeName string                 `json:"currentNodeName,omitempty"`
	PauseTokenIDs   []string               `json:"pauseTokenIds,omitempty"`
	State           map[string]interface{} `json:"state"`
	StartTime       time.Time              `json:"startTime"`
	EndTime         time.Time              `json:"endTime,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// execution is the manager's bookkeeping for one run.
type execution struct {
	id         string
	workflowID string
	flow       []*workflow.Element
	store      *state.Store
	emitter    *events.Emitter
	rt         *runtime.Context

	mu        sync.Mutex
	status    string
	errMsg    string
	startTime time.Time
	endTime   time.Time
}

// transition flips status from one value to another. It reports
// whether the flip happened.
func (e *execution) transition(from, to string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != from {
		return false
	}
	e.status = to
	return true
}

// finalize moves the execution into a terminal status unless another
// terminal status already won the race.
func (e *execution) finalize(status, errMsg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if isTerminal(e.status) {
		return false
	}
	e.status = status
	e.errMsg = errMsg
	e.endTime = time.Now()
	return true
}

func (e *execution) currentStatus() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *execution) isTerminal() bool {
	return isTerminal(e.currentStatus())
}

// endedBefore reports whether the execution reached a terminal status
// before the cutoff.
func (e *execution) endedBefore(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return isTerminal(e.status) && !e.endTime.IsZero() && e.endTime.Before(cutoff)
}

// snapshot builds a deep-copied status document.
func (e *execution) snapshot() *ExecutionStatus {
	nodeID, nodeName := e.rt.CurrentNode()
	tokens := e.rt.ActiveTokens()
	tokenIDs := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenIDs = append(tokenIDs, t.ID())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return &ExecutionStatus{
		ID:              e.id,
		WorkflowID:      e.workflowID,
		Status:          e.status,
		CurrentNodeID:   nodeID,
		CurrentNodeName: nodeName,
		PauseTokenIDs:   tokenIDs,
		State:           e.store.Snapshot(),
		StartTime:       e.startTime,
		EndTime:         e.endTime,
		Error:           e.errMsg,
	}
}

// release cancels the runtime context and closes the emitter once the
// execution is over.
func (e *execution) release() {
	e.rt.Cancel(runtime.ErrCancelled)
	e.emitter.Close()
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Manager starts, tracks and finalizes workflow executions.
type Manager struct {
	interp  *interpreter.Interpreter
	logger  Logger
	opts    Options
	metrics *Metrics

	mu         sync.Mutex
	executions map[string]*execution
	order      []string
}

// NewManager creates a manager over a node registry.
func NewManager(reg *registry.Registry, logger Logger, opts Options) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	if opts.SubscribeGrace <= 0 {
		opts.SubscribeGrace = defaultSubscribeGrace
	}
	return &Manager{
		interp: interpreter.New(reg, logger, interpreter.Options{
			MaxDepth:          opts.MaxDepth,
			MaxLoopIterations: opts.MaxLoopIterations,
		}),
		logger:     logger,
		opts:       opts,
		metrics:    opts.Metrics,
		executions: make(map[string]*execution),
	}
}

// Start admits a new execution of def and returns its ID. The state
// store is seeded from def.InitialState merged with input. The run
// itself happens on a background goroutine which waits the subscribe
// grace, flips the status to running, emits workflow:started and
// interprets the flow. ctx is the execution's parent: cancelling it
// cancels the run.
func (m *Manager) Start(ctx context.Context, def *workflow.Definition, input map[string]interface{}, opts ...StartOption) (string, error) {
	flow, err := def.Flow()
	if err != nil {
		return "", fmt.Errorf("invalid workflow %s: %w", def.ID, err)
	}

	var so startOptions
	for _, opt := range opts {
		opt(&so)
	}
	grace := m.opts.SubscribeGrace
	if so.graceSet {
		grace = so.grace
	}

	executionID := uuid.New().String()
	store := state.New(def.InitialState)
	if len(input) > 0 {
		store.Update(input)
	}
	emitter := events.NewEmitter(def.ID, executionID, m.logger)
	// Installed after seeding so the input merge does not emit.
	store.SetHooks(state.Hooks{
		After: func(path string, newValue interface{}) {
			emitter.Emit(events.Event{Type: events.StateUpdated, Data: map[string]interface{}{
				"path":     path,
				"newValue": newValue,
			}})
		},
	})
	rt := runtime.NewContext(ctx, def.ID, executionID, store, emitter, m.logger)

	exec := &execution{
		id:         executionID,
		workflowID: def.ID,
		flow:       flow,
		store:      store,
		emitter:    emitter,
		rt:         rt,
		status:     StatusPending,
		startTime:  time.Now(),
	}

	// The runtime emits workflow:paused and workflow:resumed; the
	// manager derives the paused status from them rather than letting
	// nodes reach into its bookkeeping.
	emitter.On(events.WorkflowPaused, func(events.Event) {
		exec.transition(StatusRunning, StatusPaused)
	})
	emitter.On(events.WorkflowResumed, func(events.Event) {
		exec.transition(StatusPaused, StatusRunning)
	})
	if m.metrics != nil {
		var nodeStart time.Time
		emitter.On(events.NodeExecuting, func(events.Event) {
			nodeStart = time.Now()
		})
		emitter.On(events.NodeCompleted, func(ev events.Event) {
			m.metrics.NodeFinished(eventNodeName(ev), "completed", time.Since(nodeStart))
		})
		emitter.On(events.NodeFailed, func(ev events.Event) {
			m.metrics.NodeFinished(eventNodeName(ev), "failed", time.Since(nodeStart))
		})
	}

	m.mu.Lock()
	if m.opts.MaxConcurrentExecutions > 0 && m.liveCount() >= m.opts.MaxConcurrentExecutions {
		m.mu.Unlock()
		rt.Cancel(runtime.ErrCancelled)
		return "", fmt.Errorf("%w: limit %d", ErrBusy, m.opts.MaxConcurrentExecutions)
	}
	m.executions[executionID] = exec
	m.order = append(m.order, executionID)
	m.mu.Unlock()

	m.metrics.ExecutionStarted()
	m.logger.Info("execution started",
		"workflow_id", def.ID,
		"execution_id", executionID,
		"subscribe_grace", grace.String())

	go m.run(exec, grace)
	return executionID, nil
}

// run drives one execution from grace wait to terminal status.
func (m *Manager) run(exec *execution, grace time.Duration) {
	defer exec.release()
	started := time.Now()
	defer func() {
		m.metrics.ExecutionFinished(exec.currentStatus(), time.Since(started))
	}()

	if grace > 0 {
		timer := time.NewTimer(grace)
		select {
		case <-exec.rt.Context().Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	// A cancel that lands during the grace window wins outright: the
	// flow never runs and no events are emitted.
	if exec.rt.Err() != nil || !exec.transition(StatusPending, StatusRunning) {
		exec.finalize(StatusCancelled, "")
		m.logger.Info("execution cancelled before start",
			"execution_id", exec.id)
		return
	}

	exec.emitter.Emit(events.Event{Type: events.WorkflowStarted, Data: map[string]interface{}{
		"state": exec.store.Snapshot(),
	}})

	err := m.interp.Run(exec.rt, exec.flow)
	switch {
	case err == nil:
		if exec.finalize(StatusCompleted, "") {
			exec.emitter.Emit(events.Event{Type: events.WorkflowCompleted, Data: map[string]interface{}{
				"finalState": exec.store.Snapshot(),
			}})
			m.logger.Info("execution completed", "execution_id", exec.id)
		}
	case errors.Is(err, runtime.ErrCancelled), errors.Is(err, context.Canceled):
		// Cancelled executions emit no completion event.
		exec.finalize(StatusCancelled, "")
		m.logger.Info("execution cancelled", "execution_id", exec.id)
	default:
		if exec.finalize(StatusFailed, err.Error()) {
			exec.emitter.Emit(events.Event{Type: events.WorkflowFailed, Data: map[string]interface{}{
				"error": err.Error(),
				"state": exec.store.Snapshot(),
			}})
			m.logger.Error("execution failed",
				"execution_id", exec.id,
				"error", err)
		}
	}
}

// Resume completes a pause token on a paused execution. nodeRef may be
// a token ID, node ID or node name. ErrNotFound covers both unknown
// executions and unknown tokens; ErrNotPaused covers every non-paused
// status.
func (m *Manager) Resume(executionID, nodeRef string, data map[string]interface{}) error {
	exec, ok := m.get(executionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	if status := exec.currentStatus(); status != StatusPaused {
		return fmt.Errorf("%w: execution %s is %s", ErrNotPaused, executionID, status)
	}
	tokenID, err := exec.rt.ResumeNode(nodeRef, data)
	if err != nil {
		if errors.Is(err, runtime.ErrUnknownToken) {
			return fmt.Errorf("%w: no pause token matches %q", ErrNotFound, nodeRef)
		}
		return fmt.Errorf("failed to resume execution %s: %w", executionID, err)
	}
	m.logger.Info("execution resumed",
		"execution_id", executionID,
		"token_id", tokenID)
	return nil
}

// Cancel moves an execution to cancelled, rejecting its outstanding
// pause tokens. Idempotent: cancelling a terminal execution is a
// no-op. In-flight nodes are not interrupted mid-call; the interpreter
// discards their outcome.
func (m *Manager) Cancel(executionID string) error {
	exec, ok := m.get(executionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	if !exec.finalize(StatusCancelled, "") {
		return nil
	}
	exec.rt.Cancel(runtime.ErrCancelled)
	m.logger.Info("execution cancel requested", "execution_id", executionID)
	return nil
}

// Status returns a deep-copied status document.
func (m *Manager) Status(executionID string) (*ExecutionStatus, error) {
	exec, ok := m.get(executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	return exec.snapshot(), nil
}

// List returns status documents for all tracked executions in start
// order.
func (m *Manager) List() []*ExecutionStatus {
	m.mu.Lock()
	execs := make([]*execution, 0, len(m.order))
	for _, id := range m.order {
		if exec, ok := m.executions[id]; ok {
			execs = append(execs, exec)
		}
	}
	m.mu.Unlock()

	out := make([]*ExecutionStatus, 0, len(execs))
	for _, exec := range execs {
		out = append(out, exec.snapshot())
	}
	return out
}

// GetRuntime returns the execution's runtime context, the
// per-execution subscription point for events.
func (m *Manager) GetRuntime(executionID string) (*runtime.Context, error) {
	exec, ok := m.get(executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	return exec.rt, nil
}

// CleanupCompleted evicts terminal executions that ended more than
// olderThan ago and returns how many were removed. Live executions
// are never evicted.
func (m *Manager) CleanupCompleted(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		exec, ok := m.executions[id]
		if !ok {
			continue
		}
		if exec.endedBefore(cutoff) {
			delete(m.executions, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	if removed > 0 {
		m.logger.Info("evicted finished executions", "count", removed)
	}
	return removed
}

func (m *Manager) get(executionID string) (*execution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[executionID]
	return exec, ok
}

// liveCount counts non-terminal executions. Caller holds m.mu.
func (m *Manager) liveCount() int {
	n := 0
	for _, exec := range m.executions {
		if !exec.isTerminal() {
			n++
		}
	}
	return n
}

func eventNodeName(ev events.Event) string {
	name, _ := ev.Data["nodeName"].(string)
	return name
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Debug(string, ...interface{}) {}
