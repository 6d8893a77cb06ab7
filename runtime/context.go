package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/state"
)

var (
	// ErrNoCurrentNode is returned by Pause outside a node invocation.
	ErrNoCurrentNode = errors.New("no node is currently executing")
	// ErrUnknownToken is returned when a token is not in the active set.
	ErrUnknownToken = errors.New("unknown pause token")
	// ErrTokenResolved is returned when a token completes twice.
	ErrTokenResolved = errors.New("pause token already resolved")
	// ErrCancelled is the completion error of tokens rejected by
	// execution cancellation.
	ErrCancelled = errors.New("execution cancelled")
	// ErrTimeout is the completion error of tokens whose wait deadline
	// expired.
	ErrTimeout = errors.New("resume wait timed out")
)

// Logger interface for runtime logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Context is the per-execution facade injected into every node
// invocation. It owns the pause tokens it mints; resume and cancel of
// a token always go through the context that created it.
type Context struct {
	workflowID  string
	executionID string
	store       *state.Store
	emitter     *events.Emitter
	logger      Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu          sync.Mutex
	seq         int
	tokens      map[string]*PauseToken
	tokenOrder  []string
	currentID   string
	currentName string
}

// NewContext creates the runtime context for one execution.
func NewContext(parent context.Context, workflowID, executionID string, store *state.Store, emitter *events.Emitter, logger Logger) *Context {
	ctx, cancel := context.WithCancelCause(parent)
	return &Context{
		workflowID:  workflowID,
		executionID: executionID,
		store:       store,
		emitter:     emitter,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		tokens:      make(map[string]*PauseToken),
	}
}

// WorkflowID returns the immutable workflow ID.
func (c *Context) WorkflowID() string { return c.workflowID }

// ExecutionID returns the immutable execution ID.
func (c *Context) ExecutionID() string { return c.executionID }

// State returns the execution's state store.
func (c *Context) State() *state.Store { return c.store }

// Emitter returns the execution's event emitter.
func (c *Context) Emitter() *events.Emitter { return c.emitter }

// Context returns a context that is done once the execution is
// cancelled.
func (c *Context) Context() context.Context { return c.ctx }

// Err returns the cancellation cause, or nil while the execution is
// live.
func (c *Context) Err() error {
	if c.ctx.Err() == nil {
		return nil
	}
	return context.Cause(c.ctx)
}

// Emit stamps and publishes an event on the execution's emitter.
func (c *Context) Emit(eventType string, data map[string]interface{}) {
	c.emitter.Emit(events.Event{Type: eventType, Data: data})
}

// SetCurrentNode records the node invocation in progress.
func (c *Context) SetCurrentNode(nodeID, nodeName string) {
	c.mu.Lock()
	c.currentID = nodeID
	c.currentName = nodeName
	c.mu.Unlock()
}

// ClearCurrentNode marks the execution as between nodes.
func (c *Context) ClearCurrentNode() {
	c.SetCurrentNode("", "")
}

// CurrentNode returns the node invocation in progress, if any.
func (c *Context) CurrentNode() (nodeID, nodeName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID, c.currentName
}

// Pause mints a pause token for the currently executing node, records
// it in the active set and emits workflow:paused. Pausing without a
// current node is an error.
func (c *Context) Pause() (*PauseToken, error) {
	c.mu.Lock()
	if c.currentID == "" {
		c.mu.Unlock()
		return nil, ErrNoCurrentNode
	}
	c.seq++
	t := &PauseToken{
		id:          fmt.Sprintf("%s:%s:%d", c.executionID, c.currentID, c.seq),
		workflowID:  c.workflowID,
		executionID: c.executionID,
		nodeID:      c.currentID,
		nodeName:    c.currentName,
		createdAt:   time.Now(),
		done:        make(chan struct{}),
	}
	c.tokens[t.id] = t
	c.tokenOrder = append(c.tokenOrder, t.id)
	c.mu.Unlock()

	c.logger.Info("execution paused",
		"execution_id", c.executionID,
		"node_id", t.nodeID,
		"token_id", t.id)
	c.Emit(events.WorkflowPaused, map[string]interface{}{
		"nodeId":  t.nodeID,
		"tokenId": t.id,
	})
	return t, nil
}

// WaitForResume blocks until the token completes, the caller's ctx
// expires, or the execution is cancelled. It validates that the token
// belongs to this context, emits workflow:resumed on successful
// resume, and removes the token from the active set regardless of
// outcome. A ctx deadline rejects the token with ErrTimeout.
func (c *Context) WaitForResume(ctx context.Context, t *PauseToken) (map[string]interface{}, error) {
	if t == nil {
		return nil, ErrUnknownToken
	}
	c.mu.Lock()
	owned := c.tokens[t.id] == t
	c.mu.Unlock()
	if !owned {
		// A cancel between Pause and WaitForResume rejects the token
		// and drops it from the active set; report the rejection, not
		// an unknown token.
		if t.Resolved() {
			if _, err := t.result(); err != nil {
				return nil, err
			}
		}
		return nil, ErrUnknownToken
	}
	defer c.removeToken(t.id)

	select {
	case <-t.done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.complete(nil, ErrTimeout, nil)
		} else {
			t.complete(nil, ErrCancelled, nil)
		}
	case <-c.ctx.Done():
		t.complete(nil, ErrCancelled, nil)
	}

	data, err := t.result()
	if err != nil {
		c.logger.Info("resume wait ended without data",
			"execution_id", c.executionID,
			"token_id", t.id,
			"reason", err.Error())
		return nil, err
	}

	c.Emit(events.WorkflowResumed, map[string]interface{}{
		"nodeId":     t.nodeID,
		"tokenId":    t.id,
		"resumeData": data,
	})
	return state.Clone(data).(map[string]interface{}), nil
}

// Resume completes a token with resume data. Unknown tokens and
// already-resolved tokens are errors. human:input:received is emitted
// before the waiter wakes so it orders ahead of workflow:resumed.
func (c *Context) Resume(tokenID string, data map[string]interface{}) error {
	c.mu.Lock()
	t, ok := c.tokens[tokenID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownToken
	}

	stored := state.CloneMap(data)
	err := t.complete(stored, nil, func() {
		c.Emit(events.HumanInputReceived, map[string]interface{}{
			"nodeId":   t.nodeID,
			"nodeName": t.nodeName,
			"tokenId":  t.id,
			"input":    state.CloneMap(stored),
		})
	})
	if err != nil {
		return err
	}

	c.logger.Info("pause token resumed",
		"execution_id", c.executionID,
		"node_id", t.nodeID,
		"token_id", t.id)
	return nil
}

// ResumeNode resolves a token by token ID, node ID or node name, then
// resumes it. It returns the resolved token ID.
func (c *Context) ResumeNode(ref string, data map[string]interface{}) (string, error) {
	t := c.findToken(ref)
	if t == nil {
		return "", ErrUnknownToken
	}
	return t.id, c.Resume(t.id, data)
}

// CancelToken rejects a single token with ErrCancelled.
func (c *Context) CancelToken(tokenID string) error {
	c.mu.Lock()
	t, ok := c.tokens[tokenID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownToken
	}
	if err := t.complete(nil, ErrCancelled, nil); err != nil {
		return err
	}
	c.removeToken(tokenID)
	return nil
}

// ActiveTokens returns the outstanding tokens in mint order.
func (c *Context) ActiveTokens() []*PauseToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*PauseToken, 0, len(c.tokens))
	for _, id := range c.tokenOrder {
		if t, ok := c.tokens[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ClearAllTokens rejects every outstanding token with ErrCancelled.
func (c *Context) ClearAllTokens() {
	for _, t := range c.ActiveTokens() {
		t.complete(nil, ErrCancelled, nil)
		c.removeToken(t.id)
	}
}

// Cancel cancels the execution and rejects all outstanding tokens.
// Safe to call more than once.
func (c *Context) Cancel(reason error) {
	if reason == nil {
		reason = ErrCancelled
	}
	c.cancel(reason)
	c.ClearAllTokens()
}

func (c *Context) findToken(ref string) *PauseToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[ref]; ok {
		return t
	}
	for _, id := range c.tokenOrder {
		t, ok := c.tokens[id]
		if !ok {
			continue
		}
		if t.nodeID == ref || t.nodeName == ref {
			return t
		}
	}
	return nil
}

func (c *Context) removeToken(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, id)
	for i, tid := range c.tokenOrder {
		if tid == id {
			c.tokenOrder = append(c.tokenOrder[:i], c.tokenOrder[i+1:]...)
			break
		}
	}
}
