package runtime

import (
	"sync"
	"time"
)

// PauseToken is the single-shot completion handle a human node blocks
// on. It is minted by the runtime context that owns it and completes
// at most once, through resume, reject or cancel.
type PauseToken struct {
	id          string
	workflowID  string
	executionID string
	nodeID      string
	nodeName    string
	createdAt   time.Time

	mu       sync.Mutex
	resolved bool
	data     map[string]interface{}
	err      error
	done     chan struct{}
}

// ID returns the token identity, derived from the execution, the node
// and a per-context monotonic counter.
func (t *PauseToken) ID() string { return t.id }

// WorkflowID returns the owning workflow ID.
func (t *PauseToken) WorkflowID() string { return t.workflowID }

// ExecutionID returns the owning execution ID.
func (t *PauseToken) ExecutionID() string { return t.executionID }

// NodeID returns the node invocation that minted the token.
func (t *PauseToken) NodeID() string { return t.nodeID }

// NodeName returns the registered name of the minting node.
func (t *PauseToken) NodeName() string { return t.nodeName }

// CreatedAt returns the mint timestamp.
func (t *PauseToken) CreatedAt() time.Time { return t.createdAt }

// Resolved reports whether the token has completed.
func (t *PauseToken) Resolved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved
}

// complete resolves the token exactly once. beforeDone runs while the
// completion is committed but before waiters wake, so side effects
// (such as emitting human:input:received) order ahead of anything the
// waiter does next.
func (t *PauseToken) complete(data map[string]interface{}, err error, beforeDone func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved {
		return ErrTokenResolved
	}
	t.resolved = true
	t.data = data
	t.err = err
	if beforeDone != nil {
		beforeDone()
	}
	close(t.done)
	return nil
}

// result returns the completion outcome. Only valid after done closes.
func (t *PauseToken) result() (map[string]interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data, t.err
}
