package events

import "time"

// Event types emitted during workflow execution.
const (
	WorkflowStarted    = "workflow:started"
	NodeExecuting      = "node:executing"
	NodeCompleted      = "node:completed"
	NodeFailed         = "node:failed"
	WorkflowPaused     = "workflow:paused"
	WorkflowResumed    = "workflow:resumed"
	WorkflowCompleted  = "workflow:completed"
	WorkflowFailed     = "workflow:failed"
	StateUpdated       = "state:updated"
	HumanInputRequired = "human:input:required"
	HumanInputReceived = "human:input:received"
)

// Event is a single workflow lifecycle event.
type Event struct {
	Type        string                 `json:"type"`
	WorkflowID  string                 `json:"workflowId"`
	ExecutionID string                 `json:"executionId"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

// Logger interface for event bus logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}
