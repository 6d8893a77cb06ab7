package sdk

import (
	"context"
	"time"

	"github.com/flowscript/orchestrator/runtime"
	"github.com/flowscript/orchestrator/state"
)

// NodeType classifies a node for discovery and validation tools.
type NodeType string

const (
	TypeAction  NodeType = "action"
	TypeControl NodeType = "control"
	TypeHuman   NodeType = "human"
)

// HumanInteraction carries advisory hints for human-facing nodes.
type HumanInteraction struct {
	// Default wait before a pause token is rejected with a timeout.
	// Zero means wait indefinitely.
	DefaultTimeout time.Duration `json:"default_timeout,omitempty"`

	// Skeleton of the form shown to the person providing input.
	FormSchema map[string]interface{} `json:"form_schema,omitempty"`
}

// Metadata describes a node implementation. Everything beyond Name is
// advisory and consumed by discovery and validation tools.
type Metadata struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Type          NodeType               `json:"type"`
	AIHints       map[string]interface{} `json:"ai_hints,omitempty"`
	ExpectedEdges []string               `json:"expected_edges,omitempty"`

	// Present on human nodes only.
	HumanInteraction *HumanInteraction `json:"human_interaction,omitempty"`
}

// ExecutionContext is composed per node invocation by the interpreter.
type ExecutionContext struct {
	// Stable per-invocation node ID, derived from the node name and
	// its position in the flow tree.
	NodeID string

	// Registered node name.
	NodeName string

	// Node configuration after template resolution.
	Config map[string]interface{}

	// Evaluated payload of the previously selected edge.
	Previous map[string]interface{}

	// Loop-scoped values, populated from the controller's
	// next_iteration payload for body nodes.
	Bindings map[string]interface{}

	// Completed iteration count when this node runs as a loop
	// controller; zero otherwise.
	Iteration int

	State   *state.Store
	Runtime *runtime.Context
	Logger  Logger
}

// Node is a pluggable unit of work. Implementations must not hold
// cross-execution state; the registry constructs a fresh instance per
// invocation.
type Node interface {
	Metadata() Metadata
	Execute(ctx context.Context, ec *ExecutionContext) (*Result, error)
}

// Logger interface for node logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}
