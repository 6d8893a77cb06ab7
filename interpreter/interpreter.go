// Package interpreter walks a parsed workflow tree, invoking nodes
// through the registry and routing on their returned edges. It owns
// the node invocation protocol: template resolution, current-node
// tracking, node:executing/node:completed/node:failed events and edge
// selection. Execution-level lifecycle events belong to the executor.
package interpreter

import (
	"fmt"
	"strconv"

	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/resolver"
	"github.com/flowscript/orchestrator/runtime"
	"github.com/flowscript/orchestrator/sdk"
	"github.com/flowscript/orchestrator/workflow"
)

const (
	// EdgeNextIteration continues a loop; every other controller edge
	// leaves it.
	EdgeNextIteration = "next_iteration"
	// EdgeExitLoop is the conventional loop exit edge.
	EdgeExitLoop = "exit_loop"

	defaultMaxDepth          = 100
	defaultMaxLoopIterations = 10000
)

// Logger interface for interpreter logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Options bound runaway workflows. Zero values pick the defaults.
type Options struct {
	MaxDepth          int
	MaxLoopIterations int
}

// Interpreter executes workflow trees. It is stateless across
// executions and safe for concurrent use.
type Interpreter struct {
	registry          *registry.Registry
	resolver          *resolver.Resolver
	logger            Logger
	maxDepth          int
	maxLoopIterations int
}

// New creates an interpreter over a node registry.
func New(reg *registry.Registry, logger Logger, opts Options) *Interpreter {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.MaxLoopIterations <= 0 {
		opts.MaxLoopIterations = defaultMaxLoopIterations
	}
	return &Interpreter{
		registry:          reg,
		resolver:          resolver.NewResolver(),
		logger:            logger,
		maxDepth:          opts.MaxDepth,
		maxLoopIterations: opts.MaxLoopIterations,
	}
}

// scope carries the values that flow along a sequence: the previous
// node's edge payload and any loop bindings in effect.
type scope struct {
	previous map[string]interface{}
	bindings map[string]interface{}
	depth    int
}

// Run executes a flow against a runtime context. It returns nil when
// the flow ran to completion, the cancellation cause when the
// execution was cancelled, and the node failure otherwise.
func (it *Interpreter) Run(rt *runtime.Context, flow []*workflow.Element) error {
	sc := &scope{previous: map[string]interface{}{}}
	return it.runSequence(rt, flow, "", sc)
}

func (it *Interpreter) runSequence(rt *runtime.Context, seq []*workflow.Element, prefix string, sc *scope) error {
	if sc.depth > it.maxDepth {
		return fmt.Errorf("flow nesting exceeds %d levels", it.maxDepth)
	}
	for i, el := range seq {
		if err := rt.Err(); err != nil {
			return err
		}
		pos := childPos(prefix, strconv.Itoa(i))

		var err error
		switch el.Kind {
		case workflow.KindNodeRef, workflow.KindConfigured:
			_, sc.previous, err = it.runNode(rt, el, pos, sc, 0, nil)
		case workflow.KindBranch:
			err = it.runBranch(rt, el, pos, sc)
		case workflow.KindLoop:
			err = it.runLoop(rt, el, pos, sc)
		default:
			err = fmt.Errorf("invalid element kind %s at %s", el.Kind, pos)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runBranch executes the condition node, then the arm named by its
// selected edge. A missing or null arm skips without error.
func (it *Interpreter) runBranch(rt *runtime.Context, el *workflow.Element, pos string, sc *scope) error {
	edge, payload, err := it.runNode(rt, el.Condition, childPos(pos, "0"), sc, 0, el.Branches)
	if err != nil {
		return err
	}

	arm, known := el.Branches[edge]
	if !known || len(arm) == 0 {
		it.logger.Debug("branch arm skipped",
			"execution_id", rt.ExecutionID(),
			"position", pos,
			"edge", edge)
		sc.previous = payload
		return nil
	}

	armScope := &scope{previous: payload, bindings: sc.bindings, depth: sc.depth + 1}
	if err := it.runSequence(rt, arm, childPos(pos, edge), armScope); err != nil {
		return err
	}
	sc.previous = armScope.previous
	return nil
}

// runLoop drives controller/body rounds until the controller returns
// anything other than next_iteration. The controller's edge payload
// becomes the body's bindings and previous data for that round.
func (it *Interpreter) runLoop(rt *runtime.Context, el *workflow.Element, pos string, sc *scope) error {
	ctrlPos := childPos(pos, "0")
	iteration := 0

	for {
		if err := rt.Err(); err != nil {
			return err
		}

		edge, payload, err := it.runNode(rt, el.Controller, ctrlPos, sc, iteration, nil)
		if err != nil {
			return err
		}
		if edge != EdgeNextIteration {
			sc.previous = payload
			return nil
		}
		if iteration >= it.maxLoopIterations {
			return fmt.Errorf("loop at %s exceeded %d iterations", pos, it.maxLoopIterations)
		}

		bodyScope := &scope{
			previous: payload,
			bindings: overlay(sc.bindings, payload),
			depth:    sc.depth + 1,
		}
		if err := it.runSequence(rt, el.Body, childPos(pos, "1"), bodyScope); err != nil {
			return err
		}
		iteration++
	}
}

// runNode performs one node invocation. branches, when non-nil, is the
// branch arm map used for edge selection; otherwise the first returned
// edge wins. The returned payload is the evaluated data of the
// selected edge.
func (it *Interpreter) runNode(rt *runtime.Context, el *workflow.Element, pos string, sc *scope, iteration int, branches map[string][]*workflow.Element) (string, map[string]interface{}, error) {
	nodeID := fmt.Sprintf("%s:%s", el.Name, pos)

	node, err := it.registry.Create(el.Name)
	if err != nil {
		rt.Emit(events.NodeFailed, map[string]interface{}{
			"nodeId":   nodeID,
			"nodeName": el.Name,
			"error":    err.Error(),
		})
		return "", nil, fmt.Errorf("unknown node %q at %s", el.Name, pos)
	}

	config, err := it.resolver.ResolveConfig(el.Config, overlay(rt.State().Snapshot(), sc.bindings))
	if err != nil {
		rt.Emit(events.NodeFailed, map[string]interface{}{
			"nodeId":   nodeID,
			"nodeName": el.Name,
			"error":    err.Error(),
		})
		return "", nil, fmt.Errorf("failed to resolve config for %s: %w", nodeID, err)
	}

	rt.SetCurrentNode(nodeID, el.Name)
	defer rt.ClearCurrentNode()

	rt.Emit(events.NodeExecuting, map[string]interface{}{
		"nodeId":   nodeID,
		"nodeName": el.Name,
	})

	ec := &sdk.ExecutionContext{
		NodeID:    nodeID,
		NodeName:  el.Name,
		Config:    config,
		Previous:  sc.previous,
		Bindings:  sc.bindings,
		Iteration: iteration,
		State:     rt.State(),
		Runtime:   rt,
		Logger:    it.logger,
	}
	result, err := execute(node, rt, ec)

	// A cancelled execution discards the in-flight node's outcome:
	// no completion or failure event, nothing further runs.
	if cancelErr := rt.Err(); cancelErr != nil {
		return "", nil, cancelErr
	}

	if err == nil && (result == nil || result.Empty()) {
		err = fmt.Errorf("node %s returned no edges", el.Name)
	}
	if err != nil {
		it.logger.Error("node failed",
			"execution_id", rt.ExecutionID(),
			"node_id", nodeID,
			"error", err)
		rt.Emit(events.NodeFailed, map[string]interface{}{
			"nodeId":   nodeID,
			"nodeName": el.Name,
			"error":    err.Error(),
		})
		return "", nil, fmt.Errorf("node %s failed: %w", nodeID, err)
	}

	edge := selectEdge(result, branches)
	payload := edge.Data()

	rt.Emit(events.NodeCompleted, map[string]interface{}{
		"nodeId":   nodeID,
		"nodeName": el.Name,
		"edge":     edge.Name(),
		"edgeData": payload,
	})
	return edge.Name(), payload, nil
}

// execute invokes a node, converting panics into errors.
func execute(node sdk.Node, rt *runtime.Context, ec *sdk.ExecutionContext) (result *sdk.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("node panicked: %v", r)
		}
	}()
	return node.Execute(rt.Context(), ec)
}

// selectEdge picks the effective edge: the first whose name appears in
// the branch map, falling back to the first edge in insertion order.
func selectEdge(result *sdk.Result, branches map[string][]*workflow.Element) *sdk.Edge {
	if branches != nil {
		for _, e := range result.Edges() {
			if _, ok := branches[e.Name()]; ok {
				return e
			}
		}
	}
	return result.First()
}

func childPos(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// overlay lays extra entries over a base map without mutating either.
func overlay(base, extra map[string]interface{}) map[string]interface{} {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
