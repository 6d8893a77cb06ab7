// Package nodes provides the built-in node set: data manipulation,
// control flow, timing, HTTP calls and human-in-the-loop gates. All
// nodes are registered through Register and constructed fresh per
// invocation by the registry.
package nodes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/flowscript/orchestrator/condition"
	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/sdk"
)

// Logger interface for node logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Deps carries the shared collaborators built-in nodes need.
type Deps struct {
	Evaluator  *condition.Evaluator
	HTTPClient *http.Client
	Logger     Logger
}

// Register registers the built-in node set on a registry.
func Register(reg *registry.Registry, deps Deps) error {
	if deps.Evaluator == nil {
		ev, err := condition.NewEvaluator()
		if err != nil {
			return fmt.Errorf("failed to create condition evaluator: %w", err)
		}
		deps.Evaluator = ev
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	factories := []registry.Factory{
		func() sdk.Node { return &setDataNode{} },
		func() sdk.Node { return &appendDataNode{} },
		func() sdk.Node { return &deleteDataNode{} },
		func() sdk.Node { return &mergeDataNode{} },
		func() sdk.Node { return &checkValueNode{evaluator: deps.Evaluator} },
		func() sdk.Node { return &whileConditionNode{evaluator: deps.Evaluator} },
		func() sdk.Node { return &forEachNode{} },
		func() sdk.Node { return &delayNode{} },
		func() sdk.Node { return &logNode{logger: deps.Logger} },
		func() sdk.Node { return &httpRequestNode{client: deps.HTTPClient, guard: newURLGuard()} },
		func() sdk.Node { return &humanInputNode{} },
		func() sdk.Node { return &approveExpenseNode{} },
	}
	for _, f := range factories {
		if err := reg.Register(f); err != nil {
			return fmt.Errorf("failed to register built-in node: %w", err)
		}
	}
	return nil
}

// exprVars builds the evaluator variable set for a node invocation.
// Loop bindings surface as item/index when the canonical names are
// bound; custom binding names remain reachable through previous.
func exprVars(ec *sdk.ExecutionContext) condition.Vars {
	vars := condition.Vars{
		State:    ec.State.Snapshot(),
		Previous: ec.Previous,
	}
	if ec.Bindings != nil {
		vars.Item = ec.Bindings["item"]
		if n, ok := sdk.NumberValue(ec.Bindings, "index"); ok {
			vars.Index = int(n)
		}
	}
	return vars
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Debug(string, ...interface{}) {}
