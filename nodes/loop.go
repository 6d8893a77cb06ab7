package nodes

import (
	"context"
	"fmt"

	"github.com/flowscript/orchestrator/condition"
	"github.com/flowscript/orchestrator/sdk"
)

// whileConditionNode drives a loop off a condition expression. A true
// result continues the loop, false exits it, and an invalid or failing
// expression exits with the error in the payload rather than failing
// the execution.
type whileConditionNode struct {
	evaluator *condition.Evaluator
}

func (n *whileConditionNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "whileCondition",
		Description: "Loops while a condition expression holds",
		Type:        sdk.TypeControl,
		AIHints: map[string]interface{}{
			"example": map[string]interface{}{"condition": "state.count < 10"},
		},
		ExpectedEdges: []string{"next_iteration", "exit_loop"},
	}
}

func (n *whileConditionNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	expr, ok := sdk.StringValue(ec.Config, "condition")
	if !ok || expr == "" {
		return sdk.NewResult().StaticEdge("exit_loop", map[string]interface{}{
			"error": "whileCondition requires a condition",
		}), nil
	}

	result, err := n.evaluator.Evaluate(expr, exprVars(ec))
	if err != nil {
		return sdk.NewResult().StaticEdge("exit_loop", map[string]interface{}{
			"condition": expr,
			"error":     err.Error(),
		}), nil
	}

	if result {
		return sdk.NewResult().StaticEdge("next_iteration", map[string]interface{}{
			"iteration": ec.Iteration + 1,
		}), nil
	}
	return sdk.NewResult().StaticEdge("exit_loop", map[string]interface{}{
		"totalIterations": ec.Iteration,
	}), nil
}

// forEachNode walks the sequence at config.items one element per loop
// tick, binding the current element into the iteration payload. The
// loop frame's iteration count is the cursor, so nested loops stay
// independent; the state counter at indexKey only mirrors the position
// for templates and observers, advancing every tick and resetting to
// zero when the sequence is exhausted.
type forEachNode struct{}

const defaultIndexKey = "_loopIndex"

func (n *forEachNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "forEach",
		Description: "Iterates a state sequence one element per loop tick",
		Type:        sdk.TypeControl,
		AIHints: map[string]interface{}{
			"example": map[string]interface{}{"items": "orders", "as": "order"},
		},
		ExpectedEdges: []string{"next_iteration", "exit_loop"},
	}
}

func (n *forEachNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	items, err := n.items(ec)
	if err != nil {
		return sdk.NewResult().StaticEdge("exit_loop", map[string]interface{}{
			"error": err.Error(),
		}), nil
	}

	as, ok := sdk.StringValue(ec.Config, "as")
	if !ok || as == "" {
		as = "item"
	}
	indexKey, ok := sdk.StringValue(ec.Config, "indexKey")
	if !ok || indexKey == "" {
		indexKey = defaultIndexKey
	}

	index := ec.Iteration
	if index >= len(items) {
		ec.State.Set(indexKey, 0)
		return sdk.NewResult().StaticEdge("exit_loop", map[string]interface{}{
			"count": len(items),
		}), nil
	}

	ec.State.Set(indexKey, index+1)
	return sdk.NewResult().StaticEdge("next_iteration", map[string]interface{}{
		as:      items[index],
		"index": index,
	}), nil
}

// items resolves the iteration source: a path into state, or a literal
// sequence left by template resolution. A missing path iterates as
// empty rather than failing.
func (n *forEachNode) items(ec *sdk.ExecutionContext) ([]interface{}, error) {
	if literal, ok := sdk.SliceValue(ec.Config, "items"); ok {
		return literal, nil
	}
	path, ok := sdk.StringValue(ec.Config, "items")
	if !ok || path == "" {
		return nil, fmt.Errorf("forEach requires an items path or sequence")
	}
	value, found := ec.State.Get(path)
	if !found {
		return nil, nil
	}
	seq, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("forEach: value at %q is not a sequence", path)
	}
	return seq, nil
}
