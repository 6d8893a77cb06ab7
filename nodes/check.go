package nodes

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/flowscript/orchestrator/condition"
	"github.com/flowscript/orchestrator/sdk"
)

// checkValueNode evaluates either a {path, op, value} comparison or a
// free-form condition expression and routes on the boolean outcome. An
// invalid expression or comparison takes the false edge with the error
// in the payload; it never fails the node.
type checkValueNode struct {
	evaluator *condition.Evaluator
}

func (n *checkValueNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "checkValue",
		Description: "Routes true/false from a state comparison or condition expression",
		Type:        sdk.TypeControl,
		AIHints: map[string]interface{}{
			"ops":     []interface{}{"eq", "neq", "gt", "gte", "lt", "lte", "exists", "contains"},
			"example": map[string]interface{}{"path": "user.age", "op": "gte", "value": 18},
		},
		ExpectedEdges: []string{"true", "false"},
	}
}

func (n *checkValueNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	if expr, ok := sdk.StringValue(ec.Config, "condition"); ok {
		result, err := n.evaluator.Evaluate(expr, exprVars(ec))
		if err != nil {
			return sdk.NewResult().StaticEdge("false", map[string]interface{}{
				"condition": expr,
				"error":     err.Error(),
			}), nil
		}
		return sdk.NewResult().StaticEdge(edgeName(result), map[string]interface{}{
			"condition": expr,
			"result":    result,
		}), nil
	}

	path, ok := sdk.StringValue(ec.Config, "path")
	if !ok || path == "" {
		return nil, fmt.Errorf("checkValue requires a path or a condition")
	}
	op, ok := sdk.StringValue(ec.Config, "op")
	if !ok {
		return nil, fmt.Errorf("checkValue requires an op")
	}

	actual, found := ec.State.Get(path)
	result, err := compare(op, actual, ec.Config["value"], found)
	if err != nil {
		return sdk.NewResult().StaticEdge("false", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}), nil
	}
	return sdk.NewResult().StaticEdge(edgeName(result), map[string]interface{}{
		"path":   path,
		"actual": actual,
	}), nil
}

func edgeName(result bool) string {
	if result {
		return "true"
	}
	return "false"
}

// compare applies a comparison operator. found reports whether the
// path resolved at all; only exists consults it directly, the ordering
// operators treat an absent value as a mismatch.
func compare(op string, actual, expected interface{}, found bool) (bool, error) {
	switch op {
	case "exists":
		return found, nil
	case "eq":
		return looseEqual(actual, expected), nil
	case "neq":
		return !looseEqual(actual, expected), nil
	case "gt", "gte", "lt", "lte":
		if !found {
			return false, nil
		}
		return orderedCompare(op, actual, expected)
	case "contains":
		return contains(actual, expected)
	default:
		return false, fmt.Errorf("unknown comparison op %q", op)
	}
}

// looseEqual compares with numeric coercion so values that crossed a
// JSON boundary (float64) still match native ints.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func orderedCompare(op string, actual, expected interface{}) (bool, error) {
	if af, aok := toFloat(actual); aok {
		bf, bok := toFloat(expected)
		if !bok {
			return false, fmt.Errorf("cannot compare number with %T", expected)
		}
		switch op {
		case "gt":
			return af > bf, nil
		case "gte":
			return af >= bf, nil
		case "lt":
			return af < bf, nil
		default:
			return af <= bf, nil
		}
	}

	as, aok := actual.(string)
	bs, bok := expected.(string)
	if !aok || !bok {
		return false, fmt.Errorf("cannot order %T against %T", actual, expected)
	}
	switch op {
	case "gt":
		return as > bs, nil
	case "gte":
		return as >= bs, nil
	case "lt":
		return as < bs, nil
	default:
		return as <= bs, nil
	}
}

func contains(actual, expected interface{}) (bool, error) {
	switch c := actual.(type) {
	case string:
		s, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string needs a string value, got %T", expected)
		}
		return strings.Contains(c, s), nil
	case []interface{}:
		for _, v := range c {
			if looseEqual(v, expected) {
				return true, nil
			}
		}
		return false, nil
	case map[string]interface{}:
		key, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains on a map needs a string key, got %T", expected)
		}
		_, present := c[key]
		return present, nil
	default:
		return false, fmt.Errorf("contains not supported on %T", actual)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
