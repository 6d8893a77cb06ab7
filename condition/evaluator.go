package condition

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Vars carries the variables an expression can reference. State is the
// current state snapshot, Previous the upstream node's edge payload, and
// Item/Index the loop bindings when evaluated inside a forEach body.
type Vars struct {
	State    map[string]interface{}
	Previous map[string]interface{}
	Item     interface{}
	Index    int
}

// Evaluator compiles and evaluates CEL (Common Expression Language)
// conditions against execution state. Compiled programs are cached by
// normalized expression text.
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// rewrites the single-argument exists('path') helper to the binary form
// exists(state, 'path') so the compiled function can see the state map.
// The leading capture keeps receiver-style macros (list.exists(i, p))
// and unrelated identifiers untouched.
var existsCallPattern = regexp.MustCompile(`(^|[^.\w])exists\(\s*('[^']*'|"[^"]*")\s*\)`)

// NewEvaluator creates a condition evaluator with caching.
func NewEvaluator() (*Evaluator, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// newEnv declares the expression environment: the four variables from
// Vars plus the length/isEmpty/exists helpers. Nothing else is reachable
// from an expression, so there is no process, file, or network surface.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("state", cel.DynType),
		cel.Variable("previous", cel.DynType),
		cel.Variable("item", cel.DynType),
		cel.Variable("index", cel.IntType),
		cel.CrossTypeNumericComparisons(true),
		cel.Function("length",
			cel.Overload("length_dyn",
				[]*cel.Type{cel.DynType}, cel.IntType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					if v.Type() == types.NullType {
						return types.Int(0)
					}
					n, err := lengthOf(v.Value())
					if err != nil {
						return types.NewErr("length: %s", err.Error())
					}
					return types.Int(n)
				}),
			),
		),
		cel.Function("isEmpty",
			cel.Overload("isEmpty_dyn",
				[]*cel.Type{cel.DynType}, cel.BoolType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					if v.Type() == types.NullType {
						return types.Bool(true)
					}
					return types.Bool(isEmptyValue(v.Value()))
				}),
			),
		),
		cel.Function("exists",
			cel.Overload("exists_state_path",
				[]*cel.Type{cel.DynType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(st, path ref.Val) ref.Val {
					p, ok := path.Value().(string)
					if !ok {
						return types.NewErr("exists: path must be a string")
					}
					return types.Bool(pathExists(st.Value(), p))
				}),
			),
		),
	)
}

// Evaluate evaluates a boolean expression against the given variables.
// A compile error, an evaluation error, or a non-boolean result all
// return an error; callers decide how that maps onto edges.
func (e *Evaluator) Evaluate(expr string, vars Vars) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(activation(vars))
	if err != nil {
		return false, fmt.Errorf("expression evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

// Validate compiles an expression without evaluating it. Used by
// control nodes and the REST layer to reject bad expressions up front.
func (e *Evaluator) Validate(expr string) error {
	_, err := e.program(expr)
	return err
}

// program returns the compiled program for an expression, compiling and
// caching it on first use.
func (e *Evaluator) program(expr string) (cel.Program, error) {
	normalized := normalize(expr)

	e.mu.RLock()
	prg, ok := e.cache[normalized]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(normalized)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expression compilation error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.mu.Lock()
	e.cache[normalized] = prg
	e.mu.Unlock()
	return prg, nil
}

// normalize converts JSONPath-style $.field references to CEL
// state.field for compatibility, and rewrites the one-argument exists
// helper into its binary form.
func normalize(expr string) string {
	out := strings.ReplaceAll(expr, "$.", "state.")
	out = existsCallPattern.ReplaceAllString(out, `${1}exists(state, $2)`)
	return out
}

func activation(vars Vars) map[string]interface{} {
	state := vars.State
	if state == nil {
		state = map[string]interface{}{}
	}
	previous := vars.Previous
	if previous == nil {
		previous = map[string]interface{}{}
	}
	return map[string]interface{}{
		"state":    state,
		"previous": previous,
		"item":     vars.Item,
		"index":    vars.Index,
	}
}

// ClearCache clears the compiled expression cache.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize returns the number of cached expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func lengthOf(v interface{}) (int, error) {
	switch t := v.(type) {
	case string:
		return utf8.RuneCountInString(t), nil
	case []interface{}:
		return len(t), nil
	case map[string]interface{}:
		return len(t), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// pathExists walks a dotted path through nested maps and sequences.
// All-digit segments index into sequences, mirroring state paths. A
// leading $ or state prefix is tolerated so exists('$.a.b') and
// exists('a.b') mean the same thing.
func pathExists(root interface{}, path string) bool {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, "state.")
	if path == "" {
		return root != nil
	}

	current := root
	for _, seg := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]interface{}:
			v, ok := c[seg]
			if !ok {
				return false
			}
			current = v
		case []interface{}:
			idx, ok := parseIndex(seg)
			if !ok || idx < 0 || idx >= len(c) {
				return false
			}
			current = c[idx]
		default:
			return false
		}
	}
	return true
}

func parseIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	n := 0
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
