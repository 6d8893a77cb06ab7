package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Resolver substitutes {{path}} placeholders in node configs against a
// state snapshot. Substitution is a single pass: resolved values are
// never re-scanned, and expression strings handed to the condition
// evaluator are not templated at all.
type Resolver struct{}

// placeholderPattern matches {{ path }} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// bracketPattern rewrites [0], ['key'] and ["key"] segments to dotted
// form so state-style paths work as gjson paths.
var bracketPattern = regexp.MustCompile(`\[(?:'([^']*)'|"([^"]*)"|(\d+))\]`)

// NewResolver creates a config resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveConfig resolves all placeholders in a config map against data,
// which is the state snapshot plus any loop bindings. A string that is
// exactly one placeholder keeps the resolved value's type; placeholders
// inside longer strings are stringified; a placeholder whose path does
// not resolve is left literally in place.
func (r *Resolver) ResolveConfig(config map[string]interface{}, data map[string]interface{}) (map[string]interface{}, error) {
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template data: %w", err)
	}

	resolved := make(map[string]interface{}, len(config))
	for key, value := range config {
		resolved[key] = r.resolveValue(doc, value)
	}
	return resolved, nil
}

// resolveValue recursively resolves a value (string, map, array, etc.)
func (r *Resolver) resolveValue(doc []byte, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return r.resolveString(doc, v)
	case map[string]interface{}:
		return r.resolveMap(doc, v)
	case []interface{}:
		return r.resolveArray(doc, v)
	default:
		// Primitives pass through.
		return value
	}
}

func (r *Resolver) resolveMap(doc []byte, m map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(m))
	for key, value := range m {
		resolved[key] = r.resolveValue(doc, value)
	}
	return resolved
}

func (r *Resolver) resolveArray(doc []byte, arr []interface{}) []interface{} {
	resolved := make([]interface{}, len(arr))
	for i, value := range arr {
		resolved[i] = r.resolveValue(doc, value)
	}
	return resolved
}

// resolveString handles one string leaf.
func (r *Resolver) resolveString(doc []byte, str string) interface{} {
	matches := placeholderPattern.FindAllStringSubmatchIndex(str, -1)
	if len(matches) == 0 {
		return str
	}

	// A whole-string placeholder keeps the resolved value's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(str) {
		expr := str[matches[0][2]:matches[0][3]]
		result := gjson.GetBytes(doc, toPath(expr))
		if !result.Exists() {
			return str
		}
		return result.Value()
	}

	return placeholderPattern.ReplaceAllStringFunc(str, func(m string) string {
		sub := placeholderPattern.FindStringSubmatch(m)
		result := gjson.GetBytes(doc, toPath(sub[1]))
		if !result.Exists() {
			return m
		}
		return stringify(result)
	})
}

// toPath converts a placeholder expression to a gjson path: strips the
// optional leading $ and rewrites bracket segments to dotted form.
func toPath(expr string) string {
	p := strings.TrimSpace(expr)
	p = strings.TrimPrefix(p, "$.")
	p = strings.TrimPrefix(p, "$")
	p = bracketPattern.ReplaceAllString(p, ".$1$2$3")
	return strings.TrimPrefix(p, ".")
}

// stringify renders a resolved value for in-string substitution.
// Strings are used verbatim; everything else keeps its compact JSON
// form.
func stringify(result gjson.Result) string {
	if result.Type == gjson.String {
		return result.String()
	}
	return result.Raw
}
