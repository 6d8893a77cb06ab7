package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ElementKind tags the flow element union.
type ElementKind int

const (
	KindNodeRef ElementKind = iota
	KindConfigured
	KindBranch
	KindLoop
)

func (k ElementKind) String() string {
	switch k {
	case KindNodeRef:
		return "node"
	case KindConfigured:
		return "configured node"
	case KindBranch:
		return "branch"
	case KindLoop:
		return "loop"
	default:
		return "unknown"
	}
}

// Element is one unit of the workflow tree. Exactly the fields for its
// Kind are populated.
type Element struct {
	Kind ElementKind

	// Node reference or configured node.
	Name   string
	Config map[string]interface{}

	// Branch: condition element plus edge name to sub-sequence. A nil
	// arm sequence means "do nothing".
	Condition *Element
	Branches  map[string][]*Element
	// Edge names in source order, for deterministic diagnostics.
	BranchOrder []string

	// Loop: controller element plus body sub-sequence.
	Controller *Element
	Body       []*Element
}

// ParseNodes decodes a raw node sequence into the element tree.
func ParseNodes(raw json.RawMessage) ([]*Element, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}
	seq, ok := doc.([]interface{})
	if !ok {
		return nil, fmt.Errorf("nodes must be a sequence, got %T", doc)
	}
	return parseSequence(seq, "nodes")
}

// parseSequence parses a run of flow elements. Sequence position is
// what distinguishes a sub-sequence from a 2-tuple construct: arrays
// in element position must be branch or loop tuples.
func parseSequence(items []interface{}, at string) ([]*Element, error) {
	out := make([]*Element, 0, len(items))
	for i, item := range items {
		el, err := parseElement(item, fmt.Sprintf("%s[%d]", at, i))
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func parseElement(item interface{}, at string) (*Element, error) {
	switch v := item.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s: node reference must not be empty", at)
		}
		return &Element{Kind: KindNodeRef, Name: v}, nil

	case map[string]interface{}:
		if len(v) != 1 {
			return nil, fmt.Errorf("%s: configured node must have exactly one key, got %d", at, len(v))
		}
		for name, cfg := range v {
			config, ok := cfg.(map[string]interface{})
			if cfg != nil && !ok {
				return nil, fmt.Errorf("%s: config for %q must be a mapping, got %T", at, name, cfg)
			}
			return &Element{Kind: KindConfigured, Name: name, Config: config}, nil
		}
		return nil, fmt.Errorf("%s: empty configured node", at)

	case []interface{}:
		if len(v) != 2 {
			return nil, fmt.Errorf("%s: tuple must have exactly 2 elements, got %d", at, len(v))
		}
		head, err := parseElement(v[0], at+"[0]")
		if err != nil {
			return nil, err
		}
		if head.Kind != KindNodeRef && head.Kind != KindConfigured {
			return nil, fmt.Errorf("%s[0]: tuple head must be a node, got %s", at, head.Kind)
		}
		switch tail := v[1].(type) {
		case map[string]interface{}:
			return parseBranch(head, tail, at)
		case nil:
			return nil, fmt.Errorf("%s: tuple tail must be a branch map or a body sequence", at)
		case []interface{}:
			body, err := parseSequence(tail, at+"[1]")
			if err != nil {
				return nil, err
			}
			return &Element{Kind: KindLoop, Controller: head, Body: body}, nil
		default:
			return nil, fmt.Errorf("%s: tuple tail must be a branch map or a body sequence, got %T", at, tail)
		}

	default:
		return nil, fmt.Errorf("%s: invalid flow element of type %T", at, item)
	}
}

func parseBranch(condition *Element, arms map[string]interface{}, at string) (*Element, error) {
	branches := make(map[string][]*Element, len(arms))
	order := make([]string, 0, len(arms))
	for name := range arms {
		order = append(order, name)
	}
	sort.Strings(order)

	for _, name := range order {
		arm := arms[name]
		if arm == nil {
			branches[name] = nil
			continue
		}
		seq, ok := arm.([]interface{})
		if !ok {
			// A single element is accepted as a one-step arm.
			el, err := parseElement(arm, fmt.Sprintf("%s[1].%s", at, name))
			if err != nil {
				return nil, fmt.Errorf("%s[1].%s: branch arm must be a sequence, null, or a single element", at, name)
			}
			branches[name] = []*Element{el}
			continue
		}
		parsed, err := parseSequence(seq, fmt.Sprintf("%s[1].%s", at, name))
		if err != nil {
			return nil, err
		}
		branches[name] = parsed
	}

	return &Element{
		Kind:        KindBranch,
		Condition:   condition,
		Branches:    branches,
		BranchOrder: order,
	}, nil
}
