package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowscript/orchestrator/sdk"
)

// setDataNode writes one or more values into state.
type setDataNode struct{}

func (n *setDataNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:        "setData",
		Description: "Sets a value at a state path, or several values at once",
		Type:        sdk.TypeAction,
		AIHints: map[string]interface{}{
			"example": map[string]interface{}{"path": "user.name", "value": "ada"},
		},
		ExpectedEdges: []string{"success"},
	}
}

func (n *setDataNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	if values, ok := sdk.MapValue(ec.Config, "values"); ok {
		paths := make([]string, 0, len(values))
		for path := range values {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			ec.State.Set(path, values[path])
		}
		return sdk.Success(map[string]interface{}{"paths": paths}), nil
	}

	path, ok := sdk.StringValue(ec.Config, "path")
	if !ok || path == "" {
		return nil, fmt.Errorf("setData requires a path or a values map")
	}
	value := ec.Config["value"]
	ec.State.Set(path, value)
	return sdk.Success(map[string]interface{}{"path": path, "value": value}), nil
}

// appendDataNode appends a value to the sequence at a state path,
// creating the sequence when absent.
type appendDataNode struct{}

func (n *appendDataNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:          "appendData",
		Description:   "Appends a value to the sequence at a state path",
		Type:          sdk.TypeAction,
		ExpectedEdges: []string{"success"},
	}
}

func (n *appendDataNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	path, ok := sdk.StringValue(ec.Config, "path")
	if !ok || path == "" {
		return nil, fmt.Errorf("appendData requires a path")
	}

	var seq []interface{}
	if current, found := ec.State.Get(path); found {
		seq, ok = current.([]interface{})
		if !ok {
			return nil, fmt.Errorf("appendData: value at %q is not a sequence", path)
		}
	}
	seq = append(seq, ec.Config["value"])
	ec.State.Set(path, seq)

	return sdk.Success(map[string]interface{}{"path": path, "length": len(seq)}), nil
}

// deleteDataNode removes one or more state paths.
type deleteDataNode struct{}

func (n *deleteDataNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:          "deleteData",
		Description:   "Deletes one or more state paths",
		Type:          sdk.TypeAction,
		ExpectedEdges: []string{"success"},
	}
}

func (n *deleteDataNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	var paths []string
	if list, ok := sdk.SliceValue(ec.Config, "paths"); ok {
		for i, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("deleteData: paths[%d] is not a string", i)
			}
			paths = append(paths, s)
		}
	} else if path, ok := sdk.StringValue(ec.Config, "path"); ok && path != "" {
		paths = []string{path}
	} else {
		return nil, fmt.Errorf("deleteData requires a path or a paths list")
	}

	deleted := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		if ec.State.Delete(path) {
			deleted = append(deleted, path)
		}
	}
	return sdk.Success(map[string]interface{}{"deleted": deleted}), nil
}

// mergeDataNode deep-merges a map into the state root.
type mergeDataNode struct{}

func (n *mergeDataNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:          "mergeData",
		Description:   "Deep-merges a map into the state root",
		Type:          sdk.TypeAction,
		ExpectedEdges: []string{"success"},
	}
}

func (n *mergeDataNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	data, ok := sdk.MapValue(ec.Config, "data")
	if !ok {
		return nil, fmt.Errorf("mergeData requires a data map")
	}
	ec.State.Update(data)

	keys := make([]interface{}, 0, len(data))
	for _, k := range sortedKeys(data) {
		keys = append(keys, k)
	}
	return sdk.Success(map[string]interface{}{"keys": keys}), nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
