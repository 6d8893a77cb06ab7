package catalog

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/flowscript/orchestrator/workflow"
)

// MergePatch applies an RFC 7386 merge patch to a definition and
// validates the result. The workflow ID cannot be changed by a patch.
func MergePatch(def *workflow.Definition, patch []byte) (*workflow.Definition, error) {
	doc, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition %s: %w", def.ID, err)
	}

	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to apply merge patch: %w", err)
	}

	out, err := workflow.Parse(merged)
	if err != nil {
		return nil, err
	}
	if out.ID != def.ID {
		return nil, fmt.Errorf("merge patch cannot change workflow id %s", def.ID)
	}
	return out, nil
}
