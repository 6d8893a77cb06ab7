package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowscript/orchestrator/state"
)

// Definition is an immutable workflow document. Unknown top-level
// fields in the source JSON are ignored.
type Definition struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Version      int                    `json:"version,omitempty"`
	InitialState map[string]interface{} `json:"initialState,omitempty"`
	Nodes        json.RawMessage        `json:"nodes"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	CreatedAt    time.Time              `json:"created_at,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at,omitempty"`
}

// Parse decodes and validates a workflow definition document.
func Parse(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition against the flow element grammar.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("workflow %s has no nodes", d.ID)
	}
	if _, err := ParseNodes(d.Nodes); err != nil {
		return fmt.Errorf("workflow %s: %w", d.ID, err)
	}
	return nil
}

// Flow parses the definition's node sequence.
func (d *Definition) Flow() ([]*Element, error) {
	return ParseNodes(d.Nodes)
}

// Clone returns a deep copy sharing nothing with the receiver.
func (d *Definition) Clone() *Definition {
	c := *d
	if d.InitialState != nil {
		c.InitialState = state.CloneMap(d.InitialState)
	}
	if d.Metadata != nil {
		c.Metadata = state.CloneMap(d.Metadata)
	}
	if d.Tags != nil {
		c.Tags = append([]string(nil), d.Tags...)
	}
	if d.Nodes != nil {
		c.Nodes = append(json.RawMessage(nil), d.Nodes...)
	}
	return &c
}
