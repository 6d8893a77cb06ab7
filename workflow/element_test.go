package workflow

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) []*Element {
	t.Helper()
	els, err := ParseNodes(json.RawMessage(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return els
}

func TestParseNodeRef(t *testing.T) {
	els := mustParse(t, `["fetchUser"]`)
	if len(els) != 1 || els[0].Kind != KindNodeRef || els[0].Name != "fetchUser" {
		t.Errorf("unexpected element: %+v", els[0])
	}
}

func TestParseConfiguredNode(t *testing.T) {
	els := mustParse(t, `[{"setData": {"path": "x", "value": 1}}]`)
	el := els[0]
	if el.Kind != KindConfigured || el.Name != "setData" {
		t.Fatalf("unexpected element: %+v", el)
	}
	if el.Config["path"] != "x" || el.Config["value"] != float64(1) {
		t.Errorf("config not preserved: %v", el.Config)
	}
}

func TestParseBranch(t *testing.T) {
	src := `[
		[{"checkValue": {"path": "x", "op": "eq", "value": 1}},
		 {"true": [{"setData": {"path": "y", "value": "A"}}],
		  "false": [{"setData": {"path": "y", "value": "B"}}],
		  "skip": null}]
	]`
	els := mustParse(t, src)
	el := els[0]
	if el.Kind != KindBranch {
		t.Fatalf("expected branch, got %v", el.Kind)
	}
	if el.Condition == nil || el.Condition.Name != "checkValue" {
		t.Errorf("condition not parsed: %+v", el.Condition)
	}
	if len(el.Branches["true"]) != 1 || el.Branches["true"][0].Name != "setData" {
		t.Errorf("true arm not parsed: %+v", el.Branches["true"])
	}
	if arm, ok := el.Branches["skip"]; !ok || arm != nil {
		t.Errorf("null arm should be present and empty: %v ok=%v", arm, ok)
	}
}

func TestParseLoop(t *testing.T) {
	src := `[
		[{"forEach": {"items": "items"}},
		 [{"appendData": {"path": "seen", "value": "{{item}}"}}]]
	]`
	els := mustParse(t, src)
	el := els[0]
	if el.Kind != KindLoop {
		t.Fatalf("expected loop, got %v", el.Kind)
	}
	if el.Controller == nil || el.Controller.Name != "forEach" {
		t.Errorf("controller not parsed: %+v", el.Controller)
	}
	if len(el.Body) != 1 || el.Body[0].Name != "appendData" {
		t.Errorf("body not parsed: %+v", el.Body)
	}
}

func TestTupleArityRejected(t *testing.T) {
	_, err := ParseNodes(json.RawMessage(`[["a", ["b"], ["c"]]]`))
	if err == nil || !strings.Contains(err.Error(), "exactly 2") {
		t.Errorf("expected arity error, got %v", err)
	}
}

func TestConfiguredNodeKeyCount(t *testing.T) {
	_, err := ParseNodes(json.RawMessage(`[{"a": {}, "b": {}}]`))
	if err == nil || !strings.Contains(err.Error(), "exactly one key") {
		t.Errorf("expected key-count error, got %v", err)
	}
}

func TestErrorNamesPosition(t *testing.T) {
	_, err := ParseNodes(json.RawMessage(`["ok", 42]`))
	if err == nil || !strings.Contains(err.Error(), "nodes[1]") {
		t.Errorf("error should name the offending position, got %v", err)
	}
}

func TestDefinitionParse(t *testing.T) {
	src := `{
		"id": "wf-branch",
		"name": "branching demo",
		"initialState": {"x": 0},
		"nodes": [{"setData": {"path": "x", "value": 1}}],
		"someFutureField": true
	}`
	def, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if def.ID != "wf-branch" || def.Name != "branching demo" {
		t.Errorf("definition fields: %+v", def)
	}
	if def.InitialState["x"] != float64(0) {
		t.Errorf("initial state: %v", def.InitialState)
	}
	flow, err := def.Flow()
	if err != nil || len(flow) != 1 {
		t.Errorf("flow parse: %v / %v", flow, err)
	}
}

func TestDefinitionValidateRejectsBadFlow(t *testing.T) {
	_, err := Parse([]byte(`{"id": "bad", "nodes": [["x"]]}`))
	if err == nil {
		t.Fatal("expected validation error for 1-tuple")
	}
}

func TestDefinitionRequiresID(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": ["a"]}`))
	if err == nil || !strings.Contains(err.Error(), "id is required") {
		t.Errorf("expected id error, got %v", err)
	}
}
