package sdk

import (
	"errors"
	"testing"
)

func TestEdgeThunkMemoized(t *testing.T) {
	calls := 0
	r := NewResult().Edge("success", func() (map[string]interface{}, error) {
		calls++
		return map[string]interface{}{"n": calls}, nil
	})

	e := r.First()
	first := e.Data()
	second := e.Data()

	if calls != 1 {
		t.Errorf("thunk ran %d times, want 1", calls)
	}
	if first["n"] != 1 || second["n"] != 1 {
		t.Errorf("memoized data changed: %v / %v", first, second)
	}
}

func TestEdgeThunkErrorCaptured(t *testing.T) {
	r := NewResult().Edge("success", func() (map[string]interface{}, error) {
		return map[string]interface{}{"partial": true}, errors.New("boom")
	})

	data := r.First().Data()
	if data["error"] != "boom" {
		t.Errorf("thunk error not captured: %v", data)
	}
	if data["partial"] != true {
		t.Errorf("partial data lost: %v", data)
	}
}

func TestEdgeThunkPanicCaptured(t *testing.T) {
	r := NewResult().Edge("success", func() (map[string]interface{}, error) {
		panic("kaput")
	})

	data := r.First().Data()
	if data["error"] != "kaput" {
		t.Errorf("panic not captured: %v", data)
	}
}

func TestResultOrderAndLookup(t *testing.T) {
	r := NewResult().
		StaticEdge("true", map[string]interface{}{"v": 1}).
		StaticEdge("false", map[string]interface{}{"v": 2})

	if r.First().Name() != "true" {
		t.Errorf("first edge = %s, want true", r.First().Name())
	}
	if e := r.Find("false"); e == nil || e.Data()["v"] != 2 {
		t.Error("Find(false) failed")
	}
	if r.Find("missing") != nil {
		t.Error("Find(missing) should be nil")
	}
	names := []string{}
	for _, e := range r.Edges() {
		names = append(names, e.Name())
	}
	if len(names) != 2 || names[0] != "true" || names[1] != "false" {
		t.Errorf("edge order = %v", names)
	}
}

func TestNilThunkYieldsEmptyPayload(t *testing.T) {
	r := NewResult().Edge("success", nil)
	if data := r.First().Data(); data == nil || len(data) != 0 {
		t.Errorf("nil thunk payload = %v", data)
	}
}
