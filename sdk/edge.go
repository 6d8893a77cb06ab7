package sdk

import (
	"fmt"
	"sync"
)

// Thunk lazily produces an edge payload.
type Thunk func() (map[string]interface{}, error)

// Edge is a named node outcome with a lazily evaluated payload. The
// thunk runs at most once; errors and panics it produces are captured
// under the "error" key of the payload, never surfaced as Go errors.
type Edge struct {
	name  string
	thunk Thunk
	once  sync.Once
	data  map[string]interface{}
}

// Name returns the edge name.
func (e *Edge) Name() string { return e.name }

// Data evaluates the payload thunk, memoizing the result.
func (e *Edge) Data() map[string]interface{} {
	e.once.Do(func() {
		e.data = e.eval()
	})
	return e.data
}

func (e *Edge) eval() (data map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			data = map[string]interface{}{"error": fmt.Sprint(r)}
		}
	}()
	if e.thunk == nil {
		return map[string]interface{}{}
	}
	data, err := e.thunk()
	if data == nil {
		data = map[string]interface{}{}
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return data
}

// Result is the ordered, non-empty edge map a node returns. The first
// edge in insertion order is the node's effective outcome unless a
// branch construct selects another by name.
type Result struct {
	edges []*Edge
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{}
}

// Edge appends a lazily evaluated edge. Returns the result for
// chaining.
func (r *Result) Edge(name string, thunk Thunk) *Result {
	r.edges = append(r.edges, &Edge{name: name, thunk: thunk})
	return r
}

// StaticEdge appends an edge with an already computed payload.
func (r *Result) StaticEdge(name string, data map[string]interface{}) *Result {
	return r.Edge(name, func() (map[string]interface{}, error) {
		return data, nil
	})
}

// Edges returns the edges in insertion order.
func (r *Result) Edges() []*Edge { return r.edges }

// First returns the first edge, or nil for an empty result.
func (r *Result) First() *Edge {
	if len(r.edges) == 0 {
		return nil
	}
	return r.edges[0]
}

// Find returns the edge with the given name, or nil.
func (r *Result) Find(name string) *Edge {
	for _, e := range r.edges {
		if e.name == name {
			return e
		}
	}
	return nil
}

// Empty reports whether the result holds no edges.
func (r *Result) Empty() bool { return len(r.edges) == 0 }

// Success builds a single-edge result named "success".
func Success(data map[string]interface{}) *Result {
	return NewResult().StaticEdge("success", data)
}
