package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flowscript/orchestrator/sdk"
)

var (
	// ErrDuplicateNode rejects registering a name twice.
	ErrDuplicateNode = errors.New("node already registered")
	// ErrNodeNotFound is returned by Create and Metadata for unknown
	// names.
	ErrNodeNotFound = errors.New("node not found")
)

// Factory creates a fresh node instance per invocation.
type Factory func() sdk.Node

// Logger interface for registry logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

type entry struct {
	factory Factory
	meta    sdk.Metadata
}

// Registry maps node names to factories and metadata, with a secondary
// index by node type. It is process-wide, read-mostly, and safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]*entry
	byType map[sdk.NodeType][]string
	order  []string
	logger Logger
}

// New creates an empty registry.
func New(logger Logger) *Registry {
	return &Registry{
		nodes:  make(map[string]*entry),
		byType: make(map[sdk.NodeType][]string),
		logger: logger,
	}
}

// Register adds a node factory. The factory is probed once for
// metadata; its name must be unique.
func (r *Registry) Register(factory Factory) error {
	meta := factory().Metadata()
	if meta.Name == "" {
		return fmt.Errorf("node metadata has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[meta.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, meta.Name)
	}
	r.nodes[meta.Name] = &entry{factory: factory, meta: meta}
	r.order = append(r.order, meta.Name)
	r.byType[meta.Type] = append(r.byType[meta.Type], meta.Name)

	r.logger.Debug("node registered", "node", meta.Name, "type", string(meta.Type))
	return nil
}

// RegisterInstance adds a pre-built node served as a shared instance.
// The node must be stateless across invocations.
func (r *Registry) RegisterInstance(node sdk.Node) error {
	return r.Register(func() sdk.Node { return node })
}

// MustRegister panics on registration failure; for wiring built-ins at
// startup.
func (r *Registry) MustRegister(factory Factory) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// Unregister removes a node by name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.nodes[name]
	if !ok {
		return false
	}
	delete(r.nodes, name)
	r.order = removeName(r.order, name)
	r.byType[e.meta.Type] = removeName(r.byType[e.meta.Type], name)
	return true
}

// Has reports whether a node name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[name]
	return ok
}

// Create returns a fresh node instance for name.
func (r *Registry) Create(name string) (sdk.Node, error) {
	r.mu.RLock()
	e, ok := r.nodes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	return e.factory(), nil
}

// Metadata returns the metadata registered under name.
func (r *Registry) Metadata(name string) (sdk.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.nodes[name]
	if !ok {
		return sdk.Metadata{}, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	return e.meta, nil
}

// List returns all node metadata in registration order.
func (r *Registry) List() []sdk.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]sdk.Metadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.nodes[name].meta)
	}
	return out
}

// Query filters a Search. Zero fields match everything.
type Query struct {
	// Node type to match exactly.
	Type sdk.NodeType
	// Edge name that must appear in a node's expected edges.
	ExpectedEdge string
	// Case-insensitive substring of the node name.
	NamePattern string
}

// Search returns metadata matching every set query field, in
// registration order.
func (r *Registry) Search(q Query) []sdk.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.order
	if q.Type != "" {
		names = r.byType[q.Type]
	}

	var out []sdk.Metadata
	for _, name := range names {
		e, ok := r.nodes[name]
		if !ok {
			continue
		}
		if q.ExpectedEdge != "" && !containsString(e.meta.ExpectedEdges, q.ExpectedEdge) {
			continue
		}
		if q.NamePattern != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(q.NamePattern)) {
			continue
		}
		out = append(out, e.meta)
	}
	return out
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
