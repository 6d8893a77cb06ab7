package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowscript/orchestrator/workflow"
)

// MemoryRepository keeps definitions in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	defs map[string]*workflow.Definition
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{defs: make(map[string]*workflow.Definition)}
}

// Create stores a new definition. Zero timestamps are stamped with the
// current time.
func (r *MemoryRepository) Create(ctx context.Context, def *workflow.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, def.ID)
	}
	stored := def.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.defs[def.ID] = stored
	return nil
}

// Get returns a copy of the definition with the given ID.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*workflow.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def.Clone(), nil
}

// List returns all definitions ordered by ID.
func (r *MemoryRepository) List(ctx context.Context) ([]*workflow.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*workflow.Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update replaces an existing definition and stamps UpdatedAt.
func (r *MemoryRepository) Update(ctx context.Context, def *workflow.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.defs[def.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, def.ID)
	}
	stored := def.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = prev.CreatedAt
	}
	stored.UpdatedAt = time.Now()
	r.defs[def.ID] = stored
	return nil
}

// Delete removes a definition.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.defs, id)
	return nil
}
