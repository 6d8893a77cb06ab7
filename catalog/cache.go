package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/flowscript/orchestrator/workflow"
)

// CachedRepository is a read-through cache in front of another
// repository. Get serves from memory within the TTL; writes pass
// through and invalidate the entry.
type CachedRepository struct {
	inner Repository
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	def       *workflow.Definition
	expiresAt time.Time
}

// NewCachedRepository wraps inner with a TTL cache.
func NewCachedRepository(inner Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the cached definition when fresh, falling back to the
// inner repository and priming the cache.
func (c *CachedRepository) Get(ctx context.Context, id string) (*workflow.Definition, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.def.Clone(), nil
	}

	def, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = &cacheEntry{def: def.Clone(), expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return def, nil
}

// Create passes through and invalidates any stale entry.
func (c *CachedRepository) Create(ctx context.Context, def *workflow.Definition) error {
	if err := c.inner.Create(ctx, def); err != nil {
		return err
	}
	c.invalidate(def.ID)
	return nil
}

// Update passes through and invalidates the entry.
func (c *CachedRepository) Update(ctx context.Context, def *workflow.Definition) error {
	if err := c.inner.Update(ctx, def); err != nil {
		return err
	}
	c.invalidate(def.ID)
	return nil
}

// Delete passes through and invalidates the entry.
func (c *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

// List always reads through; listings are not cached.
func (c *CachedRepository) List(ctx context.Context) ([]*workflow.Definition, error) {
	return c.inner.List(ctx)
}

// Stats returns cache statistics.
func (c *CachedRepository) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]interface{}{
		"entries": len(c.entries),
		"ttl":     c.ttl.String(),
	}
}

func (c *CachedRepository) invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
