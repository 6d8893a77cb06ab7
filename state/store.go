package state

import "sync"

// Hooks observe store mutations. At most one pair is registered per
// store; both fire once per mutating call, including Update. Hooks run
// outside the store lock, so a hook may read the store, and writers
// racing the same path while a hook runs see last-write-wins.
type Hooks struct {
	Before func(path string, oldValue, newValue interface{})
	After  func(path string, newValue interface{})
}

// Store is a path-addressed document owned by a single execution.
// Every value crossing the store boundary is deep-copied, so callers
// never alias internal storage.
type Store struct {
	mu    sync.RWMutex
	data  map[string]interface{}
	hooks Hooks
}

// New creates a store seeded with a deep copy of initial.
func New(initial map[string]interface{}) *Store {
	return &Store{data: CloneMap(initial)}
}

// SetHooks installs the store's mutation hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

// Get returns a deep copy of the value at path. The root is addressed
// by "$" or the empty string.
func (s *Store) Get(path string) (interface{}, bool) {
	segs := parsePath(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(segs) == 0 {
		return CloneMap(s.data), true
	}
	v, ok := getIn(s.data, segs)
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Has reports whether a value exists at path.
func (s *Store) Has(path string) bool {
	segs := parsePath(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(segs) == 0 {
		return true
	}
	_, ok := getIn(s.data, segs)
	return ok
}

// Set writes a deep copy of value at path, creating intermediate
// containers. Setting the root replaces the whole document when value
// is a map and is a no-op otherwise.
func (s *Store) Set(path string, value interface{}) {
	segs := parsePath(path)
	v := Clone(value)

	s.mu.Lock()
	hooks := s.hooks
	var old interface{}
	if hooks.Before != nil {
		if prev, ok := getIn(s.data, segs); ok {
			old = Clone(prev)
		}
	}
	if len(segs) == 0 {
		m, ok := v.(map[string]interface{})
		if !ok {
			s.mu.Unlock()
			return
		}
		s.data = m
	} else {
		if root, ok := setIn(s.data, segs, v).(map[string]interface{}); ok {
			s.data = root
		}
	}
	s.mu.Unlock()

	if hooks.Before != nil {
		hooks.Before(path, old, Clone(v))
	}
	if hooks.After != nil {
		hooks.After(path, Clone(v))
	}
}

// Delete removes the value at path. Absent paths are a no-op.
func (s *Store) Delete(path string) bool {
	segs := parsePath(path)
	if len(segs) == 0 {
		return false
	}

	s.mu.Lock()
	hooks := s.hooks
	var old interface{}
	if hooks.Before != nil {
		if prev, ok := getIn(s.data, segs); ok {
			old = Clone(prev)
		}
	}
	root, deleted := deleteIn(s.data, segs)
	if m, ok := root.(map[string]interface{}); ok {
		s.data = m
	}
	s.mu.Unlock()

	if deleted {
		if hooks.Before != nil {
			hooks.Before(path, old, nil)
		}
		if hooks.After != nil {
			hooks.After(path, nil)
		}
	}
	return deleted
}

// Update deep-merges partial into the root document. Maps merge
// recursively; sequences, primitives and dates replace; an explicit
// nil removes the key. Hooks fire once per Update call with the root
// path.
func (s *Store) Update(partial map[string]interface{}) {
	if len(partial) == 0 {
		return
	}

	s.mu.Lock()
	hooks := s.hooks
	var old interface{}
	if hooks.Before != nil {
		old = CloneMap(s.data)
	}
	s.data = mergeMaps(s.data, partial)
	var merged map[string]interface{}
	if hooks.Before != nil || hooks.After != nil {
		merged = CloneMap(s.data)
	}
	s.mu.Unlock()

	if hooks.Before != nil {
		hooks.Before("$", old, merged)
	}
	if hooks.After != nil {
		hooks.After("$", merged)
	}
}

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneMap(s.data)
}

// mergeMaps applies partial onto dst. Both sides recurse only when
// both are plain maps; the partial side replaces otherwise.
func mergeMaps(dst, partial map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(partial))
	}
	for k, v := range partial {
		if v == nil {
			delete(dst, k)
			continue
		}
		pm, pok := v.(map[string]interface{})
		dm, dok := dst[k].(map[string]interface{})
		if pok && dok {
			dst[k] = mergeMaps(dm, pm)
			continue
		}
		dst[k] = Clone(v)
	}
	return dst
}
