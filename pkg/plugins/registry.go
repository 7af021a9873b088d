package plugins

import (
	"iter"
	"sync"
)

var (
	// defaultRegistry is the process-wide registry returned by Default
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Registry is an insertion-ordered catalog of plugin statuses keyed by name.
//
// Each method is safe to call concurrently, but the registry is written
// during discovery and read during a single load pass; mutating it while
// ranging over All is not supported.
type Registry struct {
	mu      sync.RWMutex
	order   []Name
	entries map[Name]*Status
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Name]*Status),
	}
}

// Default returns the process-wide registry, creating it on first use
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Set inserts or replaces the status for name. A replaced entry keeps its
// original position in iteration order.
func (r *Registry) Set(name Name, status *Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = status
}

// Get retrieves a plugin status by name
func (r *Registry) Get(name Name) (*Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, exists := r.entries[name]
	return status, exists
}

// All yields every registration in insertion order
func (r *Registry) All() iter.Seq2[Name, *Status] {
	return func(yield func(Name, *Status) bool) {
		for _, name := range r.Names() {
			status, ok := r.Get(name)
			if !ok {
				continue
			}
			if !yield(name, status) {
				return
			}
		}
	}
}

// Names returns the registered names in insertion order
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, len(r.order))
	copy(names, r.order)
	return names
}

// Statuses returns the registered statuses in insertion order
func (r *Registry) Statuses() []*Status {
	result := make([]*Status, 0, r.Len())
	for _, status := range r.All() {
		result = append(result, status)
	}
	return result
}

// Len returns the number of registered plugins
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
