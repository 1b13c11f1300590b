package source

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps dataset identifiers to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// DefaultRegistry holds every built-in adapter.
var DefaultRegistry = NewRegistry()

// NewRegistry returns a registry with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}

	r.Register(NewThuillier2003())
	r.Register(NewWHI2008())
	r.Register(NewMeftah2018())
	r.Register(NewSOLID2017())
	r.Register(NewCoddington2021())

	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ID()] = a
}

// Lookup returns the adapter for id.
func (r *Registry) Lookup(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	return a, nil
}

// IDs returns the registered identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the adapters for ids, or all of them for "all" or no ids.
func (r *Registry) Resolve(ids ...string) ([]Adapter, error) {
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == "all") {
		ids = r.IDs()
	}
	out := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		a, err := r.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
