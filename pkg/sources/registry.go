package sources

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Factory builds an adapter instance reading from db.
type Factory func(name string, db *sql.DB, limit int) (Adapter, error)

var globalRegistry = &Registry{factories: make(map[string]Factory)}

// RegisterFactory makes an adapter type available. Adapter packages call it
// from init().
func RegisterFactory(typ string, f Factory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.factories[typ] = f
}

// Registry holds adapter instances in registration order, which is also
// the order results are merged in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	adapters  []Adapter
}

// NewRegistry returns a registry with the globally registered factories.
func NewRegistry() *Registry {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	r := &Registry{factories: make(map[string]Factory, len(globalRegistry.factories))}
	for typ, f := range globalRegistry.factories {
		r.factories[typ] = f
	}
	return r
}

// Create instantiates an adapter of type typ and appends it.
func (r *Registry) Create(name, typ string, db *sql.DB, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factories[typ]
	if !ok {
		return fmt.Errorf("unknown source type %q (available: %v)", typ, r.typesLocked())
	}
	for _, a := range r.adapters {
		if a.Name() == name {
			return fmt.Errorf("source %s already registered", name)
		}
	}

	a, err := f(name, db, limit)
	if err != nil {
		return fmt.Errorf("creating source %s: %w", name, err)
	}
	r.adapters = append(r.adapters, a)
	return nil
}

// Add appends an already built adapter.
func (r *Registry) Add(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.adapters {
		if existing.Name() == a.Name() {
			return fmt.Errorf("source %s already registered", a.Name())
		}
	}
	r.adapters = append(r.adapters, a)
	return nil
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Get returns the adapter with the given instance name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("source %s not found", name)
}

// Types lists the registered adapter types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []string {
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
