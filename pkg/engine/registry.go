package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDuplicateEngine is returned when two engines share an ID.
	ErrDuplicateEngine = errors.New("engine: duplicate engine id")

	// ErrInvalidEngine is returned for nil engines or engines with an empty ID.
	ErrInvalidEngine = errors.New("engine: invalid engine")
)

// Registry is an explicit, ordered set of engines. Enumeration order is
// registration order and is stable for the lifetime of the registry.
type Registry struct {
	mu      sync.RWMutex
	engines []Engine
	byID    map[string]Engine
}

// NewRegistry returns a registry holding engines, in order.
func NewRegistry(engines ...Engine) (*Registry, error) {
	r := &Registry{byID: make(map[string]Engine)}
	if err := r.Register(engines...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register appends engines. Either all are added or none.
func (r *Registry) Register(engines ...Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(engines))
	for _, e := range engines {
		if e == nil || e.ID() == "" {
			return ErrInvalidEngine
		}
		id := e.ID()
		if _, dup := r.byID[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateEngine, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateEngine, id)
		}
		seen[id] = struct{}{}
	}
	for _, e := range engines {
		r.engines = append(r.engines, e)
		r.byID[e.ID()] = e
	}
	return nil
}

// Engines returns a snapshot of the registered engines in registration order.
func (r *Registry) Engines() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.engines)
}

// Lookup returns the engine with the given ID.
func (r *Registry) Lookup(id string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
