package statemachine

import (
	"fmt"
	"sort"
	"sync"

	"contentflow/internal/services"
)

// Registry resolves persisted kinds back to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns a registry seeded with the base definition and defs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: map[string]Definition{BaseKind: Base()}}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and stores def under its kind.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Kind] = def
	return nil
}

// Lookup returns the definition registered for kind.
func (r *Registry) Lookup(kind string) (Definition, error) {
	if r == nil {
		return Definition{}, services.Wrap(services.ErrConfiguration, "statemachine", "lookup", "registry not configured", ErrUnknownKind)
	}
	r.mu.RLock()
	def, ok := r.defs[kind]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, services.Wrap(services.ErrValidation, "statemachine", "lookup", fmt.Sprintf("kind %q", kind), ErrUnknownKind)
	}
	return def, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for kind := range r.defs {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
