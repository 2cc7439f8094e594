package tools

import (
	"sort"
	"sync"
)

// Registry holds the operation catalog. It is populated at startup and
// injected into every component that dispatches or lists operations; nothing
// in the package reaches for a process-global instance.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]*Operation
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds an operation. Names are unique; a second registration under
// the same name fails rather than silently replacing the first.
func (r *Registry) Register(op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.Name]; exists {
		return &DuplicateOperationError{Name: op.Name}
	}
	r.ops[op.Name] = &op
	r.order = append(r.order, op.Name)
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (*Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	return op, ok
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// List returns the catalog in the native listing shape, in registration
// order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		op := r.ops[name]
		out = append(out, Descriptor{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.InputSchema,
		})
	}
	return out
}

// ListAdapter returns the catalog in the shape function-calling clients
// consume, in registration order.
func (r *Registry) ListAdapter() []AdapterDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AdapterDescriptor, 0, len(r.order))
	for _, name := range r.order {
		op := r.ops[name]
		out = append(out, AdapterDescriptor{
			Type: "function",
			Function: AdapterFunction{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  op.InputSchema,
			},
		})
	}
	return out
}
