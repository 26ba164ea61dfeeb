package chain

import "sync"

// Registry holds the member names that return data rather than continue the chain. A call to one
// of them yields a detached value handle instead of the chain root.
type Registry struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewRegistry returns a registry holding names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	r.Register(names...)
	return r
}

// DefaultRegistry marks the identifier extraction accessors as value-returning.
func DefaultRegistry() *Registry {
	return NewRegistry("ExtractIdentifier", "ExtractIdentifierAsNumber")
}

// Register marks names as value-returning.
func (r *Registry) Register(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.names[n] = struct{}{}
	}
}

// IsValue reports whether name is value-returning.
func (r *Registry) IsValue(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Mapping is an explicit member table. A target exposing one (see Mapper) is resolved through it
// instead of by reflection. Values are either functions (callable members) or plain values.
type Mapping map[string]any

// Mapper is implemented by targets that publish their chainable members explicitly.
type Mapper interface {
	ChainMembers() Mapping
}

// Indexer is implemented by targets that support keyed access, such as element families.
type Indexer interface {
	Lookup(key any) (any, error)
}
