package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the model definitions known to an application
type Registry struct {
	definitions map[string]*Definition
	mu          sync.RWMutex
}

// NewRegistry creates a new definition registry
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register adds a definition under its model name
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return &ConfigurationError{Message: "cannot register a nil definition"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Name()]; exists {
		return &ConfigurationError{Model: def.Name(), Message: "is already registered"}
	}
	r.definitions[def.Name()] = def
	return nil
}

// Get retrieves a definition by model name
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[name]
	return def, exists
}

// MustGet retrieves a definition by model name and panics if it is missing
func (r *Registry) MustGet(name string) *Definition {
	def, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("model %s is not registered", name))
	}
	return def
}

// All returns a copy of all registered definitions
func (r *Registry) All() map[string]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Definition, len(r.definitions))
	for k, v := range r.definitions {
		result[k] = v
	}
	return result
}

// List returns the registered model names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered definitions (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions = make(map[string]*Definition)
}

// Count returns the number of registered definitions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.definitions)
}

// Exists checks if a model is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.definitions[name]
	return exists
}
