// Package modules provides module registration and loading for sweep.
// A module is a configured observer, optionally also a trigger source.
// Module names resolve against an explicit registry populated at process
// startup by registration calls; an unregistered name is a fatal load error,
// never a silently inert observer.
package modules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"sweep/pkg/sweeptypes"
)

// Factory constructs a module instance from its per-module configuration
// sub-mapping. Factories must fail on missing or invalid configuration keys
// rather than defer the failure to run time.
type Factory func(cfg map[string]any, logger *log.Logger) (sweeptypes.Observer, error)

// Registry maps module names to their factories. It provides thread-safe
// registration and retrieval by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new module registry with an empty factory map.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a module factory to the registry. Returns an error if the
// name is empty or already registered.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Get retrieves a module factory by name. Returns the factory and true if
// found, or nil and false if the name is not registered.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, exists := r.factories[name]
	return factory, exists
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GlobalRegistry is the global module registry instance. Built-in modules
// register themselves here from init functions; the builtin package is
// imported for side effects by main.
var GlobalRegistry = NewRegistry()
