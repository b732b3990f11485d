// Package registry maps geometry engine names to their constructors.
// Engine packages register themselves from their init functions.
package registry

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
)

// Factory opens a new engine instance.
type Factory func(ctx context.Context) (geometry.Engine, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes an engine available under name.
// This is called by engine packages in their init() functions.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, exists := factories[name]
	if !exists {
		return nil, errors.NewValidationError("engine", name, "unknown geometry engine, want one of "+joined())
	}
	return factory, nil
}

// Has checks if an engine is registered under name.
func Has(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, exists := factories[name]
	return exists
}

// List returns the registered engine names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// joined lists the registered names; callers hold mu.
func joined() string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
