package schema

import (
	"fmt"
	"sync"
)

var (
	registry   = make(map[string]EntityType)
	declOrder  []string
	registryMu sync.RWMutex
)

// Register adds an entity type to the registry.
// Panics if an entity with the same name is already registered.
func Register(e EntityType) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[e.Name]; exists {
		panic(fmt.Sprintf("entity type already registered: %s", e.Name))
	}

	registry[e.Name] = e
	declOrder = append(declOrder, e.Name)
}

// Get returns an entity type by name.
// Returns false if not found.
func Get(name string) (EntityType, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	e, ok := registry[name]
	return e, ok
}

// All returns all registered entity types in declaration order.
func All() []EntityType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityType, 0, len(registry))
	for _, name := range declOrder {
		result = append(result, registry[name])
	}
	return result
}

// Names returns all registered entity type names in declaration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return append([]string(nil), declOrder...)
}

// DependencyGraph returns the static dependency map for all registered
// entity types: entity name to the entities it depends on.
func DependencyGraph() map[string][]string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	graph := make(map[string][]string, len(registry))
	for name, e := range registry {
		graph[name] = append([]string(nil), e.DependsOn...)
	}
	return graph
}

// Count returns the number of registered entity types.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entity types.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityType)
	declOrder = nil
}
