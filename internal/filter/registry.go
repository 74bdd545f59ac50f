package filter

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Creator)
)

// Register makes a stage class available by name. It panics if creator is
// nil or the name is already registered.
func Register(name string, creator Creator) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if creator == nil {
		panic("filter: Register creator is nil")
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("filter: Register called twice for stage %q", name))
	}
	registry[name] = creator
}

// Lookup returns the creator registered under name.
func Lookup(name string) (Creator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[name]
	return c, ok
}

// Names returns the registered stage classes, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unregister removes a stage class. Tests only.
func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}
