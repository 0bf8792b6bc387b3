package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a launcher.
type Factory func() Launcher

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register associates the provided factory with the launcher name. When multiple
// factories register the same name the most recent registration wins.
func Register(name string, factory Factory) {
	if name == "" {
		panic("runtime.Register: name must not be empty")
	}
	if factory == nil {
		panic("runtime.Register: factory must not be nil")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Lookup constructs the launcher registered under name.
func Lookup(name string) (Launcher, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown runtime %q (registered: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists registered launcher names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
