package stereossim

import (
	"fmt"
	"sort"
	"sync"
)

// Reducer names.
const (
	// ReducerGPU is the wgpu/hal reducer, registered by importing the gpu package.
	ReducerGPU = "gpu"
	// ReducerSoftware is the CPU reducer. It is always registered.
	ReducerSoftware = "software"
)

// ReducerFactory creates a reducer. A factory returns an error when its
// reducer cannot run in the current environment, for example when no GPU
// adapter is present.
type ReducerFactory func() (Reducer, error)

// registry holds registered reducers.
var (
	registryMu sync.RWMutex
	reducers   = make(map[string]ReducerFactory)
	// Priority order for DefaultReducer (first that initializes wins).
	reducerPriority = []string{ReducerGPU, ReducerSoftware}
)

func init() {
	RegisterReducer(ReducerSoftware, func() (Reducer, error) {
		return NewSoftwareReducer(), nil
	})
}

// RegisterReducer registers a reducer factory with the given name.
// This is typically called from init() functions in reducer packages.
// If a reducer with the same name is already registered, it is replaced.
func RegisterReducer(name string, factory ReducerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	reducers[name] = factory
}

// UnregisterReducer removes a reducer from the registry.
// This is useful for testing.
func UnregisterReducer(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(reducers, name)
}

// AvailableReducers returns the registered reducer names, sorted.
func AvailableReducers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(reducers))
	for name := range reducers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewReducer creates the reducer registered under name.
func NewReducer(name string) (Reducer, error) {
	registryMu.RLock()
	factory, ok := reducers[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReducer, name)
	}
	r, err := factory()
	if err != nil {
		return nil, fmt.Errorf("init %s reducer: %w", name, err)
	}
	propagateLogger(r, Logger())
	return r, nil
}

// DefaultReducer creates the best available reducer by priority:
// gpu, then software, then any other registered reducer.
// Factory failures are logged at Warn and the next candidate is tried.
func DefaultReducer() (Reducer, error) {
	registryMu.RLock()
	names := make([]string, 0, len(reducers))
	seen := make(map[string]bool, len(reducers))
	for _, name := range reducerPriority {
		if _, ok := reducers[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	// Fallback: the rest in name order
	var rest []string
	for name := range reducers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	registryMu.RUnlock()
	sort.Strings(rest)
	names = append(names, rest...)

	for _, name := range names {
		r, err := NewReducer(name)
		if err != nil {
			Logger().Warn("reducer not available, trying next", "reducer", name, "err", err)
			continue
		}
		Logger().Debug("reducer selected", "reducer", name)
		return r, nil
	}
	return nil, ErrNoReducer
}
