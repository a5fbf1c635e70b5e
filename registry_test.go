package stereossim

import (
	"errors"
	"slices"
	"testing"
)

func TestSoftwareAlwaysRegistered(t *testing.T) {
	if !slices.Contains(AvailableReducers(), ReducerSoftware) {
		t.Fatalf("AvailableReducers() = %v, missing %q", AvailableReducers(), ReducerSoftware)
	}
	r, err := NewReducer(ReducerSoftware)
	if err != nil {
		t.Fatalf("NewReducer: %v", err)
	}
	defer r.Close()
	forgetReducer(r)
	if r.Name() != ReducerSoftware {
		t.Errorf("Name() = %q", r.Name())
	}
}

func TestNewReducerUnknown(t *testing.T) {
	if _, err := NewReducer("quantum"); !errors.Is(err, ErrUnknownReducer) {
		t.Errorf("error = %v, want ErrUnknownReducer", err)
	}
}

func TestDefaultReducerFallsBack(t *testing.T) {
	registryMu.RLock()
	saved := make(map[string]ReducerFactory, len(reducers))
	for k, v := range reducers {
		saved[k] = v
	}
	registryMu.RUnlock()
	t.Cleanup(func() {
		registryMu.Lock()
		reducers = saved
		registryMu.Unlock()
	})

	failed := 0
	RegisterReducer(ReducerGPU, func() (Reducer, error) {
		failed++
		return nil, errors.New("no adapter")
	})
	r, err := DefaultReducer()
	if err != nil {
		t.Fatalf("DefaultReducer: %v", err)
	}
	defer r.Close()
	forgetReducer(r)
	if failed != 1 || r.Name() != ReducerSoftware {
		t.Errorf("got %q after %d GPU attempts", r.Name(), failed)
	}

	UnregisterReducer(ReducerGPU)
	UnregisterReducer(ReducerSoftware)
	if _, err := DefaultReducer(); !errors.Is(err, ErrNoReducer) {
		t.Errorf("empty registry error = %v, want ErrNoReducer", err)
	}
}

func TestDefaultReducerOrder(t *testing.T) {
	registryMu.RLock()
	saved := make(map[string]ReducerFactory, len(reducers))
	for k, v := range reducers {
		saved[k] = v
	}
	registryMu.RUnlock()
	t.Cleanup(func() {
		registryMu.Lock()
		reducers = saved
		registryMu.Unlock()
	})

	UnregisterReducer(ReducerSoftware)
	RegisterReducer("zeta", func() (Reducer, error) { return NewSoftwareReducer(), nil })
	RegisterReducer("alpha", func() (Reducer, error) { return nil, errors.New("broken") })
	if got := AvailableReducers(); !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Errorf("AvailableReducers() = %v", got)
	}
	r, err := DefaultReducer()
	if err != nil {
		t.Fatalf("DefaultReducer: %v", err)
	}
	forgetReducer(r)
	_ = r.Close()
}
