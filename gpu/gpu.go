//go:build !nogpu

// Package gpu registers the GPU reducer with stereossim.
//
// Import this package to run validation passes on a Vulkan device:
//
//	import _ "github.com/gogpu/stereossim/gpu"
//
// stereossim.DefaultReducer then prefers the GPU reducer. If no device can
// be opened, DefaultReducer logs a warning and falls back to the software
// reducer.
package gpu

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/stereossim"
	gpuimpl "github.com/gogpu/stereossim/internal/gpu"
)

var (
	providerMu sync.Mutex
	provider   gpucontext.DeviceProvider
)

func init() {
	stereossim.RegisterReducer(stereossim.ReducerGPU, newReducer)
}

func newReducer() (stereossim.Reducer, error) {
	providerMu.Lock()
	p := provider
	providerMu.Unlock()

	if p != nil {
		return gpuimpl.NewWithProvider(p)
	}
	return gpuimpl.New()
}

// SetDeviceProvider makes GPU reducers created after this call share the
// provider's device instead of opening their own (e.g., a gogpu window's
// device). The provider must also expose HalDevice() and HalQueue().
// A nil provider restores the default.
//
// The provider is checked by creating and closing one reducer.
func SetDeviceProvider(p gpucontext.DeviceProvider) error {
	if p != nil {
		r, err := gpuimpl.NewWithProvider(p)
		if err != nil {
			return err
		}
		_ = r.Close()
	}
	providerMu.Lock()
	provider = p
	providerMu.Unlock()
	return nil
}

// ValidateShaders parses, validates and compiles the reducer's WGSL
// shaders without touching a device.
func ValidateShaders() error {
	return gpuimpl.ValidateShaders()
}
