//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/stereossim"
)

// Texture formats.
const (
	// targetFormat keeps 16 bits through every averaging stage.
	targetFormat = gputypes.TextureFormatR16Unorm
	// sourceFormat holds the frame's 8-bit luma.
	sourceFormat = gputypes.TextureFormatR8Unorm
)

// Errors reported by the GPU reducer.
var (
	// ErrNotInitialized is returned when the reducer has no device.
	ErrNotInitialized = errors.New("gpu: reducer not initialized")

	// ErrNoAdapter is returned when the backend reports no adapter.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrFormatUnsupported is returned when the adapter cannot render to R16Unorm.
	ErrFormatUnsupported = errors.New("gpu: R16Unorm render targets not supported")
)

// Reducer is the GPU implementation of stereossim.Reducer.
//
// It owns a device (or borrows one from a gpucontext provider) and the
// objects shared by all passes. Sessions opened from a Reducer must be
// closed before the Reducer.
type Reducer struct {
	mu sync.Mutex

	instance       hal.Instance
	device         hal.Device
	queue          hal.Queue
	externalDevice bool
	info           gpucontext.AdapterInfo
	limits         gputypes.Limits

	shared *sharedObjects
	closed bool
}

var _ stereossim.Reducer = (*Reducer)(nil)

// New opens the Vulkan backend, selects an adapter (discrete, then
// integrated, then the first reported) and creates the shared objects.
func New() (*Reducer, error) {
	r := &Reducer{}
	if err := r.initGPU(); err != nil {
		r.destroyDevice()
		return nil, err
	}
	return r, nil
}

// NewWithDevice creates a reducer on an existing device and queue. The
// device is borrowed: Close does not destroy it.
func NewWithDevice(device hal.Device, queue hal.Queue, info gpucontext.AdapterInfo) (*Reducer, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: %w: nil device or queue", stereossim.ErrInvalidArgument)
	}
	r := &Reducer{
		device:         device,
		queue:          queue,
		externalDevice: true,
		info:           info,
		limits:         gputypes.DefaultLimits(),
	}
	shared, err := createSharedObjects(device, queue)
	if err != nil {
		return nil, fmt.Errorf("gpu: %w", err)
	}
	r.shared = shared
	return r, nil
}

func (r *Reducer) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}
	r.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	caps := selected.Adapter.TextureFormatCapabilities(targetFormat)
	if caps.Flags&hal.TextureFormatCapabilityRenderAttachment == 0 {
		return fmt.Errorf("%w on %s", ErrFormatUnsupported, selected.Info.Name)
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		return fmt.Errorf("gpu: open device: %w", err)
	}
	r.device = openDev.Device
	r.queue = openDev.Queue
	r.limits = limits
	r.info = adapterInfo(selected.Info)

	shared, err := createSharedObjects(r.device, r.queue)
	if err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	r.shared = shared
	slogger().Info("gpu: reducer initialized",
		"adapter", r.info.Name, "type", r.info.Type.String(), "backend", selected.Info.Backend.String())
	return nil
}

// selectAdapter prefers a discrete GPU, then an integrated one.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// adapterInfo converts hal adapter info to the gpucontext form.
func adapterInfo(info gputypes.AdapterInfo) gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Name, Type: t}
}

// SetDeviceProvider switches the reducer to a shared device from an
// external provider (e.g., gogpu). The provider must also implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func (r *Reducer) SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return stereossim.ErrClosed
	}

	// Destroy own resources before adopting the shared device
	r.destroyDevice()
	r.device = device
	r.queue = queue
	r.externalDevice = true
	r.info = provider.AdapterInfo()
	r.limits = gputypes.DefaultLimits()

	shared, err := createSharedObjects(device, queue)
	if err != nil {
		return fmt.Errorf("gpu: create shared objects with shared device: %w", err)
	}
	r.shared = shared
	slogger().Info("gpu: switched to shared GPU device", "adapter", r.info.Name)
	return nil
}

// Name returns stereossim.ReducerGPU.
func (r *Reducer) Name() string { return stereossim.ReducerGPU }

// AdapterInfo describes the device the reducer runs on.
func (r *Reducer) AdapterInfo() gpucontext.AdapterInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// SetLogger sets the logger for the GPU reducer. Called by
// stereossim.SetLogger.
func (r *Reducer) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Open uploads f's luma plane into an R8Unorm texture.
func (r *Reducer) Open(_ context.Context, f *stereossim.Frame, size int) (stereossim.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, stereossim.ErrClosed
	}
	if r.shared == nil {
		return nil, ErrNotInitialized
	}
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", stereossim.ErrInvalidArgument)
	}
	if !stereossim.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: target size %d is not a power of two > 1", stereossim.ErrInvalidArgument, size)
	}
	maxDim := int(r.limits.MaxTextureDimension2D)
	if size > maxDim || f.Width > maxDim || f.Height > maxDim {
		return nil, fmt.Errorf("%w: target %d or frame %dx%d exceeds texture limit %d",
			stereossim.ErrInvalidArgument, size, f.Width, f.Height, maxDim)
	}
	return openSession(r.device, r.queue, r.shared, f, uint32(size))
}

// Close destroys the shared objects and, unless borrowed, the device.
func (r *Reducer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.destroyDevice()
	return nil
}

// destroyDevice releases the shared objects and everything the reducer
// created itself. Borrowed devices are left alone.
func (r *Reducer) destroyDevice() {
	if r.shared != nil && r.device != nil {
		if err := r.device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle before release", "err", err)
		}
		r.shared.destroy(r.device)
	}
	r.shared = nil
	if !r.externalDevice && r.device != nil {
		r.device.Destroy()
	}
	r.device = nil
	r.queue = nil
	if r.instance != nil {
		r.instance.Destroy()
		r.instance = nil
	}
}

// NewWithProvider creates a reducer on the device of a gpucontext
// provider. See SetDeviceProvider.
func NewWithProvider(provider gpucontext.DeviceProvider) (*Reducer, error) {
	r := &Reducer{}
	if err := r.SetDeviceProvider(provider); err != nil {
		return nil, err
	}
	return r, nil
}
