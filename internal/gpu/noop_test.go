//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens the noop backend's single adapter.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	t.Cleanup(instance.Destroy)
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("noop backend reports no adapter")
	}
	dev, err := adapters[0].Adapter.Open(0, adapters[0].Capabilities.Limits)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return dev.Device, dev.Queue
}

var noopInfo = gpucontext.AdapterInfo{Name: "Noop Adapter", Type: gpucontext.AdapterTypeSoftware}

// newNoopReducer returns a reducer on a counting wrapper around a noop
// device. Shared objects are created before it returns.
func newNoopReducer(t *testing.T) (*Reducer, *countingDevice) {
	t.Helper()
	device, queue := createNoopDevice(t)
	cd := newCountingDevice(device)
	r, err := NewWithDevice(cd, queue, noopInfo)
	if err != nil {
		t.Fatalf("NewWithDevice: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, cd
}

var errInjected = errors.New("injected failure")

// countingDevice tracks live objects per kind and can fail the n-th
// creation of one kind.
type countingDevice struct {
	hal.Device

	mu       sync.Mutex
	live     map[string]int
	failKind string
	failAt   int
	calls    int
}

func newCountingDevice(d hal.Device) *countingDevice {
	return &countingDevice{Device: d, live: make(map[string]int)}
}

// failNth arms a failure of the n-th creation of kind (1-based).
func (d *countingDevice) failNth(kind string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failKind, d.failAt, d.calls = kind, n, 0
}

func (d *countingDevice) disarm() { d.failNth("", 0) }

func (d *countingDevice) create(kind string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind == d.failKind {
		d.calls++
		if d.calls == d.failAt {
			return fmt.Errorf("%s #%d: %w", kind, d.calls, errInjected)
		}
	}
	d.live[kind]++
	return nil
}

func (d *countingDevice) count(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[kind]++
}

func (d *countingDevice) destroy(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[kind]--
}

// snapshot copies the live counts, dropping kinds at zero.
func (d *countingDevice) snapshot() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.live))
	for k, v := range d.live {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func (d *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := d.create("buffer"); err != nil {
		return nil, err
	}
	return d.Device.CreateBuffer(desc)
}

func (d *countingDevice) DestroyBuffer(b hal.Buffer) {
	d.destroy("buffer")
	d.Device.DestroyBuffer(b)
}

func (d *countingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if err := d.create("texture"); err != nil {
		return nil, err
	}
	return d.Device.CreateTexture(desc)
}

func (d *countingDevice) DestroyTexture(t hal.Texture) {
	d.destroy("texture")
	d.Device.DestroyTexture(t)
}

func (d *countingDevice) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if err := d.create("view"); err != nil {
		return nil, err
	}
	return d.Device.CreateTextureView(t, desc)
}

func (d *countingDevice) DestroyTextureView(v hal.TextureView) {
	d.destroy("view")
	d.Device.DestroyTextureView(v)
}

func (d *countingDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	if err := d.create("sampler"); err != nil {
		return nil, err
	}
	return d.Device.CreateSampler(desc)
}

func (d *countingDevice) DestroySampler(s hal.Sampler) {
	d.destroy("sampler")
	d.Device.DestroySampler(s)
}

func (d *countingDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	if err := d.create("bind_layout"); err != nil {
		return nil, err
	}
	return d.Device.CreateBindGroupLayout(desc)
}

func (d *countingDevice) DestroyBindGroupLayout(l hal.BindGroupLayout) {
	d.destroy("bind_layout")
	d.Device.DestroyBindGroupLayout(l)
}

func (d *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if err := d.create("bind_group"); err != nil {
		return nil, err
	}
	return d.Device.CreateBindGroup(desc)
}

func (d *countingDevice) DestroyBindGroup(g hal.BindGroup) {
	d.destroy("bind_group")
	d.Device.DestroyBindGroup(g)
}

func (d *countingDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	if err := d.create("pipe_layout"); err != nil {
		return nil, err
	}
	return d.Device.CreatePipelineLayout(desc)
}

func (d *countingDevice) DestroyPipelineLayout(l hal.PipelineLayout) {
	d.destroy("pipe_layout")
	d.Device.DestroyPipelineLayout(l)
}

func (d *countingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if err := d.create("shader"); err != nil {
		return nil, err
	}
	return d.Device.CreateShaderModule(desc)
}

func (d *countingDevice) DestroyShaderModule(m hal.ShaderModule) {
	d.destroy("shader")
	d.Device.DestroyShaderModule(m)
}

func (d *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if err := d.create("pipeline"); err != nil {
		return nil, err
	}
	return d.Device.CreateRenderPipeline(desc)
}

func (d *countingDevice) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.destroy("pipeline")
	d.Device.DestroyRenderPipeline(p)
}

func (d *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	if err := d.create("encoder"); err != nil {
		return nil, err
	}
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &countingEncoder{CommandEncoder: enc, device: d}, nil
}

func (d *countingDevice) FreeCommandBuffer(cb hal.CommandBuffer) {
	d.destroy("command_buffer")
	d.Device.FreeCommandBuffer(cb)
}

type countingEncoder struct {
	hal.CommandEncoder
	device *countingDevice
}

func (e *countingEncoder) EndEncoding() (hal.CommandBuffer, error) {
	cb, err := e.CommandEncoder.EndEncoding()
	if err == nil {
		e.device.count("command_buffer")
	}
	return cb, err
}

func (e *countingEncoder) Destroy() {
	e.device.destroy("encoder")
	e.CommandEncoder.Destroy()
}
