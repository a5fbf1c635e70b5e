//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stereossim"
)

// programEntryPoints maps each program to its fragment entry point in
// reduce.wgsl.
var programEntryPoints = [...]string{
	stereossim.ProgramAverage:    "fs_average",
	stereossim.ProgramVariance:   "fs_variance",
	stereossim.ProgramCovariance: "fs_covariance",
}

// sharedObjects are created once per device and reused by every pass.
// They are read-only after creation.
type sharedObjects struct {
	reduceShader     hal.ShaderModule
	downsampleShader hal.ShaderModule

	// Binding 0: Params (uniform), 1: tex_a, 2: tex_b, 3: sampler.
	reduceBindLayout hal.BindGroupLayout
	// Binding 0: previous mip level.
	downsampleBindLayout hal.BindGroupLayout

	reducePipeLayout     hal.PipelineLayout
	downsamplePipeLayout hal.PipelineLayout

	programs   [len(programEntryPoints)]hal.RenderPipeline
	downsample hal.RenderPipeline

	sampler  hal.Sampler
	indexBuf hal.Buffer
}

// createSharedObjects builds the shared objects. On failure everything
// created so far is destroyed.
func createSharedObjects(device hal.Device, queue hal.Queue) (_ *sharedObjects, err error) {
	s := &sharedObjects{}
	defer func() {
		if err != nil {
			s.destroy(device)
		}
	}()

	if s.reduceShader, err = createShaderModule(device, "reduce", reduceShaderSource); err != nil {
		return nil, err
	}
	if s.downsampleShader, err = createShaderModule(device, "downsample", downsampleShaderSource); err != nil {
		return nil, err
	}

	s.reduceBindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "reduce_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create reduce bind group layout: %w", err)
	}

	s.downsampleBindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "downsample_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create downsample bind group layout: %w", err)
	}

	s.reducePipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "reduce_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.reduceBindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create reduce pipeline layout: %w", err)
	}
	s.downsamplePipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "downsample_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.downsampleBindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create downsample pipeline layout: %w", err)
	}

	for p, entry := range programEntryPoints {
		label := "reduce_" + stereossim.Program(p).String()
		s.programs[p], err = createTargetPipeline(device, label, s.reducePipeLayout, s.reduceShader, entry)
		if err != nil {
			return nil, err
		}
	}
	s.downsample, err = createTargetPipeline(device, "downsample", s.downsamplePipeLayout, s.downsampleShader, "fs_main")
	if err != nil {
		return nil, err
	}

	// Linear filtering, clamped at the texture edge. The shader clamps
	// taps to the eye rectangle on top of this.
	s.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "reduce_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("create reduce sampler: %w", err)
	}

	indices := stereossim.IndexBytes()
	s.indexBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "quad_indices",
		Size:  uint64(len(indices)),
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	if err := queue.WriteBuffer(s.indexBuf, 0, indices); err != nil {
		return nil, fmt.Errorf("upload index buffer: %w", err)
	}

	slogger().Debug("gpu: shared objects created", "pipelines", len(s.programs)+1)
	return s, nil
}

func createShaderModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	words, err := compileShader(label, source)
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", label, err)
	}
	return module, nil
}

// quadVertexLayout describes stereossim.Quad.Bytes: position xyz, uv.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: stereossim.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			},
		},
	}
}

// createTargetPipeline creates a pipeline that draws a quad into an
// R16Unorm attachment without blending.
func createTargetPipeline(device hal.Device, label string, layout hal.PipelineLayout, module hal.ShaderModule, entry string) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: entry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

// destroy releases the shared objects in reverse creation order.
// Nil fields are skipped, so a partially built set can be destroyed.
func (s *sharedObjects) destroy(device hal.Device) {
	if s.indexBuf != nil {
		device.DestroyBuffer(s.indexBuf)
		s.indexBuf = nil
	}
	if s.sampler != nil {
		device.DestroySampler(s.sampler)
		s.sampler = nil
	}
	if s.downsample != nil {
		device.DestroyRenderPipeline(s.downsample)
		s.downsample = nil
	}
	for i, p := range s.programs {
		if p != nil {
			device.DestroyRenderPipeline(p)
			s.programs[i] = nil
		}
	}
	if s.downsamplePipeLayout != nil {
		device.DestroyPipelineLayout(s.downsamplePipeLayout)
		s.downsamplePipeLayout = nil
	}
	if s.reducePipeLayout != nil {
		device.DestroyPipelineLayout(s.reducePipeLayout)
		s.reducePipeLayout = nil
	}
	if s.downsampleBindLayout != nil {
		device.DestroyBindGroupLayout(s.downsampleBindLayout)
		s.downsampleBindLayout = nil
	}
	if s.reduceBindLayout != nil {
		device.DestroyBindGroupLayout(s.reduceBindLayout)
		s.reduceBindLayout = nil
	}
	if s.downsampleShader != nil {
		device.DestroyShaderModule(s.downsampleShader)
		s.downsampleShader = nil
	}
	if s.reduceShader != nil {
		device.DestroyShaderModule(s.reduceShader)
		s.reduceShader = nil
	}
}
