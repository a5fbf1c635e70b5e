//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stereossim"
)

// paramsSize is the size of the Params uniform in reduce.wgsl:
// window_a, window_b, mean, each a vec4<f32>.
const paramsSize = 48

// texelSize is the byte size of one R16Unorm texel.
const texelSize = 2

// clearColor initializes level 0 before the quad is drawn.
var clearColor = gputypes.Color{R: 1, G: 0, B: 0, A: 1}

// session holds the uploaded source of one validation run.
type session struct {
	device hal.Device
	queue  hal.Queue
	shared *sharedObjects
	src    *sourceTexture
	size   uint32

	// srcBound is set once the source has been transitioned for sampling.
	srcBound bool
	closed   bool
}

var _ stereossim.Session = (*session)(nil)

func openSession(device hal.Device, queue hal.Queue, shared *sharedObjects, f *stereossim.Frame, size uint32) (*session, error) {
	src, err := uploadSource(device, queue, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stereossim.ErrReductionFailed, err)
	}
	slogger().Debug("gpu: session opened", "width", f.Width, "height", f.Height, "size", size)
	return &session{device: device, queue: queue, shared: shared, src: src, size: size}, nil
}

// Close releases the source texture.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.src.destroy(s.device)
	return nil
}

// releaser runs cleanup functions in reverse registration order.
type releaser []func()

func (r *releaser) add(fn func()) { *r = append(*r, fn) }

// release runs the registered functions once, newest first. A deferred
// rel.release() also runs functions added after the defer.
func (r *releaser) release() {
	fns := *r
	*r = nil
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// passInputs are the two textures a reduce pipeline samples and their
// clamp windows.
type passInputs struct {
	a, b       hal.TextureView
	winA, winB [4]float32
}

func (s *session) inputs(p stereossim.Pass) (passInputs, error) {
	rect := p.Quad.Rect()
	switch p.Program {
	case stereossim.ProgramAverage, stereossim.ProgramVariance:
		win := clampWindow(rect, s.src.width, s.src.height)
		return passInputs{a: s.src.view, b: s.src.view, winA: win, winB: win}, nil
	case stereossim.ProgramCovariance:
		var planes [2]*gpuPlane
		for k, in := range p.Inputs {
			gp, ok := in.(*gpuPlane)
			if !ok || !gp.live() {
				return passInputs{}, fmt.Errorf("%w: covariance input %d is not a live GPU plane", stereossim.ErrInvalidArgument, k)
			}
			planes[k] = gp
		}
		side := uint32(planes[0].side) //nolint:gosec // plane sides are target sides
		return passInputs{
			a:    planes[0].view,
			b:    planes[1].view,
			winA: clampWindow(rect, side, side),
			winB: clampWindow(rect, uint32(planes[1].side), uint32(planes[1].side)), //nolint:gosec // as above
		}, nil
	}
	return passInputs{}, fmt.Errorf("%w: %s", stereossim.ErrInvalidArgument, p.Program)
}

// Reduce renders p into a fresh target, builds its mip chain and reads
// back the coarsest texel. Every object the pass creates is destroyed
// before Reduce returns, except a retained level 0.
func (s *session) Reduce(ctx context.Context, p stereossim.Pass) (stereossim.Reduction, error) {
	if s.closed {
		return stereossim.Reduction{}, stereossim.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return stereossim.Reduction{}, err
	}
	in, err := s.inputs(p)
	if err != nil {
		return stereossim.Reduction{}, err
	}

	var rel releaser
	defer rel.release()

	texels, target, err := s.run(p, in, &rel)
	if err != nil {
		return stereossim.Reduction{}, fmt.Errorf("%w: %s pass: %w", stereossim.ErrReductionFailed, p.Program, err)
	}

	if p.Capture != nil {
		for k, level := range texels {
			side := int(target.levelSide(k))
			if err := p.Capture(k, side, level); err != nil {
				return stereossim.Reduction{}, fmt.Errorf("%w: capture: %w", stereossim.ErrReductionFailed, err)
			}
		}
	}

	coarsest := texels[len(texels)-1]
	red := stereossim.Reduction{Value: p.Program.Decode(coarsest[0])}
	if p.Retain {
		red.Plane = target.detachPlane(s.device)
	}
	slogger().Debug("gpu: pass reduced",
		"program", p.Program.String(), "size", s.size, "levels", target.levels(), "value", red.Value)
	return red, nil
}

// run creates the pass resources, registers them with rel, records and
// submits the pass and returns the read-back levels. Only the coarsest
// level is read unless p.Capture is set.
func (s *session) run(p stereossim.Pass, in passInputs, rel *releaser) ([][]uint16, *reductionTarget, error) {
	device := s.device
	sh := s.shared

	target, err := createReductionTarget(device, s.size)
	if err != nil {
		return nil, nil, err
	}
	rel.add(func() { target.destroy(device) })

	uniform, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "reduce_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create params buffer: %w", err)
	}
	rel.add(func() { device.DestroyBuffer(uniform) })
	if err := s.queue.WriteBuffer(uniform, 0, packParams(in, p.Constants)); err != nil {
		return nil, nil, fmt.Errorf("upload params: %w", err)
	}

	vertices := p.Quad.Bytes()
	vertexBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "reduce_quad",
		Size:  uint64(len(vertices)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	rel.add(func() { device.DestroyBuffer(vertexBuf) })
	if err := s.queue.WriteBuffer(vertexBuf, 0, vertices); err != nil {
		return nil, nil, fmt.Errorf("upload vertex buffer: %w", err)
	}

	reduceGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "reduce_bind_group",
		Layout: sh.reduceBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: in.a.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: in.b.NativeHandle()}},
			{Binding: 3, Resource: gputypes.SamplerBinding{Sampler: sh.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create reduce bind group: %w", err)
	}
	rel.add(func() { device.DestroyBindGroup(reduceGroup) })

	// Level k reads level k-1.
	downGroups := make([]hal.BindGroup, target.levels())
	for k := 1; k < target.levels(); k++ {
		g, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("downsample_mip%d", k),
			Layout: sh.downsampleBindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: target.views[k-1].NativeHandle()}},
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create downsample bind group %d: %w", k, err)
		}
		rel.add(func() { device.DestroyBindGroup(g) })
		downGroups[k] = g
	}

	// Staging layout: one 256-aligned block per copied level.
	first := target.levels() - 1
	if p.Capture != nil {
		first = 0
	}
	offsets := make([]uint64, target.levels())
	var stagingSize uint64
	for k := first; k < target.levels(); k++ {
		side := target.levelSide(k)
		offsets[k] = stagingSize
		stagingSize += uint64(alignedPitch(side, texelSize)) * uint64(side)
	}
	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "reduce_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create staging buffer: %w", err)
	}
	rel.add(func() { device.DestroyBuffer(staging) })

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "reduce_encoder"})
	if err != nil {
		return nil, nil, fmt.Errorf("create command encoder: %w", err)
	}
	rel.add(encoder.Destroy)
	if err := encoder.BeginEncoding("reduce_" + p.Program.String()); err != nil {
		return nil, nil, fmt.Errorf("begin encoding: %w", err)
	}

	if !s.srcBound && p.Program != stereossim.ProgramCovariance {
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: s.src.tex,
			Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll, MipLevelCount: 1},
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopyDst,
				NewUsage: gputypes.TextureUsageTextureBinding,
			},
		}})
		s.srcBound = true
	}

	s.recordLevel(encoder, target, 0, sh.programs[p.Program], reduceGroup, vertexBuf)
	for k := 1; k < target.levels(); k++ {
		encoder.TransitionTextures([]hal.TextureBarrier{levelBarrier(target, k-1,
			gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding)})
		s.recordLevel(encoder, target, k, sh.downsample, downGroups[k], vertexBuf)
	}

	// The coarsest level is still an attachment; the others are bound.
	last := target.levels() - 1
	barriers := []hal.TextureBarrier{levelBarrier(target, last,
		gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageCopySrc)}
	for k := first; k < last; k++ {
		barriers = append(barriers, levelBarrier(target, k,
			gputypes.TextureUsageTextureBinding, gputypes.TextureUsageCopySrc))
	}
	encoder.TransitionTextures(barriers)

	regions := make([]hal.BufferTextureCopy, 0, target.levels()-first)
	for k := first; k < target.levels(); k++ {
		side := target.levelSide(k)
		regions = append(regions, hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       offsets[k],
				BytesPerRow:  alignedPitch(side, texelSize),
				RowsPerImage: side,
			},
			TextureBase: hal.ImageCopyTexture{Texture: target.tex, MipLevel: uint32(k)}, //nolint:gosec // k < levels
			Size:        hal.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1},
		})
	}
	encoder.CopyTextureToBuffer(target.tex, staging, regions)

	// A retained level 0 is sampled by later passes.
	if p.Retain && first == 0 {
		encoder.TransitionTextures([]hal.TextureBarrier{levelBarrier(target, 0,
			gputypes.TextureUsageCopySrc, gputypes.TextureUsageTextureBinding)})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	if _, err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return nil, nil, fmt.Errorf("submit: %w", err)
	}
	if err := device.WaitIdle(); err != nil {
		return nil, nil, fmt.Errorf("wait for GPU: %w", err)
	}

	texels, err := s.readLevels(staging, stagingSize, target, first, offsets)
	if err != nil {
		return nil, nil, err
	}
	return texels, target, nil
}

// recordLevel draws the quad into mip level k of target.
func (s *session) recordLevel(
	encoder hal.CommandEncoder,
	target *reductionTarget,
	k int,
	pipeline hal.RenderPipeline,
	group hal.BindGroup,
	vertexBuf hal.Buffer,
) {
	side := float32(target.levelSide(k))
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: fmt.Sprintf("reduce_mip%d", k),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.views[k],
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor,
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.SetVertexBuffer(0, vertexBuf, 0)
	rp.SetIndexBuffer(s.shared.indexBuf, gputypes.IndexFormatUint16, 0)
	rp.SetViewport(0, 0, side, side, 0, 1)
	rp.DrawIndexed(uint32(len(stereossim.QuadIndices)), 1, 0, 0, 0)
	rp.End()
}

func levelBarrier(target *reductionTarget, k int, from, to gputypes.TextureUsage) hal.TextureBarrier {
	return hal.TextureBarrier{
		Texture: target.tex,
		Range: hal.TextureRange{
			Aspect:        gputypes.TextureAspectAll,
			BaseMipLevel:  uint32(k), //nolint:gosec // k < levels
			MipLevelCount: 1,
		},
		Usage: hal.TextureUsageTransition{OldUsage: from, NewUsage: to},
	}
}

// readLevels maps the staging buffer and unpacks each copied level into
// a tight side*side slice. Levels before first are nil.
func (s *session) readLevels(staging hal.Buffer, size uint64, target *reductionTarget, first int, offsets []uint64) ([][]uint16, error) {
	mapping, err := s.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	defer func() {
		if err := s.device.UnmapBuffer(staging); err != nil {
			slogger().Warn("gpu: unmap staging buffer", "err", err)
		}
	}()
	raw := unsafe.Slice((*byte)(mapping.Ptr), size)

	levels := make([][]uint16, target.levels())
	for k := first; k < target.levels(); k++ {
		side := int(target.levelSide(k))
		pitch := int(alignedPitch(uint32(side), texelSize)) //nolint:gosec // side fits uint32
		texels := make([]uint16, side*side)
		for y := 0; y < side; y++ {
			row := raw[int(offsets[k])+y*pitch:]
			for x := 0; x < side; x++ {
				texels[y*side+x] = binary.LittleEndian.Uint16(row[x*texelSize:])
			}
		}
		levels[k] = texels
	}
	return levels, nil
}

// packParams lays out the Params uniform.
func packParams(in passInputs, c stereossim.Constants) []byte {
	vals := [12]float32{}
	copy(vals[0:4], in.winA[:])
	copy(vals[4:8], in.winB[:])
	vals[8], vals[9] = c.Mean[0], c.Mean[1]

	buf := make([]byte, paramsSize)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
