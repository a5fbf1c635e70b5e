//go:build !nogpu

package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stereossim"
)

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// alignedPitch returns the padded row pitch of a texture row of width
// texels of bpp bytes each.
func alignedPitch(width, bpp uint32) uint32 {
	return (width*bpp + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// reductionTarget is an S×S R16Unorm texture with a full mip chain and
// one single-level view per mip.
type reductionTarget struct {
	tex   hal.Texture
	views []hal.TextureView
	side  uint32
}

func createReductionTarget(device hal.Device, side uint32) (_ *reductionTarget, err error) {
	levels := uint32(stereossim.MipLevels(int(side))) //nolint:gosec // side is a checked power of two
	t := &reductionTarget{side: side}
	defer func() {
		if err != nil {
			t.destroy(device)
		}
	}()

	t.tex, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "reduction_target",
		Size:          hal.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1},
		MipLevelCount: levels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create reduction target: %w", err)
	}

	t.views = make([]hal.TextureView, levels)
	for k := range t.views {
		t.views[k], err = device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("reduction_target_mip%d", k),
			Format:        targetFormat,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			BaseMipLevel:  uint32(k), //nolint:gosec // k < levels
			MipLevelCount: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("create reduction target view %d: %w", k, err)
		}
	}
	return t, nil
}

// levels returns the number of mip levels.
func (t *reductionTarget) levels() int { return len(t.views) }

// levelSide returns the side of mip level k.
func (t *reductionTarget) levelSide(k int) uint32 { return max(t.side>>k, 1) }

// detachPlane hands the texture and its level-0 view to a gpuPlane. The
// remaining views are still released by destroy.
func (t *reductionTarget) detachPlane(device hal.Device) *gpuPlane {
	p := &gpuPlane{device: device, tex: t.tex, view: t.views[0], side: int(t.side)}
	t.tex = nil
	t.views[0] = nil
	return p
}

func (t *reductionTarget) destroy(device hal.Device) {
	for k := len(t.views) - 1; k >= 0; k-- {
		if t.views[k] != nil {
			device.DestroyTextureView(t.views[k])
			t.views[k] = nil
		}
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// gpuPlane is a retained level 0 of a reduction target. It stays in
// TextureBinding usage so later covariance passes can sample it.
type gpuPlane struct {
	device hal.Device
	tex    hal.Texture
	view   hal.TextureView
	side   int
	once   sync.Once
}

var _ stereossim.Plane = (*gpuPlane)(nil)

func (p *gpuPlane) Side() int { return p.side }

func (p *gpuPlane) Release() {
	p.once.Do(func() {
		if p.view != nil {
			p.device.DestroyTextureView(p.view)
		}
		if p.tex != nil {
			p.device.DestroyTexture(p.tex)
		}
		p.view, p.tex = nil, nil
	})
}

// live reports whether the plane still holds its texture.
func (p *gpuPlane) live() bool { return p != nil && p.view != nil }

// sourceTexture is the frame's luma plane uploaded as R8Unorm.
type sourceTexture struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height uint32
}

func uploadSource(device hal.Device, queue hal.Queue, f *stereossim.Frame) (_ *sourceTexture, err error) {
	w, h := uint32(f.Width), uint32(f.Height) //nolint:gosec // frame dims checked against device limits
	s := &sourceTexture{width: w, height: h}
	defer func() {
		if err != nil {
			s.destroy(device)
		}
	}()

	s.tex, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "luma_source",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        sourceFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create source texture: %w", err)
	}
	s.view, err = device.CreateTextureView(s.tex, &hal.TextureViewDescriptor{
		Label:         "luma_source_view",
		Format:        sourceFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create source texture view: %w", err)
	}

	// Rows are padded to the copy pitch so every backend accepts the layout.
	pitch := alignedPitch(w, 1)
	data := f.Luma
	if pitch != w {
		data = make([]byte, int(pitch)*int(h))
		for y := 0; y < int(h); y++ {
			copy(data[y*int(pitch):], f.Luma[y*int(w):(y+1)*int(w)])
		}
	}
	err = queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return nil, fmt.Errorf("upload source texture: %w", err)
	}
	return s, nil
}

func (s *sourceTexture) destroy(device hal.Device) {
	if s.view != nil {
		device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		device.DestroyTexture(s.tex)
		s.tex = nil
	}
}

// clampWindow returns the uv clamp window of r on a w×h texture: the
// centers of r's edge texels. A window narrower than one texel collapses
// to its lower edge.
func clampWindow(r stereossim.Rect, w, h uint32) [4]float32 {
	u0, u1 := axisWindow(r.U0, r.U1, w)
	v0, v1 := axisWindow(r.V0, r.V1, h)
	return [4]float32{u0, v0, u1, v1}
}

func axisWindow(t0, t1 float32, n uint32) (float32, float32) {
	half := 0.5 / float32(n)
	lo := max(t0+half, half)
	hi := min(t1-half, 1-half)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
