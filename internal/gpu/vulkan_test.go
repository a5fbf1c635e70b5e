//go:build !nogpu

package gpu

import (
	"context"
	"math"
	"testing"

	"github.com/gogpu/stereossim"
)

// newVulkanReducer skips the test when no Vulkan device is usable.
func newVulkanReducer(t *testing.T) *Reducer {
	t.Helper()
	if testing.Short() {
		t.Skip("GPU test skipped in short mode")
	}
	r, err := New()
	if err != nil {
		t.Skipf("no Vulkan device: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func checkerFrame(w, h, cell int) *stereossim.Frame {
	luma := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				luma[y*w+x] = 255
			}
		}
	}
	return &stereossim.Frame{Width: w, Height: h, Luma: luma}
}

func TestVulkanMatchesSoftware(t *testing.T) {
	r := newVulkanReducer(t)
	f := checkerFrame(256, 128, 4)
	ctx := context.Background()

	gpuV, err := stereossim.NewValidator(stereossim.WithReducer(r), stereossim.WithTargetSize(128))
	if err != nil {
		t.Fatal(err)
	}
	swV, err := stereossim.NewValidator(stereossim.WithReducer(stereossim.NewSoftwareReducer()), stereossim.WithTargetSize(128))
	if err != nil {
		t.Fatal(err)
	}
	defer swV.Close()

	for _, layout := range stereossim.Layouts() {
		got, err := gpuV.Moments(ctx, f, layout)
		if err != nil {
			t.Fatalf("%s: %v", layout, err)
		}
		want, err := swV.Moments(ctx, f, layout)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got.MeanL-want.MeanL) > 0.05 || math.Abs(got.MeanR-want.MeanR) > 0.05 {
			t.Errorf("%s: gpu %s, software %s", layout, got, want)
		}
		if math.Abs(got.SSIM()-want.SSIM()) > 1e-3 {
			t.Errorf("%s: SSIM gpu %g, software %g", layout, got.SSIM(), want.SSIM())
		}
	}
}

// grayHalves is a 128×64 side-by-side frame with flat left and right eyes.
func grayHalves(left, right byte) *stereossim.Frame {
	const w, h = 128, 64
	luma := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				luma[y*w+x] = left
			} else {
				luma[y*w+x] = right
			}
		}
	}
	return &stereossim.Frame{Width: w, Height: h, Luma: luma}
}

func TestVulkanSideBySideGrayHalves(t *testing.T) {
	r := newVulkanReducer(t)
	v, err := stereossim.NewValidator(stereossim.WithReducer(r), stereossim.WithTargetSize(64))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	ctx := context.Background()

	same, err := v.Validate(ctx, grayHalves(90, 90), stereossim.SideBySide)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same.SSIM-1) > 1e-3 || !same.HighConfidence {
		t.Errorf("equal halves: SSIM %g, verdict %s", same.SSIM, same.Verdict())
	}
	if math.Abs(same.Moments.MeanL-90) > 0.05 || same.Moments.StdL > 0.5 {
		t.Errorf("equal halves moments %s", same.Moments)
	}

	apart, err := v.Validate(ctx, grayHalves(40, 200), stereossim.SideBySide)
	if err != nil {
		t.Fatal(err)
	}
	if apart.HighConfidence {
		t.Errorf("40/200 halves passed with SSIM %g", apart.SSIM)
	}
}

func TestVulkanCheckerboardMean(t *testing.T) {
	r := newVulkanReducer(t)
	v, err := stereossim.NewValidator(stereossim.WithReducer(r), stereossim.WithTargetSize(64))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	m, err := v.Moments(context.Background(), checkerFrame(128, 64, 1), stereossim.SideBySide)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.MeanL-127.5) > 0.05 || math.Abs(m.MeanR-127.5) > 0.05 {
		t.Errorf("checkerboard means %g/%g, want 127.5", m.MeanL, m.MeanR)
	}
}
