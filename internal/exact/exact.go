// Package exact computes the moment set of a stereo frame in float64
// without fixed-point rounding. It resamples each eye onto the same S×S
// grid the reducers use and applies gonum's unbiased estimators, so its
// result is the value a reducer approximates.
package exact

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/gogpu/stereossim"
	"github.com/gogpu/stereossim/internal/sample"
)

// Grid resamples one eye of f onto a size×size grid.
func Grid(f *stereossim.Frame, layout stereossim.StereoLayout, eye stereossim.Eye, size int) ([]float64, error) {
	r, err := layout.EyeRect(eye)
	if err != nil {
		return nil, err
	}
	if _, err := f.EyeBounds(r); err != nil {
		return nil, err
	}
	s := sample.New(
		sample.Bytes{W: f.Width, H: f.Height, Pix: f.Luma},
		sample.Rect{U0: r.U0, V0: r.V0, U1: r.U1, V1: r.V1},
	)
	cells := make([]float32, size*size)
	sample.Grid(cells, s, size, 0, size)
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = float64(c) * stereossim.LumaRange
	}
	return out, nil
}

// Moments returns the reference moment set of f under layout on a
// size×size grid, on the 0-255 scale.
func Moments(f *stereossim.Frame, layout stereossim.StereoLayout, size int) (stereossim.MomentSet, error) {
	if !stereossim.IsPowerOfTwo(size) {
		return stereossim.MomentSet{}, fmt.Errorf("%w: size %d", stereossim.ErrInvalidArgument, size)
	}
	left, err := Grid(f, layout, stereossim.EyeLeft, size)
	if err != nil {
		return stereossim.MomentSet{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := Grid(f, layout, stereossim.EyeRight, size)
	if err != nil {
		return stereossim.MomentSet{}, fmt.Errorf("right eye: %w", err)
	}
	return FromGrids(left, right), nil
}

// FromGrids computes the moment set of two equally sized sample grids.
func FromGrids(left, right []float64) stereossim.MomentSet {
	meanL, stdL := stat.MeanStdDev(left, nil)
	meanR, stdR := stat.MeanStdDev(right, nil)
	return stereossim.MomentSet{
		MeanL:      meanL,
		MeanR:      meanR,
		StdL:       stdL,
		StdR:       stdR,
		Covariance: stat.Covariance(left, right, nil),
	}
}

// SSIM is a shorthand for Moments followed by MomentSet.SSIM.
func SSIM(f *stereossim.Frame, layout stereossim.StereoLayout, size int) (float64, error) {
	m, err := Moments(f, layout, size)
	if err != nil {
		return 0, err
	}
	return m.SSIM(), nil
}
