// Package sample resamples a single-channel plane onto a square grid with
// bilinear filtering, the way a linear clamp-to-edge sampler does on the
// GPU, with an extra clamp that keeps every tap inside one eye rectangle.
package sample

import "math"

// Source is a single-channel image read as normalized values.
type Source interface {
	Size() (w, h int)
	At(x, y int) float32
}

// Bytes is an 8-bit unorm plane.
type Bytes struct {
	W, H int
	Pix  []byte
}

// Size returns the plane dimensions.
func (b Bytes) Size() (int, int) { return b.W, b.H }

// At returns the texel at (x, y) divided by 255.
func (b Bytes) At(x, y int) float32 { return float32(b.Pix[y*b.W+x]) / 255 }

// Unorm16 is a 16-bit unorm plane.
type Unorm16 struct {
	W, H int
	Pix  []uint16
}

// Size returns the plane dimensions.
func (u Unorm16) Size() (int, int) { return u.W, u.H }

// At returns the texel at (x, y) divided by 65535.
func (u Unorm16) At(x, y int) float32 { return float32(u.Pix[y*u.W+x]) / 65535 }

// Rect is a rectangle in normalized texture coordinates.
type Rect struct {
	U0, V0, U1, V1 float32
}

// Sampler reads a Source through a Rect.
type Sampler struct {
	src        Source
	rect       Rect
	w, h       int
	minX, maxX float32
	minY, maxY float32
}

// New returns a sampler over src restricted to r. Taps are clamped to the
// centers of the edge texels of r, so no texel outside r contributes.
func New(src Source, r Rect) Sampler {
	w, h := src.Size()
	s := Sampler{src: src, rect: r, w: w, h: h}
	s.minX, s.maxX = window(r.U0, r.U1, w)
	s.minY, s.maxY = window(r.V0, r.V1, h)
	return s
}

// window returns the clamp range, in texel-center space, of the span
// [t0, t1] of an axis n texels long.
func window(t0, t1 float32, n int) (float32, float32) {
	lo := t0 * float32(n)
	hi := t1*float32(n) - 1
	lo = max(lo, 0)
	hi = min(hi, float32(n-1))
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Cell returns the sample for pixel (i, j) of a size×size grid laid over
// the sampler's rect. Pixel centers sit at (i+0.5)/size.
func (s Sampler) Cell(i, j, size int) float32 {
	fs := float32(size)
	u := s.rect.U0 + (s.rect.U1-s.rect.U0)*(float32(i)+0.5)/fs
	v := s.rect.V0 + (s.rect.V1-s.rect.V0)*(float32(j)+0.5)/fs
	return s.UV(u, v)
}

// UV returns the bilinear sample at texture coordinate (u, v).
func (s Sampler) UV(u, v float32) float32 {
	tx := min(max(u*float32(s.w)-0.5, s.minX), s.maxX)
	ty := min(max(v*float32(s.h)-0.5, s.minY), s.maxY)

	fx0 := float32(math.Floor(float64(tx)))
	fy0 := float32(math.Floor(float64(ty)))
	ax := tx - fx0
	ay := ty - fy0

	x0, y0 := int(fx0), int(fy0)
	x1 := min(x0+1, s.w-1)
	y1 := min(y0+1, s.h-1)

	top := lerp(s.src.At(x0, y0), s.src.At(x1, y0), ax)
	bottom := lerp(s.src.At(x0, y1), s.src.At(x1, y1), ax)
	return lerp(top, bottom, ay)
}

func lerp(a, b, t float32) float32 {
	if t == 0 {
		return a
	}
	return a + (b-a)*t
}

// Grid fills dst (size*size values, row-major) with the samples of s over
// rows [row0, row1).
func Grid(dst []float32, s Sampler, size, row0, row1 int) {
	for j := row0; j < row1; j++ {
		line := dst[j*size : (j+1)*size]
		for i := range line {
			line[i] = s.Cell(i, j, size)
		}
	}
}
