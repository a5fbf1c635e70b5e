package sample

import (
	"math"
	"testing"
)

func ramp(w, h int) Bytes {
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = byte(x * 10)
		}
	}
	return Bytes{W: w, H: h, Pix: pix}
}

func TestCellHitsTexelCenters(t *testing.T) {
	src := ramp(8, 4)
	s := New(src, Rect{U0: 0, V0: 0, U1: 1, V1: 1})
	for i := 0; i < 8; i++ {
		got := s.Cell(i, 0, 8)
		if want := float32(i*10) / 255; got != want {
			t.Errorf("Cell(%d) = %g, want %g", i, got, want)
		}
	}
}

func TestBilinearMidpoint(t *testing.T) {
	s := New(ramp(4, 1), Rect{U0: 0, V0: 0, U1: 1, V1: 1})
	// Halfway between texel 1 and 2 centers.
	got := s.UV(0.5, 0.5)
	if want := float32(15) / 255; math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("UV(0.5) = %g, want %g", got, want)
	}
}

func TestWindowKeepsTapsInside(t *testing.T) {
	const w = 8
	pix := make([]byte, w)
	for x := w / 2; x < w; x++ {
		pix[x] = 255
	}
	src := Bytes{W: w, H: 1, Pix: pix}

	left := New(src, Rect{U0: 0, V0: 0, U1: 0.5, V1: 1})
	right := New(src, Rect{U0: 0.5, V0: 0, U1: 1, V1: 1})
	for i := 0; i < 16; i++ {
		if v := left.Cell(i, 0, 16); v != 0 {
			t.Errorf("left cell %d = %g, want 0", i, v)
		}
		if v := right.Cell(i, 0, 16); v != 1 {
			t.Errorf("right cell %d = %g, want 1", i, v)
		}
	}
}

func TestUnorm16(t *testing.T) {
	u := Unorm16{W: 2, H: 1, Pix: []uint16{0, 65535}}
	if u.At(1, 0) != 1 || u.At(0, 0) != 0 {
		t.Errorf("At = %g, %g", u.At(0, 0), u.At(1, 0))
	}
}

func TestGrid(t *testing.T) {
	s := New(ramp(4, 4), Rect{U0: 0, V0: 0, U1: 1, V1: 1})
	dst := make([]float32, 16)
	Grid(dst, s, 4, 1, 3)
	if dst[0] != 0 || dst[15] != 0 {
		t.Error("Grid wrote outside its rows")
	}
	if dst[4+3] != float32(30)/255 {
		t.Errorf("row 1 col 3 = %g", dst[7])
	}
}
