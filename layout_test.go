package stereossim

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestLayoutFromCode(t *testing.T) {
	tests := []struct {
		code    int
		want    StereoLayout
		name    string
		wantErr bool
	}{
		{0, Mono, "2D", false},
		{1, SideBySide, "3D - SBS", false},
		{2, TopBottom, "3D - TB", false},
		{3, StereoLayout{}, "", true},
		{-1, StereoLayout{}, "", true},
	}
	for _, tt := range tests {
		got, err := LayoutFromCode(tt.code)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("LayoutFromCode(%d) error = %v, want ErrInvalidArgument", tt.code, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("LayoutFromCode(%d): %v", tt.code, err)
		}
		if got != tt.want || got.Name() != tt.name || got.Code() != tt.code {
			t.Errorf("LayoutFromCode(%d) = %v (code %d)", tt.code, got, got.Code())
		}
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]StereoLayout{
		"0":        Mono,
		"mono":     Mono,
		"2d":       Mono,
		" SBS ":    SideBySide,
		"3D - SBS": SideBySide,
		"tb":       TopBottom,
		"2":        TopBottom,
	} {
		got, err := ParseLayout(in)
		if err != nil {
			t.Errorf("ParseLayout(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLayout(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLayout("anaglyph"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseLayout(anaglyph) error = %v", err)
	}
}

func TestMapLayout(t *testing.T) {
	tests := []struct {
		layout      StereoLayout
		left, right Rect
	}{
		{Mono, FullRect, FullRect},
		{SideBySide, Rect{0, 0, 0.5, 1}, Rect{0.5, 0, 1, 1}},
		{TopBottom, Rect{0, 0, 1, 0.5}, Rect{0, 0.5, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.layout.ShortName(), func(t *testing.T) {
			for eye, want := range map[Eye]Rect{EyeLeft: tt.left, EyeRight: tt.right} {
				q, err := MapLayout(tt.layout, eye)
				if err != nil {
					t.Fatalf("MapLayout(%s): %v", eye, err)
				}
				if got := q.Rect(); got != want {
					t.Errorf("%s eye rect = %v, want %v", eye, got, want)
				}
			}
		})
	}
}

func TestMapLayoutInvalid(t *testing.T) {
	if _, err := MapLayout(StereoLayout{}, EyeLeft); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero layout error = %v", err)
	}
	if _, err := MapLayout(SideBySide, Eye(2)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad eye error = %v", err)
	}
}

func TestNewQuadVertexOrder(t *testing.T) {
	r := Rect{U0: 0.25, V0: 0.1, U1: 0.75, V1: 0.9}
	q := NewQuad(r)
	want := Quad{
		{Position: [3]float32{-1, -1, 0}, UV: [2]float32{0.25, 0.9}},
		{Position: [3]float32{-1, 1, 0}, UV: [2]float32{0.25, 0.1}},
		{Position: [3]float32{1, 1, 0}, UV: [2]float32{0.75, 0.1}},
		{Position: [3]float32{1, -1, 0}, UV: [2]float32{0.75, 0.9}},
	}
	if q != want {
		t.Errorf("NewQuad = %v, want %v", q, want)
	}
	if QuadIndices != [6]uint16{0, 1, 3, 3, 1, 2} {
		t.Errorf("QuadIndices = %v", QuadIndices)
	}
}

func TestQuadBytes(t *testing.T) {
	q := NewQuad(SideBySide.eyes[EyeRight])
	b := q.Bytes()
	if len(b) != 4*VertexStride {
		t.Fatalf("len = %d, want %d", len(b), 4*VertexStride)
	}
	// Vertex 2 uv is (1, 0).
	off := 2*VertexStride + 12
	u := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	v := math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:]))
	if u != 1 || v != 0 {
		t.Errorf("vertex 2 uv = (%g, %g), want (1, 0)", u, v)
	}

	idx := IndexBytes()
	if len(idx) != 12 || binary.LittleEndian.Uint16(idx[4:]) != 3 {
		t.Errorf("IndexBytes = %v", idx)
	}
}
