package stereossim

import (
	"errors"
	"testing"
)

func TestMipChainLevels(t *testing.T) {
	const side = 16
	level0 := make([]uint16, side*side)
	for i := range level0 {
		level0[i] = uint16(i * 100)
	}
	m, err := NewMipChain(level0, side)
	if err != nil {
		t.Fatalf("NewMipChain: %v", err)
	}
	if m.Len() != MipLevels(side) || m.Len() != 5 {
		t.Fatalf("Len = %d, want 5", m.Len())
	}
	for k := 0; k < m.Len(); k++ {
		lvl, s := m.Level(k)
		if s != side>>k || len(lvl) != s*s {
			t.Errorf("level %d: side %d, %d texels", k, s, len(lvl))
		}
	}

	var sum uint64
	for _, v := range level0 {
		sum += uint64(v)
	}
	mean := float64(sum) / float64(len(level0))
	if got := float64(m.Coarsest()); got < mean-2 || got > mean+2 {
		t.Errorf("Coarsest = %g, want about %g", got, mean)
	}
}

func TestMipChainCheckerboard(t *testing.T) {
	for _, cell := range []int{1, 8} {
		const side = 64
		level0 := make([]uint16, side*side)
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				if (x/cell+y/cell)%2 == 1 {
					level0[y*side+x] = 65535
				}
			}
		}
		m, err := NewMipChain(level0, side)
		if err != nil {
			t.Fatal(err)
		}
		got := ProgramAverage.Decode(m.Coarsest())
		if got < 0.5-2.0/65535 || got > 0.5+2.0/65535 {
			t.Errorf("cell %d: mean = %g, want 0.5", cell, got)
		}
	}
}

func TestAverage4RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		sum  uint32
		want uint16
	}{
		{0, 0}, {4, 1}, {5, 1}, {6, 2}, {7, 2}, {10, 2}, {14, 4}, {4 * 65535, 65535},
	}
	for _, tt := range tests {
		if got := average4(tt.sum); got != tt.want {
			t.Errorf("average4(%d) = %d, want %d", tt.sum, got, tt.want)
		}
	}
}

func TestMipChainRejectsBadInput(t *testing.T) {
	if _, err := NewMipChain(make([]uint16, 9), 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("side 3 error = %v", err)
	}
	if _, err := NewMipChain(make([]uint16, 1), 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("side 1 error = %v", err)
	}
	if _, err := NewMipChain(make([]uint16, 15), 4); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("short level error = %v", err)
	}
}

func TestMipChainEachStops(t *testing.T) {
	m, err := NewMipChain(make([]uint16, 64), 8)
	if err != nil {
		t.Fatal(err)
	}
	stop := errors.New("stop")
	calls := 0
	err = m.Each(func(level, side int, texels []uint16) error {
		calls++
		if level == 1 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || calls != 2 {
		t.Errorf("Each: err=%v calls=%d", err, calls)
	}
}
