package stereossim

import "fmt"

// MipChain is the reduction tree of a square 16-bit target. Level k has
// side S/2^k and each texel is the rounded mean of a 2×2 block of level
// k-1, so the last level holds the mean of all of level 0.
type MipChain struct {
	levels [][]uint16
	side   int
}

// NewMipChain builds the full chain above level0, a side×side row-major
// grid. side must be a power of two greater than one. level0 is retained
// without copying.
func NewMipChain(level0 []uint16, side int) (*MipChain, error) {
	if !IsPowerOfTwo(side) {
		return nil, fmt.Errorf("%w: mip chain side %d is not a power of two > 1", ErrInvalidArgument, side)
	}
	if len(level0) != side*side {
		return nil, fmt.Errorf("%w: level 0 has %d texels, want %d", ErrInvalidArgument, len(level0), side*side)
	}
	m := &MipChain{side: side}
	m.levels = make([][]uint16, 0, MipLevels(side))
	m.levels = append(m.levels, level0)
	for s := side; s > 1; s >>= 1 {
		m.levels = append(m.levels, downsample(m.levels[len(m.levels)-1], s))
	}
	return m, nil
}

// downsample box-filters a s×s level into a (s/2)×(s/2) level.
func downsample(src []uint16, s int) []uint16 {
	half := s / 2
	dst := make([]uint16, half*half)
	for y := 0; y < half; y++ {
		r0 := src[2*y*s:]
		r1 := src[(2*y+1)*s:]
		for x := 0; x < half; x++ {
			sum := uint32(r0[2*x]) + uint32(r0[2*x+1]) + uint32(r1[2*x]) + uint32(r1[2*x+1])
			dst[y*half+x] = average4(sum)
		}
	}
	return dst
}

// average4 divides a sum of four texels by four, rounding half to even
// like a float-to-unorm conversion.
func average4(sum uint32) uint16 {
	q, r := sum>>2, sum&3
	if r > 2 || (r == 2 && q&1 == 1) {
		q++
	}
	return uint16(q)
}

// Len returns the number of levels.
func (m *MipChain) Len() int { return len(m.levels) }

// Side returns the side of level 0.
func (m *MipChain) Side() int { return m.side }

// Level returns level k and its side. The slice must not be modified.
func (m *MipChain) Level(k int) ([]uint16, int) {
	return m.levels[k], m.side >> k
}

// Coarsest returns the single texel of the 1×1 level.
func (m *MipChain) Coarsest() uint16 {
	return m.levels[len(m.levels)-1][0]
}

// Each calls fn for every level, finest first, and stops at the first error.
func (m *MipChain) Each(fn LevelFunc) error {
	for k, lvl := range m.levels {
		if err := fn(k, m.side>>k, lvl); err != nil {
			return err
		}
	}
	return nil
}
