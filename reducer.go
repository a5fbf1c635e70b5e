package stereossim

import "context"

// Constants are the uniform values of a reduction pass, normalized to [0, 1].
type Constants struct {
	// Mean[0] is the eye mean for ProgramVariance and the left mean for
	// ProgramCovariance. Mean[1] is the right mean for ProgramCovariance.
	Mean [2]float32
}

// LevelFunc receives one mip level of a reduction target, finest first.
// texels holds side*side 16-bit codes in row-major order and is only valid
// for the duration of the call.
type LevelFunc func(level, side int, texels []uint16) error

// Pass describes one reduction.
type Pass struct {
	Program   Program
	Quad      Quad
	Constants Constants

	// Inputs are the planes sampled by ProgramCovariance, left then right.
	// Other programs sample the session's source frame.
	Inputs [2]Plane

	// Retain keeps level 0 of the target alive after the pass. The
	// returned Reduction.Plane is then owned by the caller.
	Retain bool

	// Capture, when set, is called with every mip level of the target.
	Capture LevelFunc
}

// Plane is a retained level 0 of a reduction target: the S×S grid the
// pass rendered before mip generation.
type Plane interface {
	// Side returns the plane's width and height in texels.
	Side() int
	// Release frees the plane. It is safe to call more than once.
	Release()
}

// Reduction is the result of one pass.
type Reduction struct {
	// Value is the decoded coarsest texel: the mean of every level-0 value.
	Value float64
	// Plane is non-nil only when the pass set Retain.
	Plane Plane
}

// Session holds the uploaded source frame of one validation run. Passes
// run one at a time in call order; a Session is not safe for concurrent use.
type Session interface {
	// Reduce renders the pass into a fresh target of the session's size,
	// reduces it through its mip chain and returns the decoded result.
	// Every transient resource is released before Reduce returns, on
	// success and on failure.
	Reduce(ctx context.Context, p Pass) (Reduction, error)

	// Close releases the uploaded source.
	Close() error
}

// Reducer collapses an image statistic to one scalar through a mip chain.
//
// A Reducer owns the objects shared by all passes (compiled programs,
// sampler, index data). They are read-only after creation.
type Reducer interface {
	// Name identifies the reducer in the registry and in results.
	Name() string

	// Open uploads f and returns a session whose targets have the given
	// side. size must be a power of two greater than one.
	Open(ctx context.Context, f *Frame, size int) (Session, error)

	// Close releases the shared objects.
	Close() error
}

// IsPowerOfTwo reports whether n is a power of two greater than one, the
// precondition for a target side: repeated halving must end at 1×1 and
// the Bessel factor S²/(S²-1) must be finite.
func IsPowerOfTwo(n int) bool {
	return n > 1 && n&(n-1) == 0
}

// MipLevels returns log2(size)+1, the level count of a full chain.
func MipLevels(size int) int {
	n := 1
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}
