package stereossim

import "fmt"

// DefaultTargetSize is the side of every reduction target.
const DefaultTargetSize = 1024

// Option configures a Validator during creation.
//
// Example:
//
//	// Default reducer (GPU when registered and available, else CPU)
//	v, err := stereossim.NewValidator()
//
//	// Explicit reducer and a smaller target
//	v, err := stereossim.NewValidator(
//	    stereossim.WithReducer(stereossim.NewSoftwareReducer()),
//	    stereossim.WithTargetSize(256),
//	)
type Option func(*validatorOptions)

// validatorOptions holds optional configuration for Validator creation.
type validatorOptions struct {
	reducer   Reducer
	size      int
	threshold float64
	capture   CaptureFunc
}

// defaultOptions returns the default validator options.
func defaultOptions() validatorOptions {
	return validatorOptions{
		reducer:   nil, // Will be set to DefaultReducer() if nil
		size:      DefaultTargetSize,
		threshold: DefaultThreshold,
	}
}

func (o validatorOptions) check() error {
	if !IsPowerOfTwo(o.size) {
		return fmt.Errorf("%w: target size %d is not a power of two > 1", ErrInvalidArgument, o.size)
	}
	if o.threshold < -1 || o.threshold > 1 {
		return fmt.Errorf("%w: threshold %g outside [-1, 1]", ErrInvalidArgument, o.threshold)
	}
	return nil
}

// WithReducer sets the reducer. The validator takes ownership and closes
// it in Close.
func WithReducer(r Reducer) Option {
	return func(o *validatorOptions) {
		o.reducer = r
	}
}

// WithTargetSize sets the side of the reduction targets. It must be a
// power of two greater than one; NewValidator rejects other values.
func WithTargetSize(size int) Option {
	return func(o *validatorOptions) {
		o.size = size
	}
}

// WithThreshold sets the SSIM at or above which a result is high confidence.
func WithThreshold(t float64) Option {
	return func(o *validatorOptions) {
		o.threshold = t
	}
}

// WithCapture installs a callback that receives every mip level of every
// pass. It is meant for debugging and slows validation down considerably
// on the GPU reducer, which must then read back whole chains.
func WithCapture(fn CaptureFunc) Option {
	return func(o *validatorOptions) {
		o.capture = fn
	}
}
