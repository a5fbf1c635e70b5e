package stereossim

import "errors"

// Sentinel errors returned by the validation pipeline.
var (
	// ErrInvalidArgument reports a logical error in the caller's input:
	// an unknown layout, a non-positive dimension or a bad target size.
	ErrInvalidArgument = errors.New("stereossim: invalid argument")

	// ErrOutOfBounds reports an eye rectangle that does not fit the frame.
	ErrOutOfBounds = errors.New("stereossim: eye region out of bounds")

	// ErrFrameSize reports a raw frame whose byte count does not match
	// the declared dimensions.
	ErrFrameSize = errors.New("stereossim: frame size mismatch")

	// ErrReductionFailed reports a failed reduction pass. No scalar
	// produced alongside it can be trusted.
	ErrReductionFailed = errors.New("stereossim: reduction failed")

	// ErrNoReducer is returned when no reducer is registered or every
	// registered factory failed.
	ErrNoReducer = errors.New("stereossim: no reducer available")

	// ErrUnknownReducer is returned for a reducer name that is not registered.
	ErrUnknownReducer = errors.New("stereossim: unknown reducer")

	// ErrClosed is returned when a closed reducer, session or validator is used.
	ErrClosed = errors.New("stereossim: use of closed reducer")
)
