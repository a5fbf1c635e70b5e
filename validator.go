package stereossim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LevelCapture is one mip level handed to a CaptureFunc.
type LevelCapture struct {
	RunID   uuid.UUID
	Pass    int
	Program Program
	// Eye is "left", "right", or "pair" for the covariance pass.
	Eye    string
	Level  int
	Side   int
	Texels []uint16
}

// CaptureFunc receives mip levels while a validation runs.
type CaptureFunc func(LevelCapture) error

// Result is the outcome of one validation.
type Result struct {
	RunID   uuid.UUID
	Layout  StereoLayout
	Moments MomentSet
	SSIM    float64
	// HighConfidence reports SSIM >= the validator's threshold.
	HighConfidence bool
	Elapsed        time.Duration
	Reducer        string
}

// Verdict returns "PASS" for a high-confidence result and "FAIL" otherwise.
func (r Result) Verdict() string {
	if r.HighConfidence {
		return "PASS"
	}
	return "FAIL"
}

// Validator measures the SSIM between the eyes of stereo frames.
// Validations run one at a time; concurrent calls are serialized.
type Validator struct {
	mu        sync.Mutex
	reducer   Reducer
	size      int
	threshold float64
	capture   CaptureFunc
	closed    bool
}

// NewValidator creates a validator. Without WithReducer it uses
// DefaultReducer.
func NewValidator(opts ...Option) (*Validator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.check(); err != nil {
		return nil, err
	}
	if o.reducer == nil {
		r, err := DefaultReducer()
		if err != nil {
			return nil, err
		}
		o.reducer = r
	} else {
		propagateLogger(o.reducer, Logger())
	}
	return &Validator{
		reducer:   o.reducer,
		size:      o.size,
		threshold: o.threshold,
		capture:   o.capture,
	}, nil
}

// Reducer returns the name of the validator's reducer.
func (v *Validator) Reducer() string { return v.reducer.Name() }

// TargetSize returns the side of the reduction targets.
func (v *Validator) TargetSize() int { return v.size }

// Close closes the reducer.
func (v *Validator) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	forgetReducer(v.reducer)
	return v.reducer.Close()
}

// Validate measures the global SSIM between the two eyes of f under
// layout and compares it to the threshold.
func (v *Validator) Validate(ctx context.Context, f *Frame, layout StereoLayout) (Result, error) {
	start := time.Now()
	id := uuid.New()
	m, err := v.moments(ctx, f, layout, id)
	if err != nil {
		return Result{}, err
	}
	ssim := m.SSIM()
	res := Result{
		RunID:          id,
		Layout:         layout,
		Moments:        m,
		SSIM:           ssim,
		HighConfidence: ssim >= v.threshold,
		Elapsed:        time.Since(start),
		Reducer:        v.reducer.Name(),
	}
	Logger().Info("stereo layout validated",
		"run", id, "layout", layout.Name(), "ssim", ssim,
		"verdict", res.Verdict(), "elapsed", res.Elapsed, "reducer", res.Reducer)
	return res, nil
}

// Moments computes the moment set of f under layout without the SSIM step.
func (v *Validator) Moments(ctx context.Context, f *Frame, layout StereoLayout) (MomentSet, error) {
	return v.moments(ctx, f, layout, uuid.New())
}

func (v *Validator) moments(ctx context.Context, f *Frame, layout StereoLayout, id uuid.UUID) (MomentSet, error) {
	// Logical checks come first: nothing is allocated for a bad layout
	// or an eye that does not fit the frame.
	if f == nil {
		return MomentSet{}, fmt.Errorf("%w: nil frame", ErrInvalidArgument)
	}
	var quads [2]Quad
	for _, eye := range []Eye{EyeLeft, EyeRight} {
		q, err := MapLayout(layout, eye)
		if err != nil {
			return MomentSet{}, err
		}
		if _, err := f.EyeBounds(q.Rect()); err != nil {
			return MomentSet{}, fmt.Errorf("%s eye: %w", eye, err)
		}
		quads[eye] = q
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return MomentSet{}, ErrClosed
	}

	sess, err := v.reducer.Open(ctx, f, v.size)
	if err != nil {
		return MomentSet{}, reductionError(err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			Logger().Warn("close reduction session", "err", cerr)
		}
	}()

	run := &passRunner{sess: sess, capture: v.capture, id: id}

	var avg, variance [2]float64
	var planes [2]Plane
	defer func() {
		for _, p := range planes {
			if p != nil {
				p.Release()
			}
		}
	}()
	for _, eye := range []Eye{EyeLeft, EyeRight} {
		red, err := run.reduce(ctx, eye.String(), Pass{
			Program: ProgramAverage,
			Quad:    quads[eye],
			Retain:  true,
		})
		if err != nil {
			return MomentSet{}, err
		}
		avg[eye], planes[eye] = red.Value, red.Plane

		red, err = run.reduce(ctx, eye.String(), Pass{
			Program:   ProgramVariance,
			Quad:      quads[eye],
			Constants: Constants{Mean: [2]float32{float32(avg[eye])}},
		})
		if err != nil {
			return MomentSet{}, err
		}
		variance[eye] = red.Value
	}

	red, err := run.reduce(ctx, "pair", Pass{
		Program:   ProgramCovariance,
		Quad:      FullQuad,
		Constants: Constants{Mean: [2]float32{float32(avg[EyeLeft]), float32(avg[EyeRight])}},
		Inputs:    planes,
	})
	if err != nil {
		return MomentSet{}, err
	}

	m := momentsFromReductions(avg[EyeLeft], avg[EyeRight], variance[EyeLeft], variance[EyeRight], red.Value, v.size)
	Logger().Debug("moments computed", "run", id, "layout", layout.Name(), "moments", m.String())
	return m, nil
}

// passRunner numbers passes and routes their mip levels to the capture hook.
type passRunner struct {
	sess    Session
	capture CaptureFunc
	id      uuid.UUID
	n       int
}

func (r *passRunner) reduce(ctx context.Context, eye string, p Pass) (Reduction, error) {
	idx := r.n
	r.n++
	if r.capture != nil {
		p.Capture = func(level, side int, texels []uint16) error {
			return r.capture(LevelCapture{
				RunID: r.id, Pass: idx, Program: p.Program, Eye: eye,
				Level: level, Side: side, Texels: texels,
			})
		}
	}
	red, err := r.sess.Reduce(ctx, p)
	if err != nil {
		if red.Plane != nil {
			red.Plane.Release()
		}
		return Reduction{}, reductionError(err)
	}
	Logger().Debug("pass reduced", "run", r.id, "pass", idx, "program", p.Program, "eye", eye, "value", red.Value)
	return red, nil
}

// reductionError marks err as a reduction failure unless it already is
// one or is a logical error.
func reductionError(err error) error {
	if errors.Is(err, ErrReductionFailed) || errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrReductionFailed, err)
}

// ComputeSSIM validates f with a default validator and returns the SSIM
// and whether it reaches DefaultThreshold.
func ComputeSSIM(ctx context.Context, f *Frame, layout StereoLayout) (float64, bool, error) {
	if !layout.Valid() {
		return 0, false, fmt.Errorf("%w: invalid stereo layout", ErrInvalidArgument)
	}
	v, err := NewValidator()
	if err != nil {
		return 0, false, err
	}
	defer v.Close()
	res, err := v.Validate(ctx, f, layout)
	if err != nil {
		return 0, false, err
	}
	return res.SSIM, res.HighConfidence, nil
}
