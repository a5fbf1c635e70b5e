package stereossim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/stereossim/internal/sample"
)

// SoftwareReducer runs the mip-chain reduction on the CPU. Level 0 is
// rendered in parallel row bands; each level is then rounded to 16 bits
// exactly as an R16Unorm render target stores it, so results match the
// GPU reducer to within its rounding.
type SoftwareReducer struct {
	mu      sync.Mutex
	closed  bool
	workers int
	log     atomic.Pointer[slog.Logger]
}

// NewSoftwareReducer creates a CPU reducer using GOMAXPROCS workers.
func NewSoftwareReducer() *SoftwareReducer {
	r := &SoftwareReducer{workers: runtime.GOMAXPROCS(0)}
	r.log.Store(Logger())
	return r
}

// Name returns ReducerSoftware.
func (r *SoftwareReducer) Name() string { return ReducerSoftware }

// SetLogger sets the reducer's logger. Called by SetLogger.
func (r *SoftwareReducer) SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	r.log.Store(l)
}

// Open prepares a session over f. The frame is read in place.
func (r *SoftwareReducer) Open(_ context.Context, f *Frame, size int) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidArgument)
	}
	if !IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: target size %d is not a power of two > 1", ErrInvalidArgument, size)
	}
	return &softwareSession{
		src:     sample.Bytes{W: f.Width, H: f.Height, Pix: f.Luma},
		size:    size,
		workers: max(r.workers, 1),
		log:     r.log.Load(),
	}, nil
}

// Close marks the reducer closed. Open sessions stay usable.
func (r *SoftwareReducer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type softwareSession struct {
	src     sample.Bytes
	size    int
	workers int
	log     *slog.Logger
	closed  atomic.Bool
}

// softwarePlane is a retained level 0 held in memory.
type softwarePlane struct {
	texels []uint16
	side   int
}

func (p *softwarePlane) Side() int { return p.side }

func (p *softwarePlane) Release() { p.texels = nil }

func (s *softwareSession) Reduce(ctx context.Context, p Pass) (Reduction, error) {
	if s.closed.Load() {
		return Reduction{}, ErrClosed
	}
	shade, err := s.shader(p)
	if err != nil {
		return Reduction{}, err
	}

	level0 := make([]uint16, s.size*s.size)
	if err := s.render(ctx, level0, shade); err != nil {
		return Reduction{}, fmt.Errorf("%w: %s pass: %w", ErrReductionFailed, p.Program, err)
	}

	chain, err := NewMipChain(level0, s.size)
	if err != nil {
		return Reduction{}, fmt.Errorf("%w: %w", ErrReductionFailed, err)
	}
	if p.Capture != nil {
		if err := chain.Each(p.Capture); err != nil {
			return Reduction{}, fmt.Errorf("%w: capture: %w", ErrReductionFailed, err)
		}
	}

	red := Reduction{Value: p.Program.Decode(chain.Coarsest())}
	if p.Retain {
		red.Plane = &softwarePlane{texels: level0, side: s.size}
	}
	s.log.Debug("software: pass reduced",
		"program", p.Program, "size", s.size, "levels", chain.Len(), "value", red.Value)
	return red, nil
}

// shader returns the per-pixel function of the pass: it maps a target
// pixel to its 16-bit code.
func (s *softwareSession) shader(p Pass) (func(i, j int) uint16, error) {
	q := p.Quad.Rect()
	rect := sample.Rect{U0: q.U0, V0: q.V0, U1: q.U1, V1: q.V1}
	size := s.size

	switch p.Program {
	case ProgramAverage:
		src := sample.New(s.src, rect)
		return func(i, j int) uint16 {
			return p.Program.Encode(src.Cell(i, j, size))
		}, nil

	case ProgramVariance:
		src := sample.New(s.src, rect)
		mean := p.Constants.Mean[0]
		return func(i, j int) uint16 {
			d := src.Cell(i, j, size) - mean
			return p.Program.Encode(d * d)
		}, nil

	case ProgramCovariance:
		var planes [2]sample.Sampler
		for k, in := range p.Inputs {
			sp, ok := in.(*softwarePlane)
			if !ok || sp == nil || sp.texels == nil {
				return nil, fmt.Errorf("%w: covariance input %d is not a live software plane", ErrInvalidArgument, k)
			}
			planes[k] = sample.New(sample.Unorm16{W: sp.side, H: sp.side, Pix: sp.texels}, rect)
		}
		ml, mr := p.Constants.Mean[0], p.Constants.Mean[1]
		return func(i, j int) uint16 {
			l := planes[0].Cell(i, j, size) - ml
			r := planes[1].Cell(i, j, size) - mr
			return p.Program.Encode(l * r)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, p.Program)
}

// render fills level0 in row bands, one band per worker.
func (s *softwareSession) render(ctx context.Context, level0 []uint16, shade func(i, j int) uint16) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	band := max(s.size/s.workers, 1)
	for row0 := 0; row0 < s.size; row0 += band {
		row1 := min(row0+band, s.size)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := row0; j < row1; j++ {
				line := level0[j*s.size : (j+1)*s.size]
				for i := range line {
					line[i] = shade(i, j)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *softwareSession) Close() error {
	s.closed.Store(true)
	return nil
}
