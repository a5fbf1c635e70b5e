package stereossim

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
)

// Frame is the luma plane of one raw 4:2:0 frame. The chroma planes are
// read and discarded; SSIM uses brightness only.
//
// A Frame is immutable once loaded and may be shared by concurrent readers.
type Frame struct {
	Width  int
	Height int
	// Luma holds Width*Height bytes, row-major, top row first.
	Luma []byte
}

// NV12Size returns the byte size of a w×h NV12 frame: a full-resolution
// luma plane followed by an interleaved half-resolution chroma plane.
func NV12Size(w, h int) int {
	return w * h * 3 / 2
}

// NewFrame wraps an existing luma plane. luma must hold at least w*h bytes;
// extra bytes are ignored.
func NewFrame(w, h int, luma []byte) (*Frame, error) {
	if err := checkDims(w, h); err != nil {
		return nil, err
	}
	if len(luma) < w*h {
		return nil, fmt.Errorf("%w: luma plane has %d bytes, need %d", ErrFrameSize, len(luma), w*h)
	}
	return &Frame{Width: w, Height: h, Luma: luma[:w*h]}, nil
}

// ReadFrame reads exactly one w×h NV12 frame from r. Short input and
// trailing bytes are both ErrFrameSize.
func ReadFrame(r io.Reader, w, h int) (*Frame, error) {
	if err := checkDims(w, h); err != nil {
		return nil, err
	}
	luma := make([]byte, w*h)
	if _, err := io.ReadFull(r, luma); err != nil {
		return nil, frameReadError(err, w, h)
	}
	chroma := int64(NV12Size(w, h) - w*h)
	if _, err := io.CopyN(io.Discard, r, chroma); err != nil {
		return nil, frameReadError(err, w, h)
	}
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m != 0 {
		return nil, fmt.Errorf("%w: trailing data after %d bytes", ErrFrameSize, NV12Size(w, h))
	}
	return &Frame{Width: w, Height: h, Luma: luma}, nil
}

// LoadFrame reads a raw NV12 file. The file size must equal NV12Size(w, h).
func LoadFrame(path string, w, h int) (*Frame, error) {
	if err := checkDims(w, h); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat frame: %w", err)
	}
	if want := int64(NV12Size(w, h)); info.Size() != want {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d for %dx%d",
			ErrFrameSize, path, info.Size(), want, w, h)
	}
	return ReadFrame(bufio.NewReader(f), w, h)
}

// At returns the luma value at (x, y).
func (f *Frame) At(x, y int) byte {
	return f.Luma[y*f.Width+x]
}

// EyeBounds returns the pixel rectangle covered by r. It fails with
// ErrOutOfBounds when r leaves the unit square or covers less than one
// pixel in either direction.
func (f *Frame) EyeBounds(r Rect) (image.Rectangle, error) {
	if !r.Inside() || r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: rect %v", ErrOutOfBounds, r)
	}
	if float64(r.U1-r.U0)*float64(f.Width) < 1 || float64(r.V1-r.V0)*float64(f.Height) < 1 {
		return image.Rectangle{}, fmt.Errorf("%w: rect %v covers less than one pixel of %dx%d",
			ErrOutOfBounds, r, f.Width, f.Height)
	}
	px := image.Rect(
		int(math.Floor(float64(r.U0)*float64(f.Width))),
		int(math.Floor(float64(r.V0)*float64(f.Height))),
		int(math.Ceil(float64(r.U1)*float64(f.Width))),
		int(math.Ceil(float64(r.V1)*float64(f.Height))),
	)
	if px.Dx() < 1 || px.Dy() < 1 || !px.In(image.Rect(0, 0, f.Width, f.Height)) {
		return image.Rectangle{}, fmt.Errorf("%w: %v in %dx%d frame", ErrOutOfBounds, px, f.Width, f.Height)
	}
	return px, nil
}

func checkDims(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: frame dimensions %dx%d", ErrInvalidArgument, w, h)
	}
	return nil
}

func frameReadError(err error, w, h int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: input shorter than %d bytes for %dx%d", ErrFrameSize, NV12Size(w, h), w, h)
	}
	return fmt.Errorf("read frame: %w", err)
}
