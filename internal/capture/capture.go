// Package capture dumps the mip chains of a validation run to disk for
// offline inspection.
//
// Each level becomes one file named
//
//	<dir>/<run-id>/<YYYYMMDD_hhmmss-mmm>_array<pass>_mip<level>.<ext>
//
// where the timestamp is the start of the run. Raw files (.y) hold the
// level's 16-bit codes in little-endian row-major order. TIFF files hold
// the same codes as a 16-bit grayscale image.
package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/tiff"

	"github.com/gogpu/stereossim"
)

// Format selects the on-disk encoding.
type Format string

// Supported formats.
const (
	FormatRaw  Format = "raw"
	FormatTIFF Format = "tiff"
)

// ParseFormat accepts "raw", "y", "tiff" or "tif".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "y":
		return FormatRaw, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("%w: capture format %q", stereossim.ErrInvalidArgument, s)
}

func (f Format) ext() string {
	if f == FormatTIFF {
		return ".tiff"
	}
	return ".y"
}

// Writer stores captured levels under a directory.
type Writer struct {
	dir    string
	format Format
	start  time.Time

	mu    sync.Mutex
	files []string
}

// NewWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewWriter(dir string, format Format) *Writer {
	return &Writer{dir: dir, format: format, start: time.Now()}
}

// Func returns the writer as a stereossim.CaptureFunc.
func (w *Writer) Func() stereossim.CaptureFunc {
	return w.Write
}

// Files returns the paths written so far.
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.files...)
}

// Path returns the file path for one level of one run.
func (w *Writer) Path(run uuid.UUID, pass, level int) string {
	name := fmt.Sprintf("%s-%03d_array%d_mip%d%s",
		w.start.Format("20060102_150405"), w.start.Nanosecond()/int(time.Millisecond),
		pass, level, w.format.ext())
	return filepath.Join(w.dir, run.String(), name)
}

// Write stores one level.
func (w *Writer) Write(c stereossim.LevelCapture) error {
	if len(c.Texels) != c.Side*c.Side {
		return fmt.Errorf("%w: level %d has %d texels for side %d",
			stereossim.ErrInvalidArgument, c.Level, len(c.Texels), c.Side)
	}
	path := w.Path(c.RunID, c.Pass, c.Level)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if w.format == FormatTIFF {
		err = tiff.Encode(bw, gray16(c.Texels, c.Side), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	} else {
		err = binary.Write(bw, binary.LittleEndian, c.Texels)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	w.mu.Lock()
	w.files = append(w.files, path)
	w.mu.Unlock()
	stereossim.Logger().Debug("capture: level written",
		"run", c.RunID, "pass", c.Pass, "program", c.Program, "eye", c.Eye, "level", c.Level, "path", path)
	return nil
}

// gray16 wraps 16-bit codes in an image.Gray16 (big-endian pixels).
func gray16(texels []uint16, side int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, side, side))
	for i, v := range texels {
		binary.BigEndian.PutUint16(img.Pix[2*i:], v)
	}
	return img
}

// ReadRaw loads a raw level written in FormatRaw.
func ReadRaw(path string) ([]uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %s has odd length %d", stereossim.ErrFrameSize, path, len(data))
	}
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return out, nil
}
