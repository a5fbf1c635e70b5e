package stereossim

import (
	"fmt"
	"strconv"
	"strings"
)

// Eye selects one of the two views packed in a stereo frame.
type Eye uint8

const (
	// EyeLeft is the left view, or the top view of a top-bottom frame.
	EyeLeft Eye = iota
	// EyeRight is the right view, or the bottom view of a top-bottom frame.
	EyeRight
)

// String returns "left" or "right".
func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return "Eye(" + strconv.Itoa(int(e)) + ")"
	}
}

// Rect is an axis-aligned rectangle in normalized texture coordinates.
// U grows to the right and V grows downward.
type Rect struct {
	U0, V0, U1, V1 float32
}

// FullRect covers the whole source image.
var FullRect = Rect{U0: 0, V0: 0, U1: 1, V1: 1}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.U0 >= r.U1 || r.V0 >= r.V1
}

// Inside reports whether r lies within the unit square.
func (r Rect) Inside() bool {
	return r.U0 >= 0 && r.V0 >= 0 && r.U1 <= 1 && r.V1 <= 1
}

// String formats r as "(u0,v0)-(u1,v1)".
func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", r.U0, r.V0, r.U1, r.V1)
}

// StereoLayout is the packing convention of a stereo frame. Each value
// carries its numeric code, its display name and the rectangle sampled for
// each eye, so the name and the geometry can never disagree.
//
// The zero StereoLayout is invalid.
type StereoLayout struct {
	code  int
	name  string
	short string
	eyes  [2]Rect
}

// Predefined layouts. Their codes are the values accepted on the command line.
var (
	// Mono is 2D content: both eyes sample the full frame.
	Mono = StereoLayout{
		code: 0, name: "2D", short: "mono",
		eyes: [2]Rect{FullRect, FullRect},
	}

	// SideBySide packs the left eye in the left half and the right eye in
	// the right half.
	SideBySide = StereoLayout{
		code: 1, name: "3D - SBS", short: "sbs",
		eyes: [2]Rect{
			{U0: 0, V0: 0, U1: 0.5, V1: 1},
			{U0: 0.5, V0: 0, U1: 1, V1: 1},
		},
	}

	// TopBottom packs the left eye in the top half and the right eye in
	// the bottom half.
	TopBottom = StereoLayout{
		code: 2, name: "3D - TB", short: "tb",
		eyes: [2]Rect{
			{U0: 0, V0: 0, U1: 1, V1: 0.5},
			{U0: 0, V0: 0.5, U1: 1, V1: 1},
		},
	}
)

// Layouts returns the predefined layouts in code order.
func Layouts() []StereoLayout {
	return []StereoLayout{Mono, SideBySide, TopBottom}
}

// LayoutFromCode returns the layout with the given numeric code.
func LayoutFromCode(code int) (StereoLayout, error) {
	for _, l := range Layouts() {
		if l.code == code {
			return l, nil
		}
	}
	return StereoLayout{}, fmt.Errorf("%w: layout code %d", ErrInvalidArgument, code)
}

// ParseLayout accepts a numeric code, a display name such as "3D - SBS",
// or one of the short names "mono", "sbs" and "tb". Matching ignores case.
func ParseLayout(s string) (StereoLayout, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		return LayoutFromCode(code)
	}
	for _, l := range Layouts() {
		if strings.EqualFold(s, l.name) || strings.EqualFold(s, l.short) {
			return l, nil
		}
	}
	return StereoLayout{}, fmt.Errorf("%w: layout %q", ErrInvalidArgument, s)
}

// Code returns the numeric layout code.
func (l StereoLayout) Code() int { return l.code }

// Name returns the display name, for example "3D - SBS".
func (l StereoLayout) Name() string { return l.name }

// ShortName returns the lower-case short name, for example "sbs".
func (l StereoLayout) ShortName() string { return l.short }

// Valid reports whether l is one of the predefined layouts.
func (l StereoLayout) Valid() bool { return l.name != "" }

// String returns the display name.
func (l StereoLayout) String() string {
	if !l.Valid() {
		return "invalid"
	}
	return l.name
}

// EyeRect returns the texture-coordinate rectangle sampled for the eye.
func (l StereoLayout) EyeRect(eye Eye) (Rect, error) {
	if !l.Valid() {
		return Rect{}, fmt.Errorf("%w: invalid stereo layout", ErrInvalidArgument)
	}
	if eye != EyeLeft && eye != EyeRight {
		return Rect{}, fmt.Errorf("%w: %s", ErrInvalidArgument, eye)
	}
	return l.eyes[eye], nil
}

// MapLayout returns the quad that samples the given eye of a frame packed
// with the layout. It allocates nothing and fails only with
// ErrInvalidArgument.
func MapLayout(l StereoLayout, eye Eye) (Quad, error) {
	r, err := l.EyeRect(eye)
	if err != nil {
		return Quad{}, err
	}
	return NewQuad(r), nil
}
