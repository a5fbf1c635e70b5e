package stereossim

import (
	"math"
	"strconv"
)

// Program selects the per-pixel value a reduction pass writes to level 0
// of its target.
type Program uint8

const (
	// ProgramAverage writes the sampled luma in [0, 1].
	ProgramAverage Program = iota
	// ProgramVariance writes (luma - Mean[0])².
	ProgramVariance
	// ProgramCovariance samples the two input planes at the same position
	// and writes (l - Mean[0]) * (r - Mean[1]). The product is signed.
	ProgramCovariance
)

// String returns the program name.
func (p Program) String() string {
	switch p {
	case ProgramAverage:
		return "average"
	case ProgramVariance:
		return "variance"
	case ProgramCovariance:
		return "covariance"
	default:
		return "Program(" + strconv.Itoa(int(p)) + ")"
	}
}

// Signed reports whether the program's output may be negative.
func (p Program) Signed() bool { return p == ProgramCovariance }

// Unorm16 fixed-point constants.
const (
	unormMax = 65535
	// signedZero is the 16-bit code of 0 for signed programs.
	signedZero = 32768
	// signedScale maps [-1, 1] onto [1, 65535].
	signedScale = 32767
)

// Encode converts a program output to the 16-bit code stored in the
// target, rounding to nearest. Unsigned programs store x·65535. Signed
// programs store 32768 + x·32767 so that zero is represented exactly.
// Values outside the representable range saturate.
func (p Program) Encode(x float32) uint16 {
	var v float64
	if p.Signed() {
		v = signedZero + float64(x)*signedScale
	} else {
		v = float64(x) * unormMax
	}
	return uint16(math.RoundToEven(math.Max(0, math.Min(unormMax, v))))
}

// EncodeValue returns the normalized value a shader writes for x. It is
// the unorm16 input that Encode would quantize.
func (p Program) EncodeValue(x float32) float32 {
	if p.Signed() {
		return (signedZero + x*signedScale) / unormMax
	}
	return x
}

// Decode inverts Encode.
func (p Program) Decode(texel uint16) float64 {
	return p.DecodeNormalized(float64(texel) / unormMax)
}

// DecodeNormalized inverts EncodeValue for a texel already divided by 65535.
func (p Program) DecodeNormalized(v float64) float64 {
	if p.Signed() {
		return (v*unormMax - signedZero) / signedScale
	}
	return v
}
