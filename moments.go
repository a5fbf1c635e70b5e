package stereossim

import (
	"fmt"
	"math"
)

// SSIM constants on the 0-255 luma scale.
const (
	// LumaRange is the dynamic range L of 8-bit luma.
	LumaRange = 255.0
	// C1 stabilizes the luminance term: (0.01·L)².
	C1 = (0.01 * LumaRange) * (0.01 * LumaRange)
	// C2 stabilizes the contrast-structure term: (0.03·L)².
	C2 = (0.03 * LumaRange) * (0.03 * LumaRange)
	// DefaultThreshold is the SSIM at or above which a layout is confirmed.
	DefaultThreshold = 0.8
)

// MomentSet holds the global statistics of the two eyes, all on the 0-255
// luma scale. Covariance is in luma² units.
type MomentSet struct {
	MeanL, MeanR float64
	StdL, StdR   float64
	Covariance   float64
}

// SSIM combines the moments into the global structural similarity index:
//
//	((2·μL·μR + C1)(2·σLR + C2)) / ((μL² + μR² + C1)(σL² + σR² + C2))
func (m MomentSet) SSIM() float64 {
	num := (2*m.MeanL*m.MeanR + C1) * (2*m.Covariance + C2)
	den := (m.MeanL*m.MeanL + m.MeanR*m.MeanR + C1) * (m.StdL*m.StdL + m.StdR*m.StdR + C2)
	return num / den
}

// String formats the moments for logs.
func (m MomentSet) String() string {
	return fmt.Sprintf("mean=(%.3f, %.3f) std=(%.3f, %.3f) cov=%.3f",
		m.MeanL, m.MeanR, m.StdL, m.StdR, m.Covariance)
}

// BesselFactor returns S²/(S²-1), which turns the mean of squared
// deviations over an S×S grid into the unbiased sample estimator.
// size must be greater than one.
func BesselFactor(size int) float64 {
	n := float64(size) * float64(size)
	return n / (n - 1)
}

// momentsFromReductions rescales normalized reduction results to the
// 0-255 scale and applies the Bessel correction.
func momentsFromReductions(avgL, avgR, varL, varR, cov float64, size int) MomentSet {
	k := BesselFactor(size)
	return MomentSet{
		MeanL:      LumaRange * avgL,
		MeanR:      LumaRange * avgR,
		StdL:       LumaRange * math.Sqrt(math.Max(varL, 0)*k),
		StdR:       LumaRange * math.Sqrt(math.Max(varR, 0)*k),
		Covariance: LumaRange * LumaRange * cov * k,
	}
}
