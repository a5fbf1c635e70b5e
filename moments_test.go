package stereossim

import (
	"math"
	"testing"
)

func TestMomentSetSSIM(t *testing.T) {
	tests := []struct {
		name string
		m    MomentSet
		want float64
	}{
		{"identical flat", MomentSet{MeanL: 100, MeanR: 100}, 1},
		{"identical textured", MomentSet{MeanL: 120, MeanR: 120, StdL: 30, StdR: 30, Covariance: 900}, 1},
		{"uncorrelated", MomentSet{MeanL: 128, MeanR: 128, StdL: 0, StdR: 74}, C2 / (74*74 + C2)},
		{"anticorrelated", MomentSet{MeanL: 128, MeanR: 128, StdL: 30, StdR: 30, Covariance: -900}, (-1800 + C2) / (1800 + C2)},
	}
	for _, tt := range tests {
		if got := tt.m.SSIM(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: SSIM = %g, want %g", tt.name, got, tt.want)
		}
	}
}

func TestBesselFactor(t *testing.T) {
	if got := BesselFactor(2); got != 4.0/3 {
		t.Errorf("BesselFactor(2) = %g", got)
	}
	if got := BesselFactor(1024); math.Abs(got-1) > 1e-6 {
		t.Errorf("BesselFactor(1024) = %g", got)
	}
}

func TestMomentsFromReductions(t *testing.T) {
	const size = 4
	k := 16.0 / 15
	m := momentsFromReductions(0.5, 0.25, 0.01, 0.04, -0.002, size)
	if m.MeanL != 127.5 || m.MeanR != 63.75 {
		t.Errorf("means = %g, %g", m.MeanL, m.MeanR)
	}
	if want := 255 * math.Sqrt(0.01*k); math.Abs(m.StdL-want) > 1e-9 {
		t.Errorf("StdL = %g, want %g", m.StdL, want)
	}
	if want := 255 * 255 * -0.002 * k; math.Abs(m.Covariance-want) > 1e-9 {
		t.Errorf("Covariance = %g, want %g", m.Covariance, want)
	}

	// Quantization can push a variance slightly negative.
	if m := momentsFromReductions(0, 0, -1e-9, 0, 0, size); m.StdL != 0 {
		t.Errorf("negative variance gives std %g", m.StdL)
	}
}
