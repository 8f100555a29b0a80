package binning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/kart-power-curve/internal/powerengine"
)

func accepted(rpm, powerCV, torqueNm float64) powerengine.Accepted {
	return powerengine.Accepted{
		Sample:   powerengine.Sample{RPM: rpm},
		PowerCV:  powerCV,
		TorqueNm: torqueNm,
	}
}

func TestBuildDropsEmptyAndNonPositiveBins(t *testing.T) {
	samples := []powerengine.Accepted{
		accepted(8050, 10, 20),
		accepted(8060, -5, -2), // same bin, drags bin mean negative? handled below
	}
	// Use two distinct bins: one positive mean, one negative mean dropped whole.
	samples = []powerengine.Accepted{
		accepted(8050, 10, 20),
		accepted(9050, -3, -1),
	}
	curve := Build(samples, 0)
	require.Len(t, curve.Bins, 1, "expected 1 surviving bin: %+v", curve.Bins)
	assert.Equal(t, 8050.0, curve.Bins[0].CenterRPM)
}

func TestBuildBinCentersAreMultiplesOf100Plus50(t *testing.T) {
	samples := []powerengine.Accepted{
		accepted(8020, 10, 15),
		accepted(8080, 12, 16),
		accepted(9010, 11, 14),
	}
	curve := Build(samples, 0)
	for _, b := range curve.Bins {
		rem := math.Mod(b.CenterRPM-50, 100)
		if rem != 0 {
			t.Errorf("bin center %v is not of form 50+100n", b.CenterRPM)
		}
	}
}

func TestSmoothIdempotentAtZeroFilterLevel(t *testing.T) {
	xs := []float64{1, 5, 2, 8, 3, 9, 4}
	got := Smooth(xs, 0)
	for i := range xs {
		if got[i] != xs[i] {
			t.Errorf("smooth(L=0)[%d] = %v, want unchanged %v", i, got[i], xs[i])
		}
	}
}

func TestSmoothShortArrayReturnedUnchanged(t *testing.T) {
	xs := []float64{1, 2}
	got := Smooth(xs, 90)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("short array should be returned unchanged, got %v", got)
	}
}

func TestSmoothLaddersBySelectedLength(t *testing.T) {
	xs := make([]float64, 20)
	for i := range xs {
		xs[i] = float64(i)
	}
	for _, fl := range []float64{10, 40, 70, 90} {
		got := Smooth(xs, fl)
		if len(got) != len(xs) {
			t.Fatalf("filter level %v: length changed", fl)
		}
	}
}

func TestSampleCountSumsAcrossBins(t *testing.T) {
	samples := []powerengine.Accepted{
		accepted(8020, 10, 15),
		accepted(8030, 11, 16),
		accepted(9010, 9, 13),
	}
	curve := Build(samples, 0)
	if curve.TotalSamples != len(samples) {
		t.Errorf("total samples = %d, want %d", curve.TotalSamples, len(samples))
	}
}
