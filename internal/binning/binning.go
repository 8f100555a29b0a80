// Package binning buckets accepted power-engine samples by RPM and applies
// the Savitzky-Golay smoothing ladder, summarising each bucket before
// smoothing the resulting per-bucket series.
package binning

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/kart-power-curve/internal/powerengine"
	"github.com/banshee-data/kart-power-curve/internal/stats"
)

const binWidthRPM = 100

// Bin is one non-empty RPM bucket after aggregation. In a Curve returned by
// Build, MeanPowerCV and MeanTorqueNm hold the smoothed values.
type Bin struct {
	CenterRPM     float64 `json:"centerRpm"`
	MeanPowerCV   float64 `json:"meanPowerCv"`
	MeanTorqueNm  float64 `json:"meanTorqueNm"`
	MeanHeadTempC float64 `json:"meanHeadTempC"`
	MeanCoolantC  float64 `json:"meanCoolantC"`
	MeanExhaustC  float64 `json:"meanExhaustC"`
	MeanLambda    float64 `json:"meanLambda"`
	SampleCount   int     `json:"sampleCount"`
}

// Curve is the binned-and-smoothed result plus its derived statistics.
type Curve struct {
	Bins []Bin

	PeakPowerCV   float64
	PeakPowerRPM  float64
	PeakTorqueNm  float64
	PeakTorqueRPM float64
	MeanPowerCV   float64
	MeanTorqueNm  float64
	MinRPM        float64
	MaxRPM        float64
	TotalSamples  int
}

// Build aggregates accepted samples into 100rpm bins (dropping empty bins
// and bins whose mean power is non-positive), applies smoothing at the
// given filter level, and computes summary statistics.
func Build(accepted []powerengine.Accepted, filterLevel float64) Curve {
	grouped := lo.GroupBy(accepted, func(a powerengine.Accepted) float64 {
		return math.Floor(a.RPM/binWidthRPM) * binWidthRPM
	})

	var bins []Bin
	for binFloor, group := range grouped {
		powers := make([]float64, len(group))
		torques := make([]float64, len(group))
		heads := make([]float64, len(group))
		coolants := make([]float64, len(group))
		exhausts := make([]float64, len(group))
		lambdas := make([]float64, len(group))
		for i, a := range group {
			powers[i] = a.PowerCV
			torques[i] = a.TorqueNm
			heads[i] = a.HeadTempC
			coolants[i] = a.CoolantC
			exhausts[i] = a.ExhaustC
			lambdas[i] = a.Lambda
		}
		meanPower, _ := stats.MeanStddev(powers)
		if meanPower <= 0 {
			continue
		}
		meanTorque, _ := stats.MeanStddev(torques)
		bins = append(bins, Bin{
			CenterRPM:     binFloor + 50,
			MeanPowerCV:   meanPower,
			MeanTorqueNm:  meanTorque,
			MeanHeadTempC: stats.MeanExcludingNonPositive(heads),
			MeanCoolantC:  stats.MeanExcludingNonPositive(coolants),
			MeanExhaustC:  stats.MeanExcludingNonPositive(exhausts),
			MeanLambda:    stats.MeanExcludingNonPositive(lambdas),
			SampleCount:   len(group),
		})
	}

	sort.Slice(bins, func(i, j int) bool { return bins[i].CenterRPM < bins[j].CenterRPM })

	powerCurve := make([]float64, len(bins))
	torqueCurve := make([]float64, len(bins))
	for i, b := range bins {
		powerCurve[i] = b.MeanPowerCV
		torqueCurve[i] = b.MeanTorqueNm
	}
	smoothedPower := Smooth(powerCurve, filterLevel)
	smoothedTorque := Smooth(torqueCurve, filterLevel)
	for i := range bins {
		bins[i].MeanPowerCV = smoothedPower[i]
		bins[i].MeanTorqueNm = smoothedTorque[i]
	}

	return summarize(bins)
}

func summarize(bins []Bin) Curve {
	c := Curve{Bins: bins}
	if len(bins) == 0 {
		return c
	}

	c.MinRPM = bins[0].CenterRPM
	c.MaxRPM = bins[0].CenterRPM
	var powerSum, torqueSum float64
	for _, b := range bins {
		if b.CenterRPM < c.MinRPM {
			c.MinRPM = b.CenterRPM
		}
		if b.CenterRPM > c.MaxRPM {
			c.MaxRPM = b.CenterRPM
		}
		if b.MeanPowerCV > c.PeakPowerCV {
			c.PeakPowerCV = b.MeanPowerCV
			c.PeakPowerRPM = b.CenterRPM
		}
		if b.MeanTorqueNm > c.PeakTorqueNm {
			c.PeakTorqueNm = b.MeanTorqueNm
			c.PeakTorqueRPM = b.CenterRPM
		}
		powerSum += b.MeanPowerCV
		torqueSum += b.MeanTorqueNm
		c.TotalSamples += b.SampleCount
	}
	c.MeanPowerCV = powerSum / float64(len(bins))
	c.MeanTorqueNm = torqueSum / float64(len(bins))
	return c
}

// sgCoefficients are the canonical quadratic Savitzky-Golay coefficients,
// already divided by their normalisation constant.
var sgCoefficients = map[int][]float64{
	5: scaled([]float64{-3, 12, 17, 12, -3}, 35),
	7: scaled([]float64{-2, 3, 6, 7, 6, 3, -2}, 21),
	9: scaled([]float64{-21, 14, 39, 54, 59, 54, 39, 14, -21}, 231),
}

func scaled(coeffs []float64, norm float64) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = c / norm
	}
	return out
}

// Smooth applies the filter-level-selected Savitzky-Golay ladder to xs.
// Arrays shorter than 3 samples are returned unchanged, as are filter
// levels at or below zero.
func Smooth(xs []float64, filterLevel float64) []float64 {
	if len(xs) < 3 || filterLevel <= 0 {
		return append([]float64(nil), xs...)
	}

	switch {
	case filterLevel <= 25:
		return savitzkyGolay(xs, 5)
	case filterLevel <= 50:
		return savitzkyGolay(xs, 7)
	case filterLevel <= 75:
		return savitzkyGolay(xs, 9)
	default:
		return movingAverage(savitzkyGolay(xs, 9), 5)
	}
}

// savitzkyGolay convolves xs with the length-L quadratic SG kernel, clamping
// out-of-range sample indices to [0, n-1] at the boundaries.
func savitzkyGolay(xs []float64, length int) []float64 {
	coeffs, ok := sgCoefficients[length]
	if !ok || len(xs) < 3 {
		return append([]float64(nil), xs...)
	}
	half := length / 2
	n := len(xs)
	out := make([]float64, n)
	window := make([]float64, length)

	for i := 0; i < n; i++ {
		for k := 0; k < length; k++ {
			idx := i + k - half
			if idx < 0 {
				idx = 0
			}
			if idx > n-1 {
				idx = n - 1
			}
			window[k] = xs[idx]
		}
		out[i] = floats.Dot(coeffs, window)
	}
	return out
}

func movingAverage(xs []float64, window int) []float64 {
	if len(xs) < 3 {
		return append([]float64(nil), xs...)
	}
	half := window / 2
	n := len(xs)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		var count int
		for k := -half; k <= half; k++ {
			idx := i + k
			if idx < 0 {
				idx = 0
			}
			if idx > n-1 {
				idx = n - 1
			}
			sum += xs[idx]
			count++
		}
		out[i] = sum / float64(count)
	}
	return out
}
