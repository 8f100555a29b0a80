// Package stats provides the small numeric aggregation helpers used by the
// RPM binner.
package stats

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// MeanStddev calculates the mean and sample standard deviation of a slice.
// Returns (0, 0) for empty slices.
func MeanStddev(xs []float64) (mean float64, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(xs, nil)
}

// MeanExcludingNonPositive calculates the arithmetic mean of a slice,
// excluding values that are not strictly positive: zero-substituted missing
// readings must not drag down the reported mean.
func MeanExcludingNonPositive(xs []float64) float64 {
	positive := lo.Filter(xs, func(v float64, _ int) bool { return v > 0 })
	if len(positive) == 0 {
		return 0
	}
	return stat.Mean(positive, nil)
}
