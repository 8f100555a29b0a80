// Package units provides the speed, power, and gravity conversions shared
// across the pipeline.
package units

const (
	// KmhPerMps is the km/h-per-m/s conversion factor.
	KmhPerMps = 3.6
	// CVWatts is the watt count of one metric horsepower (CV).
	CVWatts = 735.5
	// G is the acceleration of gravity used to convert longitudinal
	// acceleration from g-units to m/s².
	G = 9.80665
)

// KmhToMps converts km/h to m/s.
func KmhToMps(v float64) float64 { return v / KmhPerMps }

// MpsToKmh converts m/s to km/h.
func MpsToKmh(v float64) float64 { return v * KmhPerMps }

// WattsToCV converts watts to metric horsepower.
func WattsToCV(p float64) float64 { return p / CVWatts }

// CVToWatts converts metric horsepower to watts.
func CVToWatts(p float64) float64 { return p * CVWatts }

// GToMps2 converts longitudinal acceleration in g to m/s².
func GToMps2(a float64) float64 { return a * G }
