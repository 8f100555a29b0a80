// Package sensorpower computes wheel power from a calibrated IMU/GPS sample
// stream by rotating each linear-acceleration sample into kart axes and
// running the same force-balance accumulation shape as the logger power
// engine, then bins by GPS speed and reuses the RPM binner's smoothing
// ladder.
package sensorpower

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/kart-power-curve/internal/binning"
	"github.com/banshee-data/kart-power-curve/internal/calibration"
	"github.com/banshee-data/kart-power-curve/internal/config"
	"github.com/banshee-data/kart-power-curve/internal/units"
)

const (
	minValidSpeedMps  = 0.5
	binWidthKmh        = 5.0
	minSamplesPerBin   = 3
	secondPassFilterLevel = 80
)

// Sample is one raw IMU+GPS reading.
type Sample struct {
	AccelInclGravity calibration.Vec3
	GPSSpeedMps      float64
}

// Accepted is one sample that survived the P>0 filter, with its computed
// forward acceleration and wheel power.
type Accepted struct {
	Sample
	ForwardAccelMps2 float64
	PowerCV          float64
}

// SpeedBin is one non-empty 5km/h speed bucket.
type SpeedBin struct {
	CenterKmh   float64 `json:"centerKmh"`
	MeanPowerCV float64 `json:"meanPowerCv"`
	SampleCount int     `json:"sampleCount"`
}

// Curve is the binned-and-smoothed sensor power curve plus statistics.
type Curve struct {
	Bins []SpeedBin

	PeakPowerCV   float64
	PeakSpeedKmh  float64
	MaxSpeedKmh   float64
	MaxAccelG     float64
	MaxDecelG     float64
	TotalSamples  int
	ValidSpeedSamples int
}

// Run computes per-sample power for every sample with valid GPS speed, bins
// by speed, smooths, and returns the curve plus raw-sample statistics.
func Run(samples []Sample, cal calibration.Result, vehicle config.Vehicle, airDensity float64, filterLevel float64) Curve {
	area := vehicle.SensorFrontalAreaM2
	cd := vehicle.SensorDragCoeff
	cr := vehicle.SensorRollingCoeff
	mass := vehicle.Kart.MassKg

	var accepted []Accepted
	maxSpeedKmh := 0.0
	maxAccelG := 0.0
	maxDecelG := 0.0
	validSpeedSamples := 0

	for _, s := range samples {
		if s.GPSSpeedMps >= minValidSpeedMps {
			validSpeedSamples++
		}
		speedKmh := s.GPSSpeedMps * units.KmhPerMps
		if speedKmh > maxSpeedKmh {
			maxSpeedKmh = speedKmh
		}

		linear := calibration.Vec3{
			s.AccelInclGravity[0] - cal.Gravity[0],
			s.AccelInclGravity[1] - cal.Gravity[1],
			s.AccelInclGravity[2] - cal.Gravity[2],
		}
		af := rotateForward(linear, cal)
		accelG := af / units.G
		if accelG > maxAccelG {
			maxAccelG = accelG
		}
		if -accelG > maxDecelG {
			maxDecelG = -accelG
		}

		if s.GPSSpeedMps < minValidSpeedMps {
			continue
		}

		f := mass*af + 0.5*airDensity*area*cd*s.GPSSpeedMps*s.GPSSpeedMps + mass*units.G*cr
		powerW := f * s.GPSSpeedMps
		powerCV := units.WattsToCV(powerW)
		if powerCV <= 0 {
			continue
		}

		accepted = append(accepted, Accepted{
			Sample:           s,
			ForwardAccelMps2: af,
			PowerCV:          powerCV,
		})
	}

	curve := buildSpeedBins(accepted, filterLevel)
	curve.MaxSpeedKmh = maxSpeedKmh
	curve.MaxAccelG = maxAccelG
	curve.MaxDecelG = maxDecelG
	curve.TotalSamples = len(samples)
	curve.ValidSpeedSamples = validSpeedSamples
	return curve
}

// rotateForward projects a device-axis vector onto the kart's forward axis
// using the calibration's rotation basis (f, r, u).
func rotateForward(v calibration.Vec3, cal calibration.Result) float64 {
	return mat.Dot(mat.NewVecDense(3, v[:]), mat.NewVecDense(3, cal.Forward[:]))
}

func buildSpeedBins(accepted []Accepted, filterLevel float64) Curve {
	grouped := lo.GroupBy(accepted, func(a Accepted) float64 {
		kmh := a.GPSSpeedMps * units.KmhPerMps
		return math.Floor(kmh/binWidthKmh) * binWidthKmh
	})

	var bins []SpeedBin
	for binFloor, group := range grouped {
		if len(group) < minSamplesPerBin {
			continue
		}
		powers := make([]float64, len(group))
		for i, a := range group {
			powers[i] = a.PowerCV
		}
		var sum float64
		for _, p := range powers {
			sum += p
		}
		bins = append(bins, SpeedBin{
			CenterKmh:   (math.Floor(binFloor/binWidthKmh) + 0.5) * binWidthKmh,
			MeanPowerCV: sum / float64(len(powers)),
			SampleCount: len(group),
		})
	}

	sort.Slice(bins, func(i, j int) bool { return bins[i].CenterKmh < bins[j].CenterKmh })

	powerCurve := make([]float64, len(bins))
	for i, b := range bins {
		powerCurve[i] = b.MeanPowerCV
	}
	smoothed := binning.Smooth(powerCurve, filterLevel)
	if filterLevel > secondPassFilterLevel {
		smoothed = binning.Smooth(smoothed, 25) // extra SG-5 pass
	}
	for i := range bins {
		bins[i].MeanPowerCV = smoothed[i]
	}

	curve := Curve{Bins: bins}
	for _, b := range bins {
		if b.MeanPowerCV > curve.PeakPowerCV {
			curve.PeakPowerCV = b.MeanPowerCV
			curve.PeakSpeedKmh = b.CenterKmh
		}
	}
	return curve
}
