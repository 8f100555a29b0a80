// Package powerengine turns accepted logger samples into per-sample wheel
// power and torque, following the same accept/reject accumulation shape as
// a trip-log analyzer walking a session sample by sample.
package powerengine

import (
	"github.com/samber/lo"

	"github.com/banshee-data/kart-power-curve/internal/config"
	"github.com/banshee-data/kart-power-curve/internal/gearbox"
	"github.com/banshee-data/kart-power-curve/internal/units"
)

// Sample is one raw logger row materialised to physical units.
type Sample struct {
	SpeedKmh   float64
	LonAccG    float64
	RPM        float64
	HeadTempC  float64 // 0 when absent
	CoolantC   float64 // 0 when absent
	ExhaustC   float64 // 0 when absent
	Lambda     float64 // 0 when absent
	Lap        int
	LapIndex   int // sample index within the lap
}

// Accepted is one sample that survived accept/reject filtering, with its
// computed wheel power and torque.
type Accepted struct {
	Sample
	Gear      int
	WheelPs   float64 // watts
	PowerCV   float64
	TorqueNm  float64
}

const minAcceptSpeedMps = 5.0 / 3.6

// Run filters and computes power/torque for every sample in order,
// returning only the accepted ones. airDensity is the humid-air density
// computed for the run's conditions.
func Run(samples []Sample, vehicle config.Vehicle, airDensity float64) []Accepted {
	r := vehicle.Tyre.RadiusM()

	return lo.FilterMap(samples, func(s Sample, _ int) (Accepted, bool) {
		v := s.SpeedKmh / units.KmhPerMps
		a := units.GToMps2(s.LonAccG)

		if v < minAcceptSpeedMps || a <= 0 {
			return Accepted{}, false
		}
		if vehicle.MaxRPM > 0 && (s.RPM < vehicle.MinRPM || s.RPM > vehicle.MaxRPM) {
			return Accepted{}, false
		}

		gear := gearbox.Detect(s.RPM, v, vehicle)
		if gear == 0 {
			return Accepted{}, false
		}
		totalRatio := gearbox.TotalRatio(gear, vehicle)

		fDrag := 0.5 * airDensity * vehicle.Kart.FrontalAreaM2 * vehicle.Kart.DragCoeff * v * v
		fRoll := vehicle.Kart.MassKg * units.G * (vehicle.Tyre.C1 + vehicle.Tyre.C2*v*v)
		fInertia := vehicle.Kart.MassKg * a
		fWheel := 2 * vehicle.Tyre.InertiaPerWheelKgM2 * (a / r) / r
		fEngine := vehicle.Engine.InertiaKgM2 * (a / r) * totalRatio * totalRatio / r

		f := fInertia + fDrag + fRoll + fWheel + fEngine
		powerW := f * v
		powerCV := units.WattsToCV(powerW)
		torqueNm := f * r

		if vehicle.PCvCap > 0 && (powerCV < 0 || powerCV > vehicle.PCvCap) {
			return Accepted{}, false
		}

		return Accepted{
			Sample:   s,
			Gear:     gear,
			WheelPs:  powerW,
			PowerCV:  powerCV,
			TorqueNm: torqueNm,
		}, true
	})
}
