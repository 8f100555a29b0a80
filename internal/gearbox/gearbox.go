// Package gearbox infers the engaged gear from engine speed and wheel speed
// by comparing the observed speed ratio against each gear's candidate ratio.
package gearbox

import (
	"math"

	"github.com/banshee-data/kart-power-curve/internal/config"
)

const (
	minWheelSpeedMps = 1.0
	toleranceFrac    = 0.15
)

// Detect returns the 1-based gear index engaged at rpm/wheelSpeedMps, or 0
// if none matches within tolerance (or the engine is idle/stationary).
//
// Direct-drive engines (no selectable gears) always report gear 1.
func Detect(rpm, wheelSpeedMps float64, vehicle config.Vehicle) int {
	if vehicle.Engine.IsDirectDrive() {
		return 1
	}
	if wheelSpeedMps < minWheelSpeedMps {
		return 0
	}

	r := vehicle.Tyre.RadiusM()
	omegaEng := rpm * math.Pi / 30
	omegaWheel := wheelSpeedMps / r
	if omegaWheel == 0 {
		return 0
	}
	observed := omegaEng / omegaWheel

	best := 0
	bestErr := math.Inf(1)
	for i, gear := range vehicle.Engine.Gears {
		candidate := vehicle.Engine.Primary.Ratio() * gear.Ratio() * vehicle.FinalDrive.Ratio()
		if candidate == 0 {
			continue
		}
		relErr := math.Abs(observed-candidate) / candidate
		if relErr < bestErr {
			bestErr = relErr
			best = i + 1
		}
	}
	if bestErr > toleranceFrac {
		return 0
	}
	return best
}

// TotalRatio returns the combined primary/gear/final-drive ratio for the
// given 1-based gear index (as returned by Detect). For direct-drive
// engines gear is ignored and the primary/final ratio is returned.
func TotalRatio(gear int, vehicle config.Vehicle) float64 {
	if vehicle.Engine.IsDirectDrive() {
		return vehicle.Engine.Primary.Ratio() * vehicle.FinalDrive.Ratio()
	}
	if gear < 1 || gear > len(vehicle.Engine.Gears) {
		return 0
	}
	g := vehicle.Engine.Gears[gear-1]
	return vehicle.Engine.Primary.Ratio() * g.Ratio() * vehicle.FinalDrive.Ratio()
}
