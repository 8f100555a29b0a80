// Package environment computes humid-air density from run conditions using
// the Magnus formula for saturation vapour pressure.
package environment

import "math"

const (
	rD = 287.05  // specific gas constant of dry air, J/(kg·K)
	rV = 461.495 // specific gas constant of water vapour, J/(kg·K)
)

// AirDensity returns the humid-air density in kg/m³ for pressure p (mbar),
// temperature t (°C), and relative humidity h (%).
func AirDensity(pressureMbar, temperatureC, humidityPct float64) float64 {
	p := pressureMbar * 100 // mbar -> Pa
	tK := temperatureC + 273.15

	pSat := 610.78 * math.Exp(17.27*temperatureC/(237.7+temperatureC))
	pVapour := (humidityPct / 100) * pSat
	pDry := p - pVapour

	return pDry/(rD*tK) + pVapour/(rV*tK)
}
