// Package config holds the vehicle, engine, tyre, final-drive, and run
// condition structs that parameterize every pipeline call: JSON-serializable,
// with defaults applied for anything omitted, then validated.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/kart-power-curve/internal/kerrors"
)

// GearReduction is an (in, out) tooth-count pair.
type GearReduction struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Ratio returns out/in for this reduction.
func (g GearReduction) Ratio() float64 {
	return float64(g.Out) / float64(g.In)
}

// Kart describes the chassis.
type Kart struct {
	MassKg       float64 `json:"massKg"`
	FrontalAreaM2 float64 `json:"frontalAreaM2"`
	DragCoeff    float64 `json:"dragCoeff"`
}

// Engine describes the powerplant and driveline upstream of the final drive.
type Engine struct {
	InertiaKgM2     float64         `json:"inertiaKgM2"`
	Primary         GearReduction   `json:"primary"`
	Gears           []GearReduction `json:"gears"` // empty => direct drive
}

// IsDirectDrive reports whether the engine has no selectable gearbox.
func (e Engine) IsDirectDrive() bool { return len(e.Gears) == 0 }

// Tyre describes the driven wheel.
type Tyre struct {
	DiameterMm        float64 `json:"diameterMm"`
	InertiaPerWheelKgM2 float64 `json:"inertiaPerWheelKgM2"`
	C1                float64 `json:"c1"`
	C2                float64 `json:"c2"`
}

// RadiusM returns the tyre radius in metres.
func (t Tyre) RadiusM() float64 { return t.DiameterMm / 2000 }

// FinalDrive describes the rear sprocket ratio.
type FinalDrive struct {
	FrontTeeth int `json:"frontTeeth"`
	RearTeeth  int `json:"rearTeeth"`
}

// Ratio returns rear/front, the final drive ratio.
func (f FinalDrive) Ratio() float64 { return float64(f.RearTeeth) / float64(f.FrontTeeth) }

// RunConditions describes the ambient environment and track state.
type RunConditions struct {
	PressureMbar   float64 `json:"pressureMbar"`
	TemperatureC   float64 `json:"temperatureC"`
	HumidityPct    float64 `json:"humidityPct"`
	TrackGrip      float64 `json:"trackGrip"`
}

// Vehicle bundles the full configuration set consumed by a pipeline call.
type Vehicle struct {
	Kart       Kart          `json:"kart"`
	Engine     Engine        `json:"engine"`
	Tyre       Tyre          `json:"tyre"`
	FinalDrive FinalDrive    `json:"finalDrive"`
	Run        RunConditions `json:"run"`

	// PCvCap is the sanity-bound on accepted wheel power, kept as a
	// configurable parameter rather than a hardcoded constant.
	PCvCap float64 `json:"pCvCap"`

	// MinRPM/MaxRPM bound accepted engine-speed samples.
	MinRPM float64 `json:"minRpm"`
	MaxRPM float64 `json:"maxRpm"`

	// FilterLevel is the smoothing strength in [0,100].
	FilterLevel float64 `json:"filterLevel"`

	// SensorFrontalAreaM2, SensorDragCoeff, SensorRollingCoeff are the
	// frontal area, drag coefficient and rolling coefficient the sensor path
	// uses; it does not read the Kart drag or Tyre rolling fields.
	SensorFrontalAreaM2 float64 `json:"sensorFrontalAreaM2"`
	SensorDragCoeff     float64 `json:"sensorDragCoeff"`
	SensorRollingCoeff  float64 `json:"sensorRollingCoeff"`
}

// Defaults returns the baseline configuration used when no file is supplied.
func Defaults() Vehicle {
	return Vehicle{
		Kart: Kart{
			MassKg:        175,
			FrontalAreaM2: 0.5784,
			DragCoeff:     0.804,
		},
		Engine: Engine{
			InertiaKgM2: 0.003,
		},
		Tyre: Tyre{
			DiameterMm:          280,
			InertiaPerWheelKgM2: 0.027,
			C1:                  0.03,
			C2:                  1e-5,
		},
		Run: RunConditions{
			PressureMbar: 1013,
			TemperatureC: 20,
			HumidityPct:  50,
			TrackGrip:    0.8,
		},
		PCvCap:              100,
		MinRPM:              0,
		MaxRPM:              20000,
		FilterLevel:         0,
		SensorFrontalAreaM2: 0.5,
		SensorDragCoeff:     0.8,
		SensorRollingCoeff:  0.02,
	}
}

// Load reads a JSON configuration file, filling any field left at its zero
// value with the default, then validating the result. Fields present in the
// file but not covering every sub-struct are safe: JSON unmarshalling only
// overwrites what is specified, so a partial document never silently zeros
// out fields it left unmentioned.
func Load(path string) (Vehicle, error) {
	v := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Vehicle{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return Vehicle{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	v.applyZeroDefaults()
	if err := v.Validate(); err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

// applyZeroDefaults re-fills the physical-parameter, sensor and PCvCap
// fields that came back as their zero value after JSON unmarshalling, so a
// partial JSON document never silently zeros out those defaults. MinRPM,
// MaxRPM, FilterLevel and the drivetrain tooth counts are left as the file
// set them, so an explicit zero MaxRPM stays zero.
func (v *Vehicle) applyZeroDefaults() {
	d := Defaults()
	if v.Kart.MassKg == 0 {
		v.Kart.MassKg = d.Kart.MassKg
	}
	if v.Kart.FrontalAreaM2 == 0 {
		v.Kart.FrontalAreaM2 = d.Kart.FrontalAreaM2
	}
	if v.Kart.DragCoeff == 0 {
		v.Kart.DragCoeff = d.Kart.DragCoeff
	}
	if v.Engine.InertiaKgM2 == 0 {
		v.Engine.InertiaKgM2 = d.Engine.InertiaKgM2
	}
	if v.Tyre.DiameterMm == 0 {
		v.Tyre.DiameterMm = d.Tyre.DiameterMm
	}
	if v.Tyre.InertiaPerWheelKgM2 == 0 {
		v.Tyre.InertiaPerWheelKgM2 = d.Tyre.InertiaPerWheelKgM2
	}
	if v.Tyre.C1 == 0 {
		v.Tyre.C1 = d.Tyre.C1
	}
	if v.Tyre.C2 == 0 {
		v.Tyre.C2 = d.Tyre.C2
	}
	if v.Run.PressureMbar == 0 {
		v.Run.PressureMbar = d.Run.PressureMbar
	}
	if v.Run.TemperatureC == 0 {
		v.Run.TemperatureC = d.Run.TemperatureC
	}
	if v.Run.HumidityPct == 0 {
		v.Run.HumidityPct = d.Run.HumidityPct
	}
	if v.Run.TrackGrip == 0 {
		v.Run.TrackGrip = d.Run.TrackGrip
	}
	if v.PCvCap == 0 {
		v.PCvCap = d.PCvCap
	}
	if v.SensorFrontalAreaM2 == 0 {
		v.SensorFrontalAreaM2 = d.SensorFrontalAreaM2
	}
	if v.SensorDragCoeff == 0 {
		v.SensorDragCoeff = d.SensorDragCoeff
	}
	if v.SensorRollingCoeff == 0 {
		v.SensorRollingCoeff = d.SensorRollingCoeff
	}
}

// Validate checks the structural invariants every component relies on,
// returning a KindConfigurationInvalid error naming the offending field.
func (v Vehicle) Validate() error {
	const component = "config.Vehicle"
	if v.Kart.MassKg <= 0 {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "kart mass must be positive")
	}
	if v.Tyre.DiameterMm <= 0 {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "tyre diameter must be positive")
	}
	if v.Engine.Primary.In <= 0 || v.Engine.Primary.Out <= 0 {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "primary reduction teeth must be positive")
	}
	for i, g := range v.Engine.Gears {
		if g.In <= 0 || g.Out <= 0 {
			return kerrors.New(kerrors.KindConfigurationInvalid, component, fmt.Sprintf("gear %d teeth must be positive", i+1))
		}
	}
	if v.FinalDrive.FrontTeeth <= 0 || v.FinalDrive.RearTeeth <= 0 {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "final drive teeth must be positive")
	}
	if v.MinRPM > 0 && v.MaxRPM > 0 && v.MinRPM >= v.MaxRPM {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "minRpm must be less than maxRpm")
	}
	if v.Run.TrackGrip < 0 || v.Run.TrackGrip > 1 {
		return kerrors.New(kerrors.KindConfigurationInvalid, component, "track grip must be within [0,1]")
	}
	return nil
}
