package gearbox

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/kart-power-curve/internal/config"
)

func directDriveVehicle() config.Vehicle {
	v := config.Defaults()
	v.Engine.Primary = config.GearReduction{In: 10, Out: 10}
	v.FinalDrive = config.FinalDrive{FrontTeeth: 11, RearTeeth: 80}
	v.Tyre.DiameterMm = 280 // r = 0.14
	return v
}

func shifterVehicle() config.Vehicle {
	v := config.Defaults()
	v.Engine.Primary = config.GearReduction{In: 10, Out: 10}
	v.Engine.Gears = []config.GearReduction{
		{In: 34, Out: 13},
		{In: 30, Out: 16},
		{In: 27, Out: 19},
		{In: 24, Out: 22},
		{In: 22, Out: 24},
		{In: 20, Out: 26},
	}
	v.FinalDrive = config.FinalDrive{FrontTeeth: 11, RearTeeth: 80}
	v.Tyre.DiameterMm = 280
	return v
}

func TestDetectDirectDriveAlwaysGearOne(t *testing.T) {
	v := directDriveVehicle()
	if g := Detect(8000, 20, v); g != 1 {
		t.Errorf("direct-drive gear = %d, want 1", g)
	}
}

func TestDetectBelowMinSpeedReturnsZero(t *testing.T) {
	v := shifterVehicle()
	if g := Detect(5000, 0.5, v); g != 0 {
		t.Errorf("gear below min speed = %d, want 0", g)
	}
}

func TestDetectOnExactGearLine(t *testing.T) {
	v := shifterVehicle()
	r := v.Tyre.RadiusM()

	for idx, gear := range v.Engine.Gears {
		ratio := v.Engine.Primary.Ratio() * gear.Ratio() * v.FinalDrive.Ratio()
		wheelSpeed := 20.0 // m/s
		omegaWheel := wheelSpeed / r
		omegaEng := omegaWheel * ratio
		rpm := omegaEng * 30 / math.Pi

		got := Detect(rpm, wheelSpeed, v)
		want := idx + 1
		if got != want {
			t.Errorf("gear %d exact line: detected %d", want, got)
		}
	}
}

func TestDetectAcrossAllGearLinesInSequence(t *testing.T) {
	v := shifterVehicle()
	r := v.Tyre.RadiusM()
	wheelSpeed := 20.0
	omegaWheel := wheelSpeed / r

	var got []int
	for _, gear := range v.Engine.Gears {
		ratio := v.Engine.Primary.Ratio() * gear.Ratio() * v.FinalDrive.Ratio()
		rpm := omegaWheel * ratio * 30 / math.Pi
		got = append(got, Detect(rpm, wheelSpeed, v))
	}

	want := []int{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("detected gear sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectOffByMoreThan15PercentReturnsZero(t *testing.T) {
	v := shifterVehicle()
	r := v.Tyre.RadiusM()
	top := v.Engine.Gears[len(v.Engine.Gears)-1]
	ratio := v.Engine.Primary.Ratio() * top.Ratio() * v.FinalDrive.Ratio()
	wheelSpeed := 20.0
	omegaWheel := wheelSpeed / r
	omegaEng := omegaWheel * ratio * 1.5 // 50% above the highest gear line, further still from the others
	rpm := omegaEng * 30 / math.Pi

	if g := Detect(rpm, wheelSpeed, v); g != 0 {
		t.Errorf("gear = %d, want 0 (no candidate within tolerance)", g)
	}
}

func TestTotalRatioDirectDrive(t *testing.T) {
	v := directDriveVehicle()
	want := v.Engine.Primary.Ratio() * v.FinalDrive.Ratio()
	if got := TotalRatio(1, v); got != want {
		t.Errorf("total ratio = %v, want %v", got, want)
	}
}

func TestTotalRatioShifter(t *testing.T) {
	v := shifterVehicle()
	want := v.Engine.Primary.Ratio() * v.Engine.Gears[2].Ratio() * v.FinalDrive.Ratio()
	if got := TotalRatio(3, v); got != want {
		t.Errorf("total ratio gear 3 = %v, want %v", got, want)
	}
	if got := TotalRatio(0, v); got != 0 {
		t.Errorf("total ratio gear 0 = %v, want 0", got)
	}
}
