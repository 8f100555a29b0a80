package environment

import (
	"math"
	"testing"
)

func TestAirDensityStandardConditions(t *testing.T) {
	got := AirDensity(1013.25, 15, 0)
	if math.Abs(got-1.225) > 5e-4 {
		t.Errorf("AirDensity(1013.25, 15, 0) = %v, want ~1.225", got)
	}
}

func TestAirDensityDecreasesWithHumidity(t *testing.T) {
	dry := AirDensity(1013.25, 25, 0)
	humid := AirDensity(1013.25, 25, 100)
	if humid >= dry {
		t.Errorf("humid air density %v should be less than dry air density %v", humid, dry)
	}
}

func TestAirDensityDecreasesWithTemperature(t *testing.T) {
	cold := AirDensity(1013.25, 0, 50)
	hot := AirDensity(1013.25, 40, 50)
	if hot >= cold {
		t.Errorf("hot air density %v should be less than cold air density %v", hot, cold)
	}
}
