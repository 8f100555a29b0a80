package calibration

import (
	"math"
	"testing"

	"github.com/banshee-data/kart-power-curve/internal/kerrors"
)

func pushGravity(e *Engine, n int, g Vec3) {
	for i := 0; i < n; i++ {
		e.PushGravitySample(g)
	}
}

func TestInsufficientGravitySamplesFails(t *testing.T) {
	e := New()
	pushGravity(e, minGravitySamples-1, Vec3{0, 0, -9.81})
	_, err := e.Result()
	if err == nil {
		t.Fatal("expected insufficient-samples error")
	}
	if kind, ok := kerrors.KindOf(err); !ok || kind != kerrors.KindInsufficientSamples {
		t.Fatalf("expected KindInsufficientSamples, got %v", err)
	}
	if e.Phase() != PhaseAwaitingGravity {
		t.Errorf("phase = %v, want awaiting-gravity", e.Phase())
	}
}

func TestCalibrationAdvancesThroughPhases(t *testing.T) {
	e := New()
	pushGravity(e, minGravitySamples, Vec3{0, 0, -9.81})
	if e.Phase() != PhaseAwaitingForward {
		t.Fatalf("phase = %v, want awaiting-forward", e.Phase())
	}

	for i := 0; i < minForwardSamples; i++ {
		e.PushForwardSample(Vec3{1.0, 0, -9.81})
	}
	if e.Phase() != PhaseDone {
		t.Fatalf("phase = %v, want done", e.Phase())
	}
}

func TestCalibrationSignAndForwardAxis(t *testing.T) {
	e := New()
	pushGravity(e, minGravitySamples, Vec3{0, 0, -9.81})
	for i := 0; i < minForwardSamples; i++ {
		// Small jitter around +x keeps the forward-phase covariance
		// non-degenerate while staying concentrated along +x.
		jitter := 0.01 * math.Sin(float64(i))
		e.PushForwardSample(Vec3{1.0 + jitter, 0.01 * math.Cos(float64(i)), -9.81})
	}

	result, err := e.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Forward[0]-1) > 2e-2 || math.Abs(result.Forward[1]) > 2e-2 || math.Abs(result.Forward[2]) > 2e-2 {
		t.Errorf("forward = %v, want ~(1,0,0)", result.Forward)
	}
}

func TestCalibrationOrthonormality(t *testing.T) {
	e := New()
	pushGravity(e, minGravitySamples, Vec3{0.1, 0, -9.8})
	for i := 0; i < minForwardSamples; i++ {
		// small jitter so the covariance matrix is not singular
		jitter := 0.01 * math.Sin(float64(i))
		e.PushForwardSample(Vec3{1.0 + jitter, 0.02 * math.Cos(float64(i)), -9.8})
	}

	result, err := e.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, v := range []Vec3{result.Forward, result.Right, result.Up} {
		if math.Abs(v.norm()-1) > 1e-6 {
			t.Errorf("unit vector norm = %v, want 1", v.norm())
		}
	}
	if math.Abs(result.Forward.dot(result.Up)) > 1e-6 {
		t.Errorf("forward.up = %v, want ~0", result.Forward.dot(result.Up))
	}
	if math.Abs(result.Forward.dot(result.Right)) > 1e-6 {
		t.Errorf("forward.right = %v, want ~0", result.Forward.dot(result.Right))
	}
	if math.Abs(result.Right.dot(result.Up)) > 1e-6 {
		t.Errorf("right.up = %v, want ~0", result.Right.dot(result.Up))
	}
}

func TestCalibrationLiteralScenario(t *testing.T) {
	e := New()
	pushGravity(e, 150, Vec3{0, 0, 9.81})
	for i := 0; i < 250; i++ {
		e.PushForwardSample(Vec3{2.0, 0, 9.81})
	}

	result, err := e.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]Vec3{"f": {1, 0, 0}, "u": {0, 0, 1}, "r": {0, -1, 0}}
	got := map[string]Vec3{"f": result.Forward, "u": result.Up, "r": result.Right}
	for name, w := range want {
		v := got[name]
		for i := 0; i < 3; i++ {
			if math.Abs(v[i]-w[i]) > 1e-3 {
				t.Errorf("%s = %v, want %v", name, v, w)
			}
		}
	}
	if math.Abs(result.Forward.dot(result.Up)) > 1e-6 {
		t.Errorf("|f.u| = %v, want <1e-6", math.Abs(result.Forward.dot(result.Up)))
	}
	if result.Quality < 0.9 {
		t.Errorf("quality = %v, want >= 0.9", result.Quality)
	}
}

func TestResetReturnsToAwaitingGravity(t *testing.T) {
	e := New()
	pushGravity(e, minGravitySamples, Vec3{0, 0, -9.81})
	e.Reset()
	if e.Phase() != PhaseAwaitingGravity {
		t.Errorf("phase after reset = %v, want awaiting-gravity", e.Phase())
	}
	if len(e.gravitySamples) != 0 {
		t.Errorf("expected cleared buffers after reset")
	}
}

func TestProgressReportsFraction(t *testing.T) {
	e := New()
	pushGravity(e, 75, Vec3{0, 0, -9.81})
	if p := e.Progress(); math.Abs(p-0.5) > 1e-9 {
		t.Errorf("progress = %v, want 0.5", p)
	}
}
