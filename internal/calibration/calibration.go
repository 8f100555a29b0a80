// Package calibration runs the two-phase (gravity, forward) IMU calibration
// state machine, following the guided-calibration phase structure of a
// handheld inertial-computer calibration tool: buffer samples per phase,
// derive a rotation once each phase's minimum fill is met, and report
// progress after every pushed sample.
package calibration

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/kart-power-curve/internal/kerrors"
)

const component = "calibration.Engine"

const (
	minGravitySamples = 150
	minForwardSamples = 250
	minRetainedForPCA = 20
	powerIterations   = 50
)

// Phase names the state machine's current state.
type Phase int

const (
	PhaseAwaitingGravity Phase = iota
	PhaseAwaitingForward
	PhaseDone
	PhaseFailed
)

// Vec3 is a 3-component sample: (x, y, z) in device axes.
type Vec3 [3]float64

func (v Vec3) norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) scaled(k float64) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

func (v Vec3) sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3) dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Result is the calibration's rotation basis and quality score.
type Result struct {
	Forward Vec3    `json:"forward"` // f
	Right   Vec3    `json:"right"`   // r
	Up      Vec3    `json:"up"`      // u
	Gravity Vec3    `json:"gravity"` // g, m/s^2
	Quality float64 `json:"quality"`
	Warning string  `json:"warning,omitempty"` // non-empty if gravity magnitude looked implausible
}

// Engine is the calibration state machine. It is not safe for concurrent
// pushes; the caller must serialise access to a single instance.
type Engine struct {
	phase Phase

	gravitySamples []Vec3
	forwardSamples []Vec3

	gravity Vec3
	result  Result
	err     error
}

// New returns an engine in the awaiting-gravity phase.
func New() *Engine {
	return &Engine{phase: PhaseAwaitingGravity}
}

// Phase reports the engine's current state.
func (e *Engine) Phase() Phase { return e.phase }

// Progress reports completion of the current phase in [0,1].
func (e *Engine) Progress() float64 {
	switch e.phase {
	case PhaseAwaitingGravity:
		return clamp01(float64(len(e.gravitySamples)) / minGravitySamples)
	case PhaseAwaitingForward:
		return clamp01(float64(len(e.forwardSamples)) / minForwardSamples)
	default:
		return 1
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// PushGravitySample buffers one accel-including-gravity sample. Once
// minGravitySamples have been pushed, the engine computes g and advances to
// awaiting-forward.
func (e *Engine) PushGravitySample(s Vec3) {
	if e.phase != PhaseAwaitingGravity {
		return
	}
	e.gravitySamples = append(e.gravitySamples, s)
	if len(e.gravitySamples) < minGravitySamples {
		return
	}
	e.gravity = meanVec(e.gravitySamples)
	e.phase = PhaseAwaitingForward
}

// PushForwardSample buffers one accel-including-gravity sample taken during
// a forward acceleration. Once minForwardSamples have been pushed, the
// engine runs PCA and orthonormalisation, then advances to done.
func (e *Engine) PushForwardSample(s Vec3) {
	if e.phase != PhaseAwaitingForward {
		return
	}
	e.forwardSamples = append(e.forwardSamples, s)
	if len(e.forwardSamples) < minForwardSamples {
		return
	}
	e.finishForwardPhase()
}

// Reset clears both buffers and returns the engine to awaiting-gravity.
func (e *Engine) Reset() {
	*e = Engine{phase: PhaseAwaitingGravity}
}

// Result returns the completed calibration, or an insufficient-samples
// error if the engine has not reached the done phase.
func (e *Engine) Result() (Result, error) {
	if e.phase == PhaseFailed {
		return Result{}, e.err
	}
	if e.phase != PhaseDone {
		return Result{}, kerrors.New(kerrors.KindInsufficientSamples, component, "calibration not complete")
	}
	return e.result, nil
}

func (e *Engine) fail(msg string) {
	e.err = kerrors.New(kerrors.KindInsufficientSamples, component, msg)
	e.phase = PhaseFailed
}

func (e *Engine) finishForwardPhase() {
	linear := make([]Vec3, len(e.forwardSamples))
	for i, s := range e.forwardSamples {
		linear[i] = s.sub(e.gravity)
	}

	var retained []Vec3
	for _, l := range linear {
		if l.norm() > 0.5 {
			retained = append(retained, l)
		}
	}

	pcaSet := linear
	if len(retained) >= minRetainedForPCA {
		pcaSet = retained
	}

	fRaw := dominantEigenvector(pcaSet)

	meanLinear := meanVec(linear)
	if meanLinear.dot(fRaw) < 0 {
		fRaw = fRaw.scaled(-1)
	}

	gNorm := e.gravity.norm()
	var warning string
	if math.Abs(gNorm-9.81) > 1.5 {
		warning = "gravity magnitude deviates from 9.81 m/s^2 by more than 1.5"
	}

	// The gravity-phase mean is the stationary accelerometer reading, which
	// points away from the ground (reaction to gravity), so up is along that
	// reading rather than against it.
	u := e.gravity.scaled(1 / gNorm)
	fDotU := fRaw.dot(u)
	f := fRaw.sub(u.scaled(fDotU))
	fNorm := f.norm()
	if fNorm > 0 {
		f = f.scaled(1 / fNorm)
	}
	r := cross(f, u)

	qG := 1 - math.Min(1, math.Abs(gNorm-9.81)/2)
	qF := math.Min(1, fRaw.norm()/2)
	qPerp := 1 - math.Abs(fDotU)
	quality := (qG + qF + qPerp) / 3

	e.result = Result{
		Forward: f,
		Right:   r,
		Up:      u,
		Gravity: e.gravity,
		Quality: quality,
		Warning: warning,
	}
	e.phase = PhaseDone
}

func meanVec(vs []Vec3) Vec3 {
	var sum Vec3
	for _, v := range vs {
		sum[0] += v[0]
		sum[1] += v[1]
		sum[2] += v[2]
	}
	n := float64(len(vs))
	if n == 0 {
		return Vec3{}
	}
	return sum.scaled(1 / n)
}

// dominantEigenvector computes the dominant eigenvector of the second-moment
// matrix of vs (already gravity-centred by the caller) via 50
// power-iteration steps from (1,1,1)/sqrt(3), with per-step
// renormalisation. The returned vector is scaled by the square root of its
// Rayleigh-quotient eigenvalue, so its magnitude reflects the RMS forward
// acceleration rather than being a bare unit vector.
func dominantEigenvector(vs []Vec3) Vec3 {
	cov := mat.NewDense(3, 3, nil)
	for _, v := range vs {
		outer := mat.NewDense(3, 3, nil)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				outer.Set(i, j, v[i]*v[j])
			}
		}
		cov.Add(cov, outer)
	}
	if len(vs) > 0 {
		cov.Scale(1/float64(len(vs)), cov)
	}

	init := 1 / math.Sqrt(3)
	x := mat.NewVecDense(3, []float64{init, init, init})
	y := mat.NewVecDense(3, nil)

	for i := 0; i < powerIterations; i++ {
		y.MulVec(cov, x)
		n := mat.Norm(y, 2)
		if n == 0 {
			return Vec3{}
		}
		y.ScaleVec(1/n, y)
		x = y
		y = mat.NewVecDense(3, nil)
	}

	unit := Vec3{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
	y.MulVec(cov, x)
	eigenvalue := x.AtVec(0)*y.AtVec(0) + x.AtVec(1)*y.AtVec(1) + x.AtVec(2)*y.AtVec(2)
	if eigenvalue < 0 {
		eigenvalue = 0
	}
	return unit.scaled(math.Sqrt(eigenvalue))
}
