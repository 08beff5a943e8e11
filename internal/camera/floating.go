package camera

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxStep caps the per-call Δt so a stalled frame cannot teleport the camera.
	MaxStep = 0.1

	orbitDrift         = 0.2
	heightDrift        = 0.13
	breathAmplitude    = 0.4
	noiseAmplitude     = 0.8
	aimJitterDegrees   = 1.5
	predictionMinSpeed = 0.15
	velocitySmoothing  = 0.35
)

// ClampStep forces a per-call Δt (seconds) into [0, MaxStep].
func ClampStep(dt float64) float64 {
	if math.IsNaN(dt) || dt <= 0 {
		return 0
	}
	return math.Min(dt, MaxStep)
}

// ClampElapsed rejects negative or non-finite elapsed times.
func ClampElapsed(elapsed float64) float64 {
	if math.IsNaN(elapsed) || elapsed < 0 || math.IsInf(elapsed, 0) {
		return 0
	}
	return elapsed
}

// FloatingState is the integration state of the floating camera. It must be
// reset whenever a session starts or changes target.
type FloatingState struct {
	Position    mgl64.Vec3
	Velocity    mgl64.Vec3
	OrbitAngle  float64
	HeightAngle float64
	BreathPhase float64
	NoisePhase  float64

	// TargetVelocity is the smoothed finite-difference estimate.
	TargetVelocity mgl64.Vec3

	initialized bool
	havePrev    bool
	prev        mgl64.Vec3
	prevTime    time.Time
	sinceSample float64
}

// Reset discards all integration state. The next Step snaps to the desired
// position instead of springing from stale state.
func (s *FloatingState) Reset() {
	*s = FloatingState{}
}

// Initialized reports whether Step has placed the camera at least once.
func (s *FloatingState) Initialized() bool {
	return s.initialized
}

// Step advances the simulation by dt seconds and returns the resulting pose.
func (s *FloatingState) Step(p Parameters, sample TargetSample, dt float64) Pose {
	dt = ClampStep(dt)
	s.observe(sample, dt)

	aim := sample.Position
	anchor := aim
	if s.TargetVelocity.Len() > predictionMinSpeed {
		anchor = aim.Add(s.TargetVelocity.Mul(p.PredictionFactor))
	}

	s.OrbitAngle = wrapRadians(s.OrbitAngle + p.FloatingSpeed*orbitDrift*dt)
	s.HeightAngle = wrapRadians(s.HeightAngle + p.FloatingSpeed*heightDrift*dt)
	s.BreathPhase = wrapRadians(s.BreathPhase + p.BreathingFrequency*2*math.Pi*dt)
	s.NoisePhase += p.FloatingSpeed * dt

	orbital := mgl64.Vec3{
		math.Cos(s.OrbitAngle) * p.OrbitRadius,
		p.HeightOffset + math.Sin(s.HeightAngle)*p.HeightVariation,
		math.Sin(s.OrbitAngle) * p.OrbitRadius,
	}
	var drift mgl64.Vec3
	for axis := 0; axis < 3; axis++ {
		drift[axis] = layeredNoise(s.NoisePhase, axisSeeds[axis]) * noiseAmplitude * p.FloatingStrength
	}
	breath := mgl64.Vec3{0, math.Sin(s.BreathPhase) * breathAmplitude * p.FloatingStrength, 0}
	desired := anchor.Add(orbital).Add(drift).Add(breath)

	if !s.initialized {
		s.Position = desired
		s.Velocity = mgl64.Vec3{}
		s.initialized = true
	} else if dt > 0 {
		// A repeated evaluation at the same instant leaves the motion alone.
		force := desired.Sub(s.Position).Mul(p.AttractionFactor)
		s.Velocity = s.Velocity.Add(force.Mul(dt)).Mul(p.DampingFactor)
		s.Position = s.Position.Add(s.Velocity.Mul(dt))
	}

	pose := lookAtPose(s.Position, aim)
	jitter := aimJitterDegrees * p.FloatingStrength
	pose.Yaw += layeredNoise(s.NoisePhase*0.5, 97.3) * jitter
	pose.Pitch += layeredNoise(s.NoisePhase*0.5, 131.9) * jitter * 0.5
	return pose
}

// observe folds a target sample into the smoothed velocity estimate. A sample
// counts as new when its timestamp advances, or, for untimed samples, when its
// position changes.
func (s *FloatingState) observe(sample TargetSample, dt float64) {
	s.sinceSample += dt
	if !s.havePrev {
		s.havePrev = true
		s.prev = sample.Position
		s.prevTime = sample.Time
		s.sinceSample = 0
		return
	}
	fresh := sample.Time.After(s.prevTime) || (sample.Time.IsZero() && !sample.Position.ApproxEqual(s.prev))
	if !fresh {
		return
	}
	interval := sample.Time.Sub(s.prevTime).Seconds()
	if s.prevTime.IsZero() || sample.Time.IsZero() || interval <= 0 {
		interval = s.sinceSample
	}
	if interval > 0 {
		raw := sample.Position.Sub(s.prev).Mul(1 / interval)
		s.TargetVelocity = s.TargetVelocity.Add(raw.Sub(s.TargetVelocity).Mul(velocitySmoothing))
	}
	s.prev = sample.Position
	s.prevTime = sample.Time
	s.sinceSample = 0
}

func wrapRadians(a float64) float64 {
	return math.Mod(a, 2*math.Pi)
}
