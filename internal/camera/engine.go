// Package camera computes spectator camera poses. Every mode except floating
// is a pure function of parameters, target and elapsed time; floating mode
// threads its integration state explicitly through FloatingState.
package camera

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Input bundles everything a single pose evaluation needs.
type Input struct {
	Mode    ViewMode
	Params  Parameters
	Sample  TargetSample
	Elapsed float64
	Step    float64
	State   *FloatingState
}

// Compute evaluates the trajectory selected by in.Mode. Floating mode
// requires in.State; the other modes ignore it.
func Compute(in Input) (Pose, error) {
	target := in.Sample.Position
	switch in.Mode {
	case ModeOrbit:
		return Orbit(in.Params, target, in.Elapsed), nil
	case ModeFollow:
		return Follow(in.Params, target, in.Elapsed), nil
	case ModeSlowOrbit:
		return SlowOrbit(in.Params, target, in.Elapsed), nil
	case ModeAerialView:
		return AerialView(in.Params, target, in.Elapsed), nil
	case ModeSpiralUp:
		return SpiralUp(in.Params, target, in.Elapsed), nil
	case ModeFloating:
		if in.State == nil {
			return Pose{}, fmt.Errorf("camera: floating mode needs state")
		}
		return in.State.Step(in.Params, in.Sample, in.Step), nil
	default:
		return Pose{}, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(in.Mode))
	}
}

// Extrapolate projects a sample forward by ahead seconds, capped at maxAhead.
func Extrapolate(sample TargetSample, ahead, maxAhead float64) mgl64.Vec3 {
	if ahead <= 0 {
		return sample.Position
	}
	if ahead > maxAhead {
		ahead = maxAhead
	}
	return sample.Position.Add(sample.Velocity.Mul(ahead))
}
