package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	slowOrbitRadiusScale = 2.0
	slowOrbitDegPerSec   = 4.0
	aerialHeight         = 24.0
	aerialBackScale      = 0.25
	spiralClimbPerSec    = 0.5
	spiralMaxClimb       = 32.0
)

// orbitAngle maps elapsed seconds onto the circle, one revolution per
// 360/degPerSec seconds.
func orbitAngle(elapsed, degPerSec float64) float64 {
	if degPerSec <= 0 {
		return 0
	}
	period := 360 / degPerSec
	return math.Mod(elapsed, period) / period * 2 * math.Pi
}

func ring(target mgl64.Vec3, angle, radius, height float64) mgl64.Vec3 {
	return target.Add(mgl64.Vec3{math.Sin(angle) * radius, height, math.Cos(angle) * radius})
}

// Orbit circles the target at Distance and HeightOffset.
func Orbit(p Parameters, target mgl64.Vec3, elapsed float64) Pose {
	angle := orbitAngle(ClampElapsed(elapsed), p.RotationSpeed)
	return lookAtPose(ring(target, angle, p.Distance, p.HeightOffset), target)
}

// Follow sits behind and above the target. Target orientation is not known
// at this layer so "behind" is the fixed -Z side.
func Follow(p Parameters, target mgl64.Vec3, _ float64) Pose {
	pos := target.Add(mgl64.Vec3{0, p.HeightOffset, -p.Distance})
	return lookAtPose(pos, target)
}

// SlowOrbit is a wide orbit at a fixed slow angular rate.
func SlowOrbit(p Parameters, target mgl64.Vec3, elapsed float64) Pose {
	angle := orbitAngle(ClampElapsed(elapsed), slowOrbitDegPerSec)
	return lookAtPose(ring(target, angle, p.Distance*slowOrbitRadiusScale, p.HeightOffset), target)
}

// AerialView hangs high above the target with a small backwards offset so
// yaw stays defined.
func AerialView(p Parameters, target mgl64.Vec3, _ float64) Pose {
	pos := target.Add(mgl64.Vec3{0, aerialHeight + p.HeightOffset, -p.Distance * aerialBackScale})
	return lookAtPose(pos, target)
}

// SpiralUp orbits like Orbit while climbing linearly, capped at spiralMaxClimb.
func SpiralUp(p Parameters, target mgl64.Vec3, elapsed float64) Pose {
	elapsed = ClampElapsed(elapsed)
	climb := math.Min(elapsed*spiralClimbPerSec, spiralMaxClimb)
	angle := orbitAngle(elapsed, p.RotationSpeed)
	return lookAtPose(ring(target, angle, p.Distance, p.HeightOffset+climb), target)
}
