package camera

import "math"

// Lerp blends two scalars; t is clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	t = clamp01(t)
	return a + (b-a)*t
}

// NormalizeAngle maps degrees into [-180, 180).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// LerpAngle blends two headings in degrees along the shorter arc.
func LerpAngle(from, to, t float64) float64 {
	delta := NormalizeAngle(to - from)
	return NormalizeAngle(from + delta*clamp01(t))
}

// LerpPose interpolates position linearly, yaw along the shortest arc and
// pitch linearly.
func LerpPose(from, to Pose, t float64) Pose {
	t = clamp01(t)
	return Pose{
		Position: from.Position.Add(to.Position.Sub(from.Position).Mul(t)),
		Yaw:      LerpAngle(from.Yaw, to.Yaw, t),
		Pitch:    Lerp(from.Pitch, to.Pitch, t),
	}
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
