package camera

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// TargetSample is the authoritative side's latest observation of the watched
// subject. Velocity is in blocks per second and may be zero.
type TargetSample struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Time     time.Time
}

// StaticSample wraps a fixed point as a sample with zero velocity.
func StaticSample(pos mgl64.Vec3, at time.Time) TargetSample {
	return TargetSample{Position: pos, Time: at}
}

// Pose is a camera position with yaw and pitch in degrees.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
}

// LookAt orients a camera at from so that it faces to.
func LookAt(from, to mgl64.Vec3) (yaw, pitch float64) {
	d := to.Sub(from)
	yaw = math.Atan2(d.Z(), d.X())*180/math.Pi - 90
	pitch = -math.Atan2(d.Y(), math.Hypot(d.X(), d.Z())) * 180 / math.Pi
	return yaw, pitch
}

func lookAtPose(from, to mgl64.Vec3) Pose {
	yaw, pitch := LookAt(from, to)
	return Pose{Position: from, Yaw: yaw, Pitch: pitch}
}
