package session

import (
	"github.com/go-gl/mathgl/mgl64"

	"spectate/server/internal/camera"
)

// TargetKind distinguishes fixed points from moving entities.
type TargetKind uint8

const (
	TargetPoint TargetKind = iota + 1
	TargetEntity
)

func (k TargetKind) String() string {
	switch k {
	case TargetPoint:
		return "point"
	case TargetEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Point is a named fixed location.
type Point struct {
	Name     string     `json:"name"`
	World    string     `json:"world"`
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
	Group    string     `json:"group,omitempty"`
}

// Target is what a session looks at. Entity targets are resolved by ID every
// update; point targets never move.
type Target struct {
	Kind     TargetKind
	Name     string
	EntityID string
	Point    Point
}

// PointTarget wraps a named point.
func PointTarget(p Point) Target {
	return Target{Kind: TargetPoint, Name: p.Name, Point: p}
}

// EntityTarget wraps an entity. name is what viewers see; id is what the
// world resolves.
func EntityTarget(id, name string) Target {
	if name == "" {
		name = id
	}
	return Target{Kind: TargetEntity, Name: name, EntityID: id}
}

// Key identifies the target within a playlist.
func (t Target) Key() string {
	return t.Name
}

// IsPoint reports whether t is a fixed point.
func (t Target) IsPoint() bool {
	return t.Kind == TargetPoint
}

// Kinematics is the resolved state of an entity.
type Kinematics struct {
	World    string
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// ControlMode is the host's notion of how a viewer is being driven.
type ControlMode string

const (
	ControlNormal     ControlMode = "normal"
	ControlSpectating ControlMode = "spectating"
)

// Viewers is the host surface the manager drives.
type Viewers interface {
	Known(viewer string) bool
	ControlMode(viewer string) ControlMode
	SetControlMode(viewer string, mode ControlMode)
	Pose(viewer string) camera.Pose
	ApplyPose(viewer string, pose camera.Pose)
	CameraSubject(viewer string) string
	SetCameraSubject(viewer string, subject string)
}

// Entities resolves entity IDs. A false result means the entity is gone.
type Entities interface {
	ResolveEntity(id string) (Kinematics, bool)
}

// PointCatalog resolves named points and groups.
type PointCatalog interface {
	LookupPoint(name string) (Point, bool)
	PointsInGroup(group string) []Point
}
