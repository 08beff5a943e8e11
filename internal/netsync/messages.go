// Package netsync defines the messages exchanged between the authoritative
// server and a rendering client that runs its own camera engine. The server
// never sends poses: it sends the engine's inputs and the client computes
// poses locally every frame.
package netsync

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"spectate/server/internal/camera"
)

// Version is the protocol revision spoken by this build. Newer revisions may
// add fields; they never change or remove existing ones.
const Version = 1

// Message type identifiers.
const (
	TypeCapability   = "capability"
	TypeSessionState = "sessionState"
	TypeParameters   = "parameters"
	TypeTargetUpdate = "targetUpdate"
)

// Envelope carries the fields shared by every message.
type Envelope struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
}

// Message is implemented by every protocol message.
type Message interface {
	MessageType() string
}

// Overrides are renderer-side defaults for camera parameters.
type Overrides struct {
	Distance         *float64 `json:"distance,omitempty"`
	HeightOffset     *float64 `json:"heightOffset,omitempty"`
	RotationSpeed    *float64 `json:"rotationSpeed,omitempty"`
	FloatingStrength *float64 `json:"floatingStrength,omitempty"`
	FloatingSpeed    *float64 `json:"floatingSpeed,omitempty"`
	DampingFactor    *float64 `json:"dampingFactor,omitempty"`
	AttractionFactor *float64 `json:"attractionFactor,omitempty"`
}

func (o *Overrides) values() []*float64 {
	return []*float64{o.Distance, o.HeightOffset, o.RotationSpeed, o.FloatingStrength, o.FloatingSpeed, o.DampingFactor, o.AttractionFactor}
}

// Finite reports whether every present override is a finite number.
func (o *Overrides) Finite() bool {
	if o == nil {
		return true
	}
	for _, v := range o.values() {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return false
		}
	}
	return true
}

// Apply overlays the present overrides on p and clamps the result.
func (o *Overrides) Apply(p camera.Parameters) camera.Parameters {
	if o == nil {
		return p
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Distance, o.Distance)
	set(&p.HeightOffset, o.HeightOffset)
	set(&p.RotationSpeed, o.RotationSpeed)
	set(&p.FloatingStrength, o.FloatingStrength)
	set(&p.FloatingSpeed, o.FloatingSpeed)
	set(&p.DampingFactor, o.DampingFactor)
	set(&p.AttractionFactor, o.AttractionFactor)
	return p.Clamped()
}

// CapabilityDeclaration is sent once per connection by a renderer.
type CapabilityDeclaration struct {
	Envelope
	SupportsInterpolation bool       `json:"supportsInterpolation"`
	ProtocolVersion       int        `json:"protocolVersion"`
	Overrides             *Overrides `json:"overrides,omitempty"`
}

func (CapabilityDeclaration) MessageType() string { return TypeCapability }

// Action is the session transition announced by SessionState.
type Action string

const (
	ActionStart  Action = "start"
	ActionUpdate Action = "update"
	ActionStop   Action = "stop"
)

// Coordinate is a plain world-space position.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CoordinateOf converts a vector.
func CoordinateOf(v mgl64.Vec3) Coordinate {
	return Coordinate{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// Vec converts back to a vector.
func (c Coordinate) Vec() mgl64.Vec3 {
	return mgl64.Vec3{c.X, c.Y, c.Z}
}

// SessionState announces one session transition.
type SessionState struct {
	Envelope
	Action        Action          `json:"action"`
	IsPoint       bool            `json:"isPoint"`
	TargetID      string          `json:"targetId,omitempty"`
	PointPosition *Coordinate     `json:"pointPosition,omitempty"`
	WorldID       string          `json:"worldId"`
	Mode          camera.ViewMode `json:"mode"`
	SessionID     string          `json:"sessionId,omitempty"`
	TargetName    string          `json:"targetName,omitempty"`
}

func (SessionState) MessageType() string { return TypeSessionState }

// Parameters carries the camera parameters and the session time anchor.
type Parameters struct {
	Envelope
	Distance         float64 `json:"distance"`
	HeightOffset     float64 `json:"heightOffset"`
	RotationSpeed    float64 `json:"rotationSpeed"`
	FloatingStrength float64 `json:"floatingStrength"`
	FloatingSpeed    float64 `json:"floatingSpeed"`
	DampingFactor    float64 `json:"dampingFactor"`
	AttractionFactor float64 `json:"attractionFactor"`
	InitialAngle     float64 `json:"initialAngle"`
	StartTimestamp   int64   `json:"startTimestamp"`

	// Absent on the wire means the renderer keeps its own default. Zero is a
	// valid value for all four.
	OrbitRadius        *float64 `json:"orbitRadius,omitempty"`
	HeightVariation    *float64 `json:"heightVariation,omitempty"`
	BreathingFrequency *float64 `json:"breathingFrequency,omitempty"`
	PredictionFactor   *float64 `json:"predictionFactor,omitempty"`
}

func (Parameters) MessageType() string { return TypeParameters }

// ParametersFrom builds the wire form of p anchored at start.
func ParametersFrom(p camera.Parameters, initialAngle float64, start time.Time) Parameters {
	return Parameters{
		Distance:           p.Distance,
		HeightOffset:       p.HeightOffset,
		RotationSpeed:      p.RotationSpeed,
		FloatingStrength:   p.FloatingStrength,
		FloatingSpeed:      p.FloatingSpeed,
		DampingFactor:      p.DampingFactor,
		AttractionFactor:   p.AttractionFactor,
		InitialAngle:       initialAngle,
		StartTimestamp:     start.UnixMilli(),
		OrbitRadius:        float(p.OrbitRadius),
		HeightVariation:    float(p.HeightVariation),
		BreathingFrequency: float(p.BreathingFrequency),
		PredictionFactor:   float(p.PredictionFactor),
	}
}

// Camera converts back to engine parameters. Fields an older server did not
// send keep their defaults.
func (m Parameters) Camera() camera.Parameters {
	p := camera.DefaultParameters()
	p.Distance = m.Distance
	p.HeightOffset = m.HeightOffset
	p.RotationSpeed = m.RotationSpeed
	p.FloatingStrength = m.FloatingStrength
	p.FloatingSpeed = m.FloatingSpeed
	p.DampingFactor = m.DampingFactor
	p.AttractionFactor = m.AttractionFactor
	if m.OrbitRadius != nil {
		p.OrbitRadius = *m.OrbitRadius
	}
	if m.HeightVariation != nil {
		p.HeightVariation = *m.HeightVariation
	}
	if m.BreathingFrequency != nil {
		p.BreathingFrequency = *m.BreathingFrequency
	}
	if m.PredictionFactor != nil {
		p.PredictionFactor = *m.PredictionFactor
	}
	return p.Clamped()
}

func float(v float64) *float64 {
	return &v
}

// Start reports the session time anchor.
func (m Parameters) Start() time.Time {
	return time.UnixMilli(m.StartTimestamp)
}

// TargetUpdate is a rate-limited kinematic sample of a moving target.
type TargetUpdate struct {
	Envelope
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	VelX       float64 `json:"velX"`
	VelY       float64 `json:"velY"`
	VelZ       float64 `json:"velZ"`
	ServerTime int64   `json:"serverTime"`
}

func (TargetUpdate) MessageType() string { return TypeTargetUpdate }

// TargetUpdateFrom builds the wire form of a sample.
func TargetUpdateFrom(sample camera.TargetSample) TargetUpdate {
	return TargetUpdate{
		X:          sample.Position.X(),
		Y:          sample.Position.Y(),
		Z:          sample.Position.Z(),
		VelX:       sample.Velocity.X(),
		VelY:       sample.Velocity.Y(),
		VelZ:       sample.Velocity.Z(),
		ServerTime: sample.Time.UnixMilli(),
	}
}

// Sample converts back to an engine sample.
func (m TargetUpdate) Sample() camera.TargetSample {
	return camera.TargetSample{
		Position: mgl64.Vec3{m.X, m.Y, m.Z},
		Velocity: mgl64.Vec3{m.VelX, m.VelY, m.VelZ},
		Time:     time.UnixMilli(m.ServerTime),
	}
}
