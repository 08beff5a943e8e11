// Package world is the in-process host environment the camera core runs
// against: connected viewers with their avatars, tracked entities and the
// named point book. It is not safe for concurrent use; the hub serializes
// every call on its tick goroutine.
package world

import (
	"errors"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
	"spectate/server/logging"
)

var (
	// ErrDuplicateViewer is returned when a viewer ID is already connected.
	ErrDuplicateViewer = errors.New("world: viewer already present")
	// ErrDuplicateEntity is returned when an entity ID is already tracked.
	ErrDuplicateEntity = errors.New("world: entity already present")
)

// Viewer is a connected party. Its avatar is the entity with the same ID.
type Viewer struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Mode     session.ControlMode `json:"mode"`
	Pose     camera.Pose         `json:"pose"`
	Subject  string              `json:"subject"`
	JoinedAt time.Time           `json:"joinedAt"`
}

// Entity is a tracked moving subject.
type Entity struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
	Intent   mgl64.Vec3 `json:"-"`
	Avatar   bool       `json:"avatar"`
}

// Deps bundles runtime dependencies required to construct a World.
type Deps struct {
	Clock     logging.Clock
	Publisher logging.Publisher
}

// World owns viewers, entities and points.
type World struct {
	config Config
	clock  logging.Clock

	viewers  map[string]*Viewer
	entities map[string]*Entity
	points   *Points
}

// New constructs a world with normalized configuration.
func New(cfg Config, deps Deps) *World {
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &World{
		config:   cfg.normalized(),
		clock:    clock,
		viewers:  make(map[string]*Viewer),
		entities: make(map[string]*Entity),
		points:   NewPoints(),
	}
}

// Config returns the normalized configuration.
func (w *World) Config() Config {
	return w.config
}

// ID returns the world identifier carried in session messages.
func (w *World) ID() string {
	return w.config.ID
}

// Points exposes the named point book.
func (w *World) Points() *Points {
	return w.points
}

// AddViewer registers a viewer and spawns its avatar. A fresh viewer is in
// normal control with its camera attached to its own avatar.
func (w *World) AddViewer(id, name string) (Viewer, error) {
	if _, exists := w.viewers[id]; exists {
		return Viewer{}, ErrDuplicateViewer
	}
	if name == "" {
		name = id
	}
	if err := w.AddEntity(Entity{ID: id, Name: name, Position: w.config.Spawn, Avatar: true}); err != nil {
		return Viewer{}, err
	}
	v := &Viewer{
		ID:       id,
		Name:     name,
		Mode:     session.ControlNormal,
		Pose:     camera.Pose{Position: w.eye(w.config.Spawn)},
		Subject:  id,
		JoinedAt: w.clock.Now(),
	}
	w.viewers[id] = v
	return *v, nil
}

// RemoveViewer drops the viewer and its avatar.
func (w *World) RemoveViewer(id string) bool {
	if _, ok := w.viewers[id]; !ok {
		return false
	}
	delete(w.viewers, id)
	delete(w.entities, id)
	return true
}

// Viewer returns a copy of the viewer's state.
func (w *World) Viewer(id string) (Viewer, bool) {
	v, ok := w.viewers[id]
	if !ok {
		return Viewer{}, false
	}
	return *v, true
}

// Viewers lists viewers by ID.
func (w *World) Viewers() []Viewer {
	out := make([]Viewer, 0, len(w.viewers))
	for _, v := range w.viewers {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddEntity starts tracking an entity.
func (w *World) AddEntity(e Entity) error {
	if _, exists := w.entities[e.ID]; exists {
		return ErrDuplicateEntity
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	e.Position = w.config.clamp(e.Position)
	w.entities[e.ID] = &e
	return nil
}

// RemoveEntity stops tracking an entity. Sessions following it notice on
// their next update.
func (w *World) RemoveEntity(id string) bool {
	e, ok := w.entities[id]
	if !ok || e.Avatar {
		return false
	}
	delete(w.entities, id)
	return true
}

// Entity returns a copy of the entity's state.
func (w *World) Entity(id string) (Entity, bool) {
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Entities lists entities by ID.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetIntent sets an entity's desired movement direction. Input for the avatar
// of a spectating viewer is ignored.
func (w *World) SetIntent(id string, intent mgl64.Vec3) bool {
	e, ok := w.entities[id]
	if !ok {
		return false
	}
	if v, isViewer := w.viewers[id]; isViewer && v.Mode == session.ControlSpectating {
		return false
	}
	e.Intent = intent
	return true
}

// Step advances entity movement by dt seconds and re-attaches the camera of
// every viewer in normal control to its subject.
func (w *World) Step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	for _, e := range w.entities {
		intent := e.Intent
		if intent.Len() > 1 {
			intent = intent.Normalize()
		}
		e.Velocity = intent.Mul(w.config.MoveSpeed)
		next := w.config.clamp(e.Position.Add(e.Velocity.Mul(dt)))
		if dt > 0 {
			e.Velocity = next.Sub(e.Position).Mul(1 / dt)
		}
		e.Position = next
	}
	for _, v := range w.viewers {
		if v.Mode != session.ControlNormal {
			continue
		}
		if subject, ok := w.entities[v.Subject]; ok {
			v.Pose.Position = w.eye(subject.Position)
		}
	}
}

func (w *World) eye(feet mgl64.Vec3) mgl64.Vec3 {
	return feet.Add(mgl64.Vec3{0, w.config.EyeHeight, 0})
}

func (w *World) Known(viewer string) bool {
	_, ok := w.viewers[viewer]
	return ok
}

func (w *World) ControlMode(viewer string) session.ControlMode {
	if v, ok := w.viewers[viewer]; ok {
		return v.Mode
	}
	return session.ControlNormal
}

func (w *World) SetControlMode(viewer string, mode session.ControlMode) {
	v, ok := w.viewers[viewer]
	if !ok {
		return
	}
	v.Mode = mode
	if mode == session.ControlSpectating {
		if e, ok := w.entities[viewer]; ok {
			e.Intent = mgl64.Vec3{}
		}
	}
}

func (w *World) Pose(viewer string) camera.Pose {
	if v, ok := w.viewers[viewer]; ok {
		return v.Pose
	}
	return camera.Pose{}
}

func (w *World) ApplyPose(viewer string, pose camera.Pose) {
	if v, ok := w.viewers[viewer]; ok {
		v.Pose = pose
	}
}

func (w *World) CameraSubject(viewer string) string {
	if v, ok := w.viewers[viewer]; ok {
		return v.Subject
	}
	return ""
}

func (w *World) SetCameraSubject(viewer string, subject string) {
	if v, ok := w.viewers[viewer]; ok {
		v.Subject = subject
	}
}

// ResolveEntity reads an entity's kinematics for the session manager.
func (w *World) ResolveEntity(id string) (session.Kinematics, bool) {
	e, ok := w.entities[id]
	if !ok {
		return session.Kinematics{}, false
	}
	return session.Kinematics{World: w.config.ID, Position: e.Position, Velocity: e.Velocity}, true
}

// PeerTargets lists every connected viewer's avatar as a session target,
// excluding the given viewer.
func (w *World) PeerTargets(except string) []session.Target {
	var peers []session.Target
	for _, v := range w.Viewers() {
		if v.ID == except {
			continue
		}
		peers = append(peers, session.EntityTarget(v.ID, v.Name))
	}
	return peers
}

var (
	_ session.Viewers      = (*World)(nil)
	_ session.Entities     = (*World)(nil)
	_ session.PointCatalog = (*Points)(nil)
)
