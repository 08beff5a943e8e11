package world

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
	"spectate/server/logging"
)

func newTestWorld() *World {
	clock := logging.ClockFunc(func() time.Time { return time.Unix(100, 0) })
	return New(Config{Spawn: mgl64.Vec3{10, 64, 10}}, Deps{Clock: clock})
}

func TestNewNormalizesConfig(t *testing.T) {
	w := New(Config{}, Deps{})
	cfg := w.Config()
	if cfg.ID != DefaultID || cfg.MoveSpeed != DefaultMoveSpeed || cfg.Width != DefaultWidth {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Spawn.X() != DefaultWidth/2 || cfg.Spawn.Z() != DefaultDepth/2 {
		t.Fatalf("expected centred spawn, got %v", cfg.Spawn)
	}
}

func TestAddViewerSpawnsAvatar(t *testing.T) {
	w := newTestWorld()
	v, err := w.AddViewer("alice", "")
	if err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	if v.Name != "alice" || v.Mode != session.ControlNormal || v.Subject != "alice" {
		t.Fatalf("unexpected viewer %+v", v)
	}
	if want := (mgl64.Vec3{10, 64 + DefaultEyeHeight, 10}); !v.Pose.Position.ApproxEqual(want) {
		t.Fatalf("expected eye at %v, got %v", want, v.Pose.Position)
	}
	if _, ok := w.ResolveEntity("alice"); !ok {
		t.Fatalf("expected avatar entity to resolve")
	}
	if _, err := w.AddViewer("alice", ""); !errors.Is(err, ErrDuplicateViewer) {
		t.Fatalf("expected duplicate viewer error, got %v", err)
	}

	if !w.RemoveViewer("alice") {
		t.Fatalf("expected viewer removal")
	}
	if _, ok := w.ResolveEntity("alice"); ok {
		t.Fatalf("expected avatar to be removed with its viewer")
	}
}

func TestStepMovesEntitiesAndAttachedCameras(t *testing.T) {
	w := newTestWorld()
	if _, err := w.AddViewer("alice", ""); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	if !w.SetIntent("alice", mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("expected intent to be accepted")
	}
	w.Step(1)

	k, _ := w.ResolveEntity("alice")
	if want := (mgl64.Vec3{10 + DefaultMoveSpeed, 64, 10}); !k.Position.ApproxEqual(want) {
		t.Fatalf("expected avatar at %v, got %v", want, k.Position)
	}
	if !k.Velocity.ApproxEqual(mgl64.Vec3{DefaultMoveSpeed, 0, 0}) {
		t.Fatalf("expected velocity along x, got %v", k.Velocity)
	}
	if got := w.Pose("alice").Position; !got.ApproxEqual(k.Position.Add(mgl64.Vec3{0, DefaultEyeHeight, 0})) {
		t.Fatalf("expected camera to follow avatar, got %v", got)
	}
}

func TestStepClampsToBounds(t *testing.T) {
	w := newTestWorld()
	if err := w.AddEntity(Entity{ID: "drone", Position: mgl64.Vec3{1, 10, 1}, Intent: mgl64.Vec3{-1, 0, 0}}); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	w.Step(1)
	e, _ := w.Entity("drone")
	if e.Position.X() != 0 {
		t.Fatalf("expected clamp at the world edge, got %v", e.Position)
	}
	if e.Velocity.X() != -1 {
		t.Fatalf("expected velocity to reflect the clamped displacement, got %v", e.Velocity)
	}
}

func TestSpectatingViewerIgnoresMovementAndKeepsPose(t *testing.T) {
	w := newTestWorld()
	if _, err := w.AddViewer("alice", ""); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	w.SetIntent("alice", mgl64.Vec3{0, 0, 1})
	w.SetControlMode("alice", session.ControlSpectating)
	if w.SetIntent("alice", mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("expected input to be ignored while spectating")
	}

	pose := camera.Pose{Position: mgl64.Vec3{50, 80, 50}, Yaw: 45, Pitch: -10}
	w.ApplyPose("alice", pose)
	w.Step(1)
	if got := w.Pose("alice"); got != pose {
		t.Fatalf("expected applied pose to stick while spectating, got %+v", got)
	}
	k, _ := w.ResolveEntity("alice")
	if !k.Velocity.ApproxEqual(mgl64.Vec3{}) {
		t.Fatalf("expected avatar to stop when spectating began, got %v", k.Velocity)
	}
}

func TestRemoveEntityKeepsAvatars(t *testing.T) {
	w := newTestWorld()
	w.AddViewer("alice", "")
	w.AddEntity(Entity{ID: "boat"})
	if w.RemoveEntity("alice") {
		t.Fatalf("avatars are removed with their viewer only")
	}
	if !w.RemoveEntity("boat") {
		t.Fatalf("expected entity removal")
	}
	if _, ok := w.ResolveEntity("boat"); ok {
		t.Fatalf("expected removed entity to be unresolvable")
	}
}

func TestPeerTargetsExcludesSelf(t *testing.T) {
	w := newTestWorld()
	for _, id := range []string{"carol", "alice", "bob"} {
		w.AddViewer(id, "")
	}
	peers := w.PeerTargets("alice")
	if len(peers) != 2 || peers[0].Name != "bob" || peers[1].Name != "carol" {
		t.Fatalf("unexpected peers %+v", peers)
	}
	if peers[0].Kind != session.TargetEntity || peers[0].EntityID != "bob" {
		t.Fatalf("expected entity targets, got %+v", peers[0])
	}
}

func TestPointsBook(t *testing.T) {
	book := NewPoints()
	if err := book.Define(session.Point{Name: "bad name"}); !errors.Is(err, ErrInvalidPointName) {
		t.Fatalf("expected invalid name error, got %v", err)
	}
	for _, p := range []session.Point{
		{Name: "tower", Group: "tour"},
		{Name: "bridge", Group: "tour"},
		{Name: "spawn"},
	} {
		if err := book.Define(p); err != nil {
			t.Fatalf("Define %s: %v", p.Name, err)
		}
	}
	members := book.PointsInGroup("tour")
	if len(members) != 2 || members[0].Name != "bridge" || members[1].Name != "tower" {
		t.Fatalf("unexpected group members %+v", members)
	}
	if _, ok := book.LookupPoint("spawn"); !ok {
		t.Fatalf("expected spawn to resolve")
	}
	if !book.Remove("spawn") || book.Remove("spawn") {
		t.Fatalf("expected single removal")
	}
	if n := book.Load([]session.Point{{Name: "a"}, {Name: ""}}); n != 1 {
		t.Fatalf("expected invalid entries to be skipped on load, got %d", n)
	}
}
