package session

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
	"spectate/server/logging"
)

type fakeViewer struct {
	mode    ControlMode
	pose    camera.Pose
	subject string
	applied int
}

type fakeHost struct {
	viewers  map[string]*fakeViewer
	entities map[string]Kinematics
}

func newFakeHost() *fakeHost {
	return &fakeHost{viewers: make(map[string]*fakeViewer), entities: make(map[string]Kinematics)}
}

func (h *fakeHost) join(name string, pose camera.Pose) *fakeViewer {
	v := &fakeViewer{mode: ControlNormal, pose: pose, subject: name}
	h.viewers[name] = v
	return v
}

func (h *fakeHost) Known(viewer string) bool { _, ok := h.viewers[viewer]; return ok }
func (h *fakeHost) ControlMode(viewer string) ControlMode {
	return h.viewers[viewer].mode
}
func (h *fakeHost) SetControlMode(viewer string, mode ControlMode) {
	if v, ok := h.viewers[viewer]; ok {
		v.mode = mode
	}
}
func (h *fakeHost) Pose(viewer string) camera.Pose { return h.viewers[viewer].pose }
func (h *fakeHost) ApplyPose(viewer string, pose camera.Pose) {
	if v, ok := h.viewers[viewer]; ok {
		v.pose = pose
		v.applied++
	}
}
func (h *fakeHost) CameraSubject(viewer string) string { return h.viewers[viewer].subject }
func (h *fakeHost) SetCameraSubject(viewer string, subject string) {
	if v, ok := h.viewers[viewer]; ok {
		v.subject = subject
	}
}
func (h *fakeHost) ResolveEntity(id string) (Kinematics, bool) {
	k, ok := h.entities[id]
	return k, ok
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }
func (c *manualClock) advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

type recordingSync struct {
	declared map[string]bool
	states   []netsync.SessionState
	params   []netsync.Parameters
	targets  int
}

func (s *recordingSync) Supports(viewer string) bool { return s.declared[viewer] }
func (s *recordingSync) SessionState(viewer string, msg netsync.SessionState) error {
	s.states = append(s.states, msg)
	return nil
}
func (s *recordingSync) Parameters(viewer string, msg netsync.Parameters) error {
	s.params = append(s.params, msg)
	return nil
}
func (s *recordingSync) TargetUpdate(viewer string, msg netsync.TargetUpdate, now time.Time) (bool, error) {
	s.targets++
	return true, nil
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func orbitParams() camera.Parameters {
	p := camera.DefaultParameters()
	p.Distance = 10
	p.HeightOffset = 0
	p.RotationSpeed = 90
	return p
}

func newTestManager(host *fakeHost, clock *manualClock, sync Sync) *Manager {
	return NewManager(Config{
		Viewers:   host,
		Entities:  host,
		Sync:      sync,
		Clock:     clock,
		Publisher: logging.NopPublisher(),
	})
}

var pointA = Point{Name: "A", World: "overworld", Position: mgl64.Vec3{100, 64, 100}}
var pointB = Point{Name: "B", World: "overworld", Position: mgl64.Vec3{-50, 70, 20}}

func TestStartCapturesAndStopRestoresOriginal(t *testing.T) {
	host := newFakeHost()
	original := camera.Pose{Position: mgl64.Vec3{1, 2, 3}, Yaw: 45, Pitch: -10}
	viewer := host.join("alice", original)
	clock := &manualClock{now: time.Unix(1000, 0)}
	m := newTestManager(host, clock, nil)

	info, err := m.Start("alice", PointTarget(pointA), camera.ModeOrbit, orbitParams(), StartOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, ControlSpectating, viewer.mode)
	assert.Equal(t, "", viewer.subject)
	assert.True(t, m.IsActive("alice"))

	// Quarter turn after one second of 20 Hz updates.
	for i := 1; i <= 20; i++ {
		m.Tick(uint64(i), clock.advance(50*time.Millisecond))
	}
	if diff := cmp.Diff(pointA.Position.Add(mgl64.Vec3{10, 0, 0}), viewer.pose.Position, approx); diff != "" {
		t.Fatalf("orbit pose mismatch (-want +got):\n%s", diff)
	}

	require.True(t, m.Stop("alice"))
	assert.Equal(t, ControlNormal, viewer.mode)
	assert.Equal(t, original, viewer.pose)
	assert.Equal(t, "alice", viewer.subject)
	assert.Equal(t, 0, m.Originals().Len())
	assert.Equal(t, 0, m.tasks.Len())

	assert.False(t, m.Stop("alice"), "second stop must be a no-op")
	assert.Equal(t, original, viewer.pose)
}

func TestStartWhileActiveRequiresForce(t *testing.T) {
	host := newFakeHost()
	host.join("alice", camera.Pose{})
	clock := &manualClock{now: time.Unix(1000, 0)}
	m := newTestManager(host, clock, nil)

	_, err := m.Start("alice", PointTarget(pointA), camera.ModeOrbit, orbitParams(), StartOptions{})
	require.NoError(t, err)
	_, err = m.Start("alice", PointTarget(pointB), camera.ModeOrbit, orbitParams(), StartOptions{})
	assert.True(t, errors.Is(err, ErrAlreadySpectating))

	info, ok := m.Session("alice")
	require.True(t, ok)
	assert.Equal(t, "A", info.Target)
}

func TestForceSwitchKeepsOriginalAndSingleTask(t *testing.T) {
	host := newFakeHost()
	original := camera.Pose{Position: mgl64.Vec3{7, 7, 7}}
	viewer := host.join("alice", original)
	clock := &manualClock{now: time.Unix(1000, 0)}
	m := newTestManager(host, clock, nil)

	first, err := m.Start("alice", PointTarget(pointA), camera.ModeOrbit, orbitParams(), StartOptions{})
	require.NoError(t, err)
	m.Tick(1, clock.advance(3*time.Second))

	switched, err := m.ForceSwitch("alice", PointTarget(pointB), camera.ModeOrbit, orbitParams())
	require.NoError(t, err)
	assert.Equal(t, first.ID, switched.ID)
	assert.Equal(t, "B", switched.Target)
	assert.Equal(t, 1, m.tasks.Len())

	// The new target's t=0 pose is applied before ForceSwitch returns.
	if diff := cmp.Diff(pointB.Position.Add(mgl64.Vec3{0, 0, 10}), viewer.pose.Position, approx); diff != "" {
		t.Fatalf("switched pose mismatch (-want +got):\n%s", diff)
	}

	// Every later update orbits B; nothing scheduled for A fires again.
	for i := 2; i <= 21; i++ {
		m.Tick(uint64(i), clock.advance(50*time.Millisecond))
		offset := viewer.pose.Position.Sub(pointB.Position)
		require.InDelta(t, 10, mgl64.Vec2{offset.X(), offset.Z()}.Len(), 1e-9, "tick %d", i)
		require.InDelta(t, 0, offset.Y(), 1e-9, "tick %d", i)
	}
	assert.Equal(t, 1, m.tasks.Len())
	if diff := cmp.Diff(pointB.Position.Add(mgl64.Vec3{10, 0, 0}), viewer.pose.Position, approx); diff != "" {
		t.Fatalf("pose one second after switch (-want +got):\n%s", diff)
	}

	require.True(t, m.Stop("alice"))
	assert.Equal(t, original, viewer.pose)
}

func TestStalledTickAdvancesElapsedByOneStep(t *testing.T) {
	host := newFakeHost()
	viewer := host.join("alice", camera.Pose{})
	clock := &manualClock{now: time.Unix(1000, 0)}
	m := newTestManager(host, clock, nil)

	_, err := m.Start("alice", PointTarget(pointA), camera.ModeOrbit, orbitParams(), StartOptions{})
	require.NoError(t, err)
	before := viewer.pose.Position

	m.Tick(1, clock.advance(2*time.Second))
	want := camera.Orbit(orbitParams(), pointA.Position, camera.MaxStep).Position
	if diff := cmp.Diff(want, viewer.pose.Position, approx); diff != "" {
		t.Fatalf("stalled tick pose mismatch (-want +got):\n%s", diff)
	}
	// 9 degrees of a radius 10 orbit.
	assert.Less(t, viewer.pose.Position.Sub(before).Len(), 1.6)
}

func TestForceSwitchWithoutSessionStartsOne(t *testing.T) {
	host := newFakeHost()
	host.join("alice", camera.Pose{})
	m := newTestManager(host, &manualClock{now: time.Unix(0, 0)}, nil)
	_, err := m.ForceSwitch("alice", PointTarget(pointA), camera.ModeFollow, camera.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestEntityLostStopsSessionAndNotifies(t *testing.T) {
	host := newFakeHost()
	original := camera.Pose{Position: mgl64.Vec3{5, 5, 5}}
	viewer := host.join("alice", original)
	host.entities["bob"] = Kinematics{World: "overworld", Position: mgl64.Vec3{0, 64, 0}}
	clock := &manualClock{now: time.Unix(1000, 0)}

	var lost []string
	m := NewManager(Config{
		Viewers:  host,
		Entities: host,
		Clock:    clock,
		OnTargetLost: func(viewer string, target Target) {
			lost = append(lost, viewer+"->"+target.EntityID)
		},
	})

	info, err := m.Start("alice", EntityTarget("bob", "Bob"), camera.ModeFollow, camera.DefaultParameters(), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "overworld", info.World)

	delete(host.entities, "bob")
	m.Tick(1, clock.advance(100*time.Millisecond))

	assert.False(t, m.IsActive("alice"))
	assert.Equal(t, []string{"alice->bob"}, lost)
	assert.Equal(t, original, viewer.pose)
	assert.Equal(t, ControlNormal, viewer.mode)
}

func TestStartRejectsBadInput(t *testing.T) {
	host := newFakeHost()
	host.join("alice", camera.Pose{})
	m := newTestManager(host, &manualClock{now: time.Unix(0, 0)}, nil)

	_, err := m.Start("alice", EntityTarget("ghost", ""), camera.ModeOrbit, camera.DefaultParameters(), StartOptions{})
	assert.True(t, errors.Is(err, ErrTargetUnresolvable))

	_, err = m.Start("alice", PointTarget(pointA), camera.ViewMode(42), camera.DefaultParameters(), StartOptions{})
	assert.True(t, errors.Is(err, camera.ErrUnknownMode))

	bad := camera.DefaultParameters()
	bad.DampingFactor = 2
	_, err = m.Start("alice", PointTarget(pointA), camera.ModeOrbit, bad, StartOptions{})
	assert.True(t, errors.Is(err, camera.ErrInvalidParameter))

	_, err = m.Start("nobody", PointTarget(pointA), camera.ModeOrbit, camera.DefaultParameters(), StartOptions{})
	assert.True(t, errors.Is(err, ErrUnknownViewer))

	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, 0, m.Originals().Len())
}

func TestSetParameterRejectsOutOfRange(t *testing.T) {
	host := newFakeHost()
	host.join("alice", camera.Pose{})
	m := newTestManager(host, &manualClock{now: time.Unix(0, 0)}, nil)
	_, err := m.Start("alice", PointTarget(pointA), camera.ModeOrbit, camera.DefaultParameters(), StartOptions{})
	require.NoError(t, err)

	err = m.SetParameter("alice", "distance", 1000)
	assert.True(t, errors.Is(err, camera.ErrInvalidParameter))
	info, _ := m.Session("alice")
	assert.Equal(t, camera.DefaultParameters().Distance, info.Params.Distance)

	require.NoError(t, m.SetParameter("alice", "distance", 12))
	info, _ = m.Session("alice")
	assert.Equal(t, 12.0, info.Params.Distance)

	assert.True(t, errors.Is(m.SetParameter("bob", "distance", 12), ErrNoActiveSession))
}

func TestNetworkedViewerReceivesMessagesInsteadOfPoses(t *testing.T) {
	host := newFakeHost()
	viewer := host.join("alice", camera.Pose{})
	host.entities["bob"] = Kinematics{World: "nether", Position: mgl64.Vec3{1, 2, 3}, Velocity: mgl64.Vec3{1, 0, 0}}
	clock := &manualClock{now: time.Unix(1000, 0)}
	sync := &recordingSync{declared: map[string]bool{"alice": true}}
	m := newTestManager(host, clock, sync)

	_, err := m.Start("alice", EntityTarget("bob", "Bob"), camera.ModeFloating, camera.DefaultParameters(), StartOptions{})
	require.NoError(t, err)
	require.Len(t, sync.states, 1)
	assert.Equal(t, netsync.ActionStart, sync.states[0].Action)
	assert.Equal(t, "bob", sync.states[0].TargetID)
	assert.Equal(t, "nether", sync.states[0].WorldID)
	require.Len(t, sync.params, 1)
	assert.Equal(t, clock.now.UnixMilli(), sync.params[0].StartTimestamp)

	applied := viewer.applied
	for i := 0; i < 10; i++ {
		m.Tick(uint64(i), clock.advance(50*time.Millisecond))
	}
	assert.Equal(t, applied, viewer.applied, "networked sessions do not drive poses each tick")
	assert.Equal(t, 11, sync.targets)

	m.Stop("alice")
	require.Len(t, sync.states, 2)
	assert.Equal(t, netsync.ActionStop, sync.states[1].Action)
}

func TestSuspendReturnsDescriptor(t *testing.T) {
	host := newFakeHost()
	original := camera.Pose{Yaw: 12}
	viewer := host.join("alice", original)
	m := newTestManager(host, &manualClock{now: time.Unix(0, 0)}, nil)
	_, err := m.Start("alice", PointTarget(pointA), camera.ModeSpiralUp, camera.DefaultParameters(), StartOptions{})
	require.NoError(t, err)

	desc, ok := m.Suspend("alice")
	require.True(t, ok)
	assert.Equal(t, Descriptor{Kind: DescriptorPoint, Ref: "A", Mode: camera.ModeSpiralUp}, desc)
	assert.Equal(t, original, viewer.pose)

	_, ok = m.Suspend("alice")
	assert.False(t, ok)
}
