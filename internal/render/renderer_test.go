package render

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

func orbitParams() camera.Parameters {
	p := camera.DefaultParameters()
	p.Distance = 10
	p.HeightOffset = 0
	p.RotationSpeed = 90
	return p
}

func startPoint(r *Renderer, at time.Time, pos mgl64.Vec3, mode camera.ViewMode, params camera.Parameters) {
	coord := netsync.CoordinateOf(pos)
	r.Handle(netsync.SessionState{Action: netsync.ActionStart, IsPoint: true, PointPosition: &coord, WorldID: "overworld", Mode: mode}, at)
	r.Handle(netsync.ParametersFrom(params, 0, at), at)
}

func TestFrameWithoutSessionRendersNothing(t *testing.T) {
	r := New(camera.DefaultParameters())
	_, ok := r.Frame(time.Unix(0, 0), 0.016)
	assert.False(t, ok)
}

func TestPointOrbitMatchesServerFormula(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	target := mgl64.Vec3{5, 64, 5}
	startPoint(r, base, target, camera.ModeOrbit, orbitParams())

	pose, ok := r.Frame(base.Add(time.Second), 0.016)
	require.True(t, ok)
	if diff := cmp.Diff(camera.Orbit(orbitParams(), target, 1), pose, approx); diff != "" {
		t.Fatalf("first frame should snap to computed pose (-want +got):\n%s", diff)
	}
}

func TestPoseInterpolatesBetweenComputedFrames(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	target := mgl64.Vec3{}
	startPoint(r, base, target, camera.ModeOrbit, orbitParams())

	first, ok := r.Frame(base, 0.05)
	require.True(t, ok)
	second, ok := r.Frame(base.Add(50*time.Millisecond), 0.05)
	require.True(t, ok)
	if diff := cmp.Diff(camera.Orbit(orbitParams(), target, 0.05), second, approx); diff != "" {
		t.Fatalf("frame should return the computed pose (-want +got):\n%s", diff)
	}

	mid, ok := r.Pose(0.5)
	require.True(t, ok)
	want := first.Position.Add(second.Position).Mul(0.5)
	if diff := cmp.Diff(want, mid.Position, approx); diff != "" {
		t.Fatalf("midpoint position mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, camera.LerpAngle(first.Yaw, second.Yaw, 0.5), mid.Yaw, 1e-9)

	start, _ := r.Pose(0)
	assert.Equal(t, first, start)
	end, _ := r.Pose(1)
	assert.Equal(t, second, end)
}

func TestStalledFrameAdvancesElapsedByOneStep(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	target := mgl64.Vec3{5, 64, 5}
	startPoint(r, base, target, camera.ModeOrbit, orbitParams())

	_, ok := r.Frame(base, 0.016)
	require.True(t, ok)
	pose, ok := r.Frame(base.Add(2*time.Second), 2)
	require.True(t, ok)
	if diff := cmp.Diff(camera.Orbit(orbitParams(), target, camera.MaxStep), pose, approx); diff != "" {
		t.Fatalf("stalled frame pose mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityTargetExtrapolatesWithCap(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	r.Handle(netsync.SessionState{Action: netsync.ActionStart, TargetID: "e1", WorldID: "overworld", Mode: camera.ModeFollow}, base)
	r.Handle(netsync.ParametersFrom(camera.DefaultParameters(), 0, base), base)

	_, ok := r.Frame(base, 0.016)
	assert.False(t, ok, "no target sample yet")

	r.Handle(netsync.TargetUpdate{X: 0, Y: 64, Z: 0, VelX: 2, ServerTime: base.UnixMilli()}, base)
	pose, ok := r.Frame(base.Add(200*time.Millisecond), 0.016)
	require.True(t, ok)
	want := camera.Follow(camera.DefaultParameters(), mgl64.Vec3{0.4, 64, 0}, 0)
	if diff := cmp.Diff(want, pose, approx); diff != "" {
		t.Fatalf("extrapolated pose mismatch (-want +got):\n%s", diff)
	}

	pose, _ = r.Frame(base.Add(10*time.Second), 0.016)
	want = camera.Follow(camera.DefaultParameters(), mgl64.Vec3{2 * MaxExtrapolation, 64, 0}, 0)
	if diff := cmp.Diff(want, pose, approx); diff != "" {
		t.Fatalf("capped extrapolation mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleTargetUpdateIgnored(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	r.Handle(netsync.SessionState{Action: netsync.ActionStart, TargetID: "e1", Mode: camera.ModeFollow}, base)
	r.Handle(netsync.TargetUpdate{X: 10, ServerTime: base.Add(time.Second).UnixMilli()}, base.Add(time.Second))
	r.Handle(netsync.TargetUpdate{X: -10, ServerTime: base.UnixMilli()}, base.Add(time.Second))
	assert.Equal(t, 10.0, r.sample.Position.X())
}

func TestStopEndsRendering(t *testing.T) {
	r := New(camera.DefaultParameters())
	base := time.Unix(100, 0)
	startPoint(r, base, mgl64.Vec3{}, camera.ModeAerialView, camera.DefaultParameters())
	_, ok := r.Frame(base, 0.016)
	require.True(t, ok)

	r.Handle(netsync.SessionState{Action: netsync.ActionStop, IsPoint: true, Mode: camera.ModeAerialView}, base)
	assert.False(t, r.Active())
	_, ok = r.Frame(base.Add(time.Second), 0.016)
	assert.False(t, ok)
}

func TestDeclarationAdvertisesInterpolation(t *testing.T) {
	decl := New(camera.DefaultParameters()).Declaration(nil)
	assert.True(t, decl.SupportsInterpolation)
	assert.Equal(t, netsync.Version, decl.ProtocolVersion)
}
