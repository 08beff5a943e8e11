package cycle

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }
func (c *manualClock) advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

type fakeSessions struct {
	switches     []string
	stops        int
	active       map[string]bool
	unresolvable map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[string]bool), unresolvable: make(map[string]bool)}
}

func (f *fakeSessions) ForceSwitch(viewer string, target session.Target, mode camera.ViewMode, params camera.Parameters) (session.Info, error) {
	if f.unresolvable[target.Key()] {
		return session.Info{}, session.ErrTargetUnresolvable
	}
	f.switches = append(f.switches, target.Key())
	f.active[viewer] = true
	return session.Info{Viewer: viewer, Target: target.Key(), Mode: mode}, nil
}

func (f *fakeSessions) Stop(viewer string) bool {
	if !f.active[viewer] {
		return false
	}
	f.stops++
	delete(f.active, viewer)
	return true
}

func (f *fakeSessions) IsActive(viewer string) bool { return f.active[viewer] }

func point(name string, x float64) session.Target {
	return session.PointTarget(session.Point{Name: name, World: "overworld", Position: mgl64.Vec3{x, 64, 0}})
}

func newTestScheduler(sessions Sessions, clock *manualClock, notifier Notifier) *Scheduler {
	return NewScheduler(Config{Sessions: sessions, Clock: clock, Notifier: notifier})
}

func fill(t *testing.T, s *Scheduler, viewer string, names ...string) {
	t.Helper()
	for i, name := range names {
		require.NoError(t, s.AddTarget(viewer, point(name, float64(i*10))))
	}
}

func TestRemoveBeforeIndexReclamps(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B", "C")
	require.NoError(t, s.Start("alice", camera.ModeOrbit))
	require.NoError(t, s.Advance("alice", true))
	require.NoError(t, s.Advance("alice", true))

	status, ok := s.Status("alice")
	require.True(t, ok)
	require.Equal(t, 2, status.Index)

	require.NoError(t, s.RemoveTarget("alice", "A"))
	status, _ = s.Status("alice")
	assert.Equal(t, 1, status.Index)
	assert.Equal(t, "C", status.Current)
	assert.Equal(t, "running", status.State)
	assert.Equal(t, []string{"A", "B", "C", "C"}, sessions.switches, "running playlist restarts on the mutated list")
}

func TestRemoveCurrentLastEntryClampsToEnd(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B", "C")
	require.NoError(t, s.Start("alice", camera.ModeOrbit))
	require.NoError(t, s.Advance("alice", false))
	require.NoError(t, s.Advance("alice", false))

	require.NoError(t, s.RemoveTarget("alice", "C"))
	status, _ := s.Status("alice")
	assert.Equal(t, 1, status.Index)
	assert.Equal(t, "B", status.Current)
}

func TestRemovingLastEntryStopsCycle(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A")
	require.NoError(t, s.Start("alice", camera.ModeOrbit))

	require.NoError(t, s.RemoveTarget("alice", "A"))
	assert.False(t, s.Running("alice"))
	assert.False(t, sessions.IsActive("alice"))
	assert.Equal(t, 0, s.tasks.Len())
}

func TestAddAndRemoveErrors(t *testing.T) {
	s := newTestScheduler(newFakeSessions(), &manualClock{now: time.Unix(0, 0)}, nil)
	assert.True(t, errors.Is(s.RemoveTarget("alice", "A"), ErrNoPlaylist))
	fill(t, s, "alice", "A")
	assert.True(t, errors.Is(s.AddTarget("alice", point("A", 99)), ErrDuplicateTarget))
	assert.True(t, errors.Is(s.RemoveTarget("alice", "Z"), ErrUnknownTarget))
	assert.True(t, errors.Is(s.SetDwellSeconds("alice", 0), ErrInvalidDwell))
	assert.True(t, errors.Is(s.Start("bob", camera.ModeOrbit), ErrEmptyPlaylist))
	assert.True(t, errors.Is(s.Advance("alice", true), session.ErrNoActiveSession))
	assert.False(t, s.Stop("alice"))
}

func TestTimerAdvancesSilentlyManualReports(t *testing.T) {
	sessions := newFakeSessions()
	clock := &manualClock{now: time.Unix(0, 0)}
	var reported []Progress
	s := newTestScheduler(sessions, clock, NotifierFunc(func(viewer string, p Progress) {
		reported = append(reported, p)
	}))
	fill(t, s, "alice", "A", "B", "C")
	require.NoError(t, s.SetDwellSeconds("alice", 2))
	require.NoError(t, s.Start("alice", camera.ModeSlowOrbit))

	s.Tick(1, clock.advance(2*time.Second))
	assert.Equal(t, []string{"A", "B"}, sessions.switches)
	assert.Empty(t, reported)

	s.Tick(2, clock.advance(time.Second))
	require.NoError(t, s.Advance("alice", true))
	require.Len(t, reported, 1)
	assert.Equal(t, Progress{Index: 2, Total: 3, Target: "C"}, reported[0])

	// The manual advance reset the dwell clock.
	remaining, ok := s.RemainingSeconds("alice")
	require.True(t, ok)
	assert.InDelta(t, 2.0, remaining, 1e-9)

	mode, ok := s.PreferredMode("alice")
	require.True(t, ok)
	assert.Equal(t, camera.ModeSlowOrbit, mode)
}

func TestStartSkipsUnresolvableEntries(t *testing.T) {
	sessions := newFakeSessions()
	sessions.unresolvable["A"] = true
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B")
	require.NoError(t, s.Start("alice", camera.ModeOrbit))
	status, _ := s.Status("alice")
	assert.Equal(t, "B", status.Current)

	sessions.unresolvable["B"] = true
	err := s.Advance("alice", false)
	assert.True(t, errors.Is(err, session.ErrTargetUnresolvable))
	assert.False(t, s.Running("alice"))
}

func TestAutoMembershipFollowsPeers(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	rule := MembershipRule{ExcludePrefixes: []string{"bot_"}, ExcludeSuffixes: []string{"_afk"}}
	peers := []session.Target{
		session.EntityTarget("e1", "alice"),
		session.EntityTarget("e2", "bob"),
		session.EntityTarget("e3", "bot_miner"),
		session.EntityTarget("e4", "carol_afk"),
	}
	added := s.EnableAutoMembership("alice", rule, peers)
	assert.Equal(t, 1, added)

	s.PeerConnected(session.EntityTarget("e5", "dave"))
	s.PeerConnected(session.EntityTarget("e6", "bot_two"))
	status, _ := s.Status("alice")
	assert.Equal(t, []string{"bob", "dave"}, status.Targets)
	assert.True(t, status.Auto)

	require.NoError(t, s.Start("alice", camera.ModeFollow))
	s.PeerDisconnected("bob")
	status, _ = s.Status("alice")
	assert.Equal(t, []string{"dave"}, status.Targets)
	assert.Equal(t, "dave", status.Current)

	s.DisableAutoMembership("alice")
	s.PeerConnected(session.EntityTarget("e7", "erin"))
	status, _ = s.Status("alice")
	assert.Equal(t, []string{"dave"}, status.Targets)
}

func TestDetachLeavesSessionRunning(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B")
	require.NoError(t, s.Start("alice", camera.ModeOrbit))
	assert.True(t, s.Detach("alice"))
	assert.True(t, sessions.IsActive("alice"))
	assert.False(t, s.Running("alice"))
	assert.Equal(t, 0, s.tasks.Len())
}

func TestSuspendAndResume(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B")
	require.NoError(t, s.Start("alice", camera.ModeAerialView))
	require.NoError(t, s.Advance("alice", false))

	assert.True(t, s.Suspend("alice"))
	_, ok := s.Status("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, s.tasks.Len())

	require.NoError(t, s.Resume("alice", true))
	status, ok := s.Status("alice")
	require.True(t, ok)
	assert.Equal(t, "A", status.Current)
	assert.Equal(t, camera.ModeAerialView, status.Mode)
}

func TestResumeRestoresIdlePlaylist(t *testing.T) {
	sessions := newFakeSessions()
	s := newTestScheduler(sessions, &manualClock{now: time.Unix(0, 0)}, nil)
	fill(t, s, "alice", "A", "B")

	assert.False(t, s.Suspend("alice"), "idle playlist was not running")
	require.NoError(t, s.Resume("alice", false))
	status, ok := s.Status("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, status.Targets)
	assert.Equal(t, StateIdle.String(), status.State)
	assert.False(t, sessions.IsActive("alice"))
	assert.Empty(t, s.suspended)

	assert.ErrorIs(t, s.Resume("alice", false), ErrNoPlaylist)

	// Already restored idle, a cycle resume still starts it.
	require.NoError(t, s.Resume("alice", true))
	status, _ = s.Status("alice")
	assert.Equal(t, "A", status.Current)
	assert.True(t, s.Running("alice"))
}

func TestMembershipRule(t *testing.T) {
	rule := MembershipRule{ExcludePrefixes: []string{"npc-"}, ExcludeSuffixes: []string{"[bot]"}}
	assert.True(t, rule.Admits("steve"))
	assert.False(t, rule.Admits("npc-villager"))
	assert.False(t, rule.Admits("miner[bot]"))
	assert.False(t, rule.Admits(""))
}
