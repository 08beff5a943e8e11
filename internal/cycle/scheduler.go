// Package cycle runs per-viewer playlists: ordered targets that the viewer's
// session advances through on a dwell timer. Timers live on a task table
// ticked by the authoritative loop, never on their own goroutines.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"spectate/server/internal/camera"
	"spectate/server/internal/sched"
	"spectate/server/internal/session"
	"spectate/server/internal/telemetry"
	"spectate/server/logging"
	loggingcycle "spectate/server/logging/cycle"
)

// DefaultDwell is used for playlists that never set one.
const DefaultDwell = 10 * time.Second

// Sessions is the part of the session manager a playlist drives.
type Sessions interface {
	ForceSwitch(viewer string, target session.Target, mode camera.ViewMode, params camera.Parameters) (session.Info, error)
	Stop(viewer string) bool
	IsActive(viewer string) bool
}

// Progress describes the playlist position after a manual advance.
type Progress struct {
	Index  int
	Total  int
	Target string
}

// Notifier reports manual advances back to the viewer.
type Notifier interface {
	CycleProgress(viewer string, progress Progress)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(viewer string, progress Progress)

// CycleProgress implements Notifier.
func (f NotifierFunc) CycleProgress(viewer string, progress Progress) {
	if f != nil {
		f(viewer, progress)
	}
}

// State is the playlist state machine.
type State uint8

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Config wires a Scheduler.
type Config struct {
	Sessions     Sessions
	Params       func(viewer string) camera.Parameters
	Notifier     Notifier
	Clock        logging.Clock
	Publisher    logging.Publisher
	Logger       telemetry.Logger
	DefaultDwell time.Duration
}

// Status is a snapshot of one playlist.
type Status struct {
	Viewer       string          `json:"viewer"`
	State        string          `json:"state"`
	Targets      []string        `json:"targets"`
	Index        int             `json:"index"`
	Current      string          `json:"current,omitempty"`
	Mode         camera.ViewMode `json:"mode,omitempty"`
	DwellSeconds float64         `json:"dwellSeconds"`
	Remaining    float64         `json:"remainingSeconds,omitempty"`
	Auto         bool            `json:"auto"`
}

type playlist struct {
	viewer  string
	targets []session.Target
	index   int
	dwell   time.Duration
	mode    camera.ViewMode
	state   State
	timer   sched.Handle
	auto    *MembershipRule
}

func (p *playlist) find(key string) int {
	for i, t := range p.targets {
		if t.Key() == key {
			return i
		}
	}
	return -1
}

// Scheduler is not safe for concurrent use; every call must come from the
// authoritative tick loop.
type Scheduler struct {
	sessions     Sessions
	params       func(viewer string) camera.Parameters
	notifier     Notifier
	clock        logging.Clock
	pub          logging.Publisher
	logger       telemetry.Logger
	defaultDwell time.Duration

	tasks     *sched.Table
	playlists map[string]*playlist
	suspended map[string]*playlist
	preferred map[string]camera.ViewMode
	tick      uint64
}

// NewScheduler constructs a scheduler.
func NewScheduler(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	params := cfg.Params
	if params == nil {
		params = func(string) camera.Parameters { return camera.DefaultParameters() }
	}
	dwell := cfg.DefaultDwell
	if dwell < time.Second {
		dwell = DefaultDwell
	}
	return &Scheduler{
		sessions:     cfg.Sessions,
		params:       params,
		notifier:     cfg.Notifier,
		clock:        clock,
		pub:          pub,
		logger:       cfg.Logger,
		defaultDwell: dwell,
		tasks:        sched.NewTable(),
		playlists:    make(map[string]*playlist),
		suspended:    make(map[string]*playlist),
		preferred:    make(map[string]camera.ViewMode),
	}
}

func (s *Scheduler) ensure(viewer string) *playlist {
	pl, ok := s.playlists[viewer]
	if !ok {
		pl = &playlist{viewer: viewer, dwell: s.defaultDwell, mode: camera.ModeOrbit}
		if mode, ok := s.preferred[viewer]; ok {
			pl.mode = mode
		}
		s.playlists[viewer] = pl
	}
	return pl
}

// AddTarget appends target to viewer's playlist.
func (s *Scheduler) AddTarget(viewer string, target session.Target) error {
	pl := s.ensure(viewer)
	if pl.find(target.Key()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, target.Key())
	}
	pl.targets = append(pl.targets, target)
	return nil
}

// AddGroup appends every point not yet queued and reports how many were added.
func (s *Scheduler) AddGroup(viewer string, points []session.Point) int {
	added := 0
	for _, p := range points {
		if err := s.AddTarget(viewer, session.PointTarget(p)); err == nil {
			added++
		}
	}
	return added
}

// RemoveTarget drops the entry named key. The current index is re-clamped;
// a running playlist restarts on the mutated list, and one left empty stops.
func (s *Scheduler) RemoveTarget(viewer, key string) error {
	pl, ok := s.playlists[viewer]
	if !ok {
		return ErrNoPlaylist
	}
	idx := pl.find(key)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, key)
	}
	s.remove(pl, idx)
	return nil
}

func (s *Scheduler) remove(pl *playlist, idx int) {
	pl.targets = append(pl.targets[:idx:idx], pl.targets[idx+1:]...)
	if idx < pl.index {
		pl.index--
	}
	if pl.index >= len(pl.targets) {
		pl.index = len(pl.targets) - 1
	}
	if pl.index < 0 {
		pl.index = 0
	}
	if pl.state != StateRunning {
		return
	}
	if len(pl.targets) == 0 {
		s.halt(pl, "empty")
		s.sessions.Stop(pl.viewer)
		return
	}
	s.tasks.Cancel(pl.timer)
	pl.timer = sched.Handle{}
	if err := s.run(pl, s.clock.Now()); err != nil {
		s.logf("cycle %s: restart after removal: %v", pl.viewer, err)
	}
}

// Clear empties viewer's playlist, stopping it if it was running.
func (s *Scheduler) Clear(viewer string) error {
	pl, ok := s.playlists[viewer]
	if !ok {
		return ErrNoPlaylist
	}
	running := pl.state == StateRunning
	s.halt(pl, "cleared")
	pl.targets = nil
	pl.index = 0
	if running {
		s.sessions.Stop(viewer)
	}
	return nil
}

// SetDwellSeconds sets the per-entry dwell. A running entry keeps the time it
// has already spent.
func (s *Scheduler) SetDwellSeconds(viewer string, seconds int) error {
	if seconds < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDwell, seconds)
	}
	pl := s.ensure(viewer)
	now := s.clock.Now()
	started := now
	if next, ok := s.tasks.Next(pl.timer); ok {
		started = next.Add(-pl.dwell)
	}
	pl.dwell = time.Duration(seconds) * time.Second
	if pl.state == StateRunning {
		s.tasks.Cancel(pl.timer)
		first := started.Add(pl.dwell)
		if first.Before(now) {
			first = now
		}
		pl.timer = s.schedule(pl, first)
	}
	return nil
}

// Start runs viewer's playlist from entry 0 in mode, which becomes the
// viewer's remembered preference.
func (s *Scheduler) Start(viewer string, mode camera.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", camera.ErrUnknownMode, uint8(mode))
	}
	pl, ok := s.playlists[viewer]
	if !ok || len(pl.targets) == 0 {
		return ErrEmptyPlaylist
	}
	s.preferred[viewer] = mode
	s.tasks.Cancel(pl.timer)
	pl.timer = sched.Handle{}
	pl.mode = mode
	pl.index = 0
	pl.state = StateRunning
	if err := s.run(pl, s.clock.Now()); err != nil {
		return err
	}
	loggingcycle.CycleStarted(context.Background(), s.pub, s.tick, viewerRef(viewer), loggingcycle.StartedPayload{
		Mode:         mode.String(),
		Entries:      len(pl.targets),
		DwellSeconds: pl.dwell.Seconds(),
	}, nil)
	return nil
}

// Stop halts a running playlist and ends its session. It reports false when
// nothing was running.
func (s *Scheduler) Stop(viewer string) bool {
	pl, ok := s.playlists[viewer]
	if !ok || pl.state != StateRunning {
		return false
	}
	s.halt(pl, "requested")
	s.sessions.Stop(viewer)
	return true
}

// Detach halts a running playlist but leaves its session alone, for when the
// viewer takes manual control of the camera.
func (s *Scheduler) Detach(viewer string) bool {
	pl, ok := s.playlists[viewer]
	if !ok || pl.state != StateRunning {
		return false
	}
	s.halt(pl, "detached")
	return true
}

// Advance moves to the next entry and resets the dwell clock. Manual advances
// report progress to the viewer.
func (s *Scheduler) Advance(viewer string, manual bool) error {
	pl, ok := s.playlists[viewer]
	if !ok {
		return ErrNoPlaylist
	}
	if len(pl.targets) == 0 {
		return ErrEmptyPlaylist
	}
	if pl.state != StateRunning {
		return session.ErrNoActiveSession
	}
	return s.advance(pl, s.clock.Now(), manual)
}

func (s *Scheduler) advance(pl *playlist, now time.Time, manual bool) error {
	s.tasks.Cancel(pl.timer)
	pl.timer = sched.Handle{}
	pl.index = (pl.index + 1) % len(pl.targets)
	if err := s.run(pl, now); err != nil {
		return err
	}
	current := pl.targets[pl.index]
	loggingcycle.CycleAdvanced(context.Background(), s.pub, s.tick, viewerRef(pl.viewer), loggingcycle.AdvancedPayload{
		Index:  pl.index,
		Total:  len(pl.targets),
		Target: current.Key(),
		Manual: manual,
	}, nil)
	if manual && s.notifier != nil {
		s.notifier.CycleProgress(pl.viewer, Progress{Index: pl.index, Total: len(pl.targets), Target: current.Key()})
	}
	return nil
}

// run switches the session to the current entry, skipping entries that cannot
// be resolved, and arms the dwell timer. A playlist with no usable entry goes
// idle.
func (s *Scheduler) run(pl *playlist, now time.Time) error {
	var lastErr error
	for attempt := 0; attempt < len(pl.targets); attempt++ {
		idx := (pl.index + attempt) % len(pl.targets)
		_, err := s.sessions.ForceSwitch(pl.viewer, pl.targets[idx], pl.mode, s.params(pl.viewer))
		if err == nil {
			pl.index = idx
			pl.timer = s.schedule(pl, now.Add(pl.dwell))
			return nil
		}
		lastErr = err
		if !errors.Is(err, session.ErrTargetUnresolvable) {
			break
		}
	}
	s.halt(pl, "unresolvable")
	s.sessions.Stop(pl.viewer)
	if lastErr == nil {
		lastErr = ErrEmptyPlaylist
	}
	return lastErr
}

func (s *Scheduler) schedule(pl *playlist, first time.Time) sched.Handle {
	return s.tasks.Schedule(first, pl.dwell, func(now time.Time) {
		if s.playlists[pl.viewer] != pl || pl.state != StateRunning {
			return
		}
		if err := s.advance(pl, now, false); err != nil {
			s.logf("cycle %s: advance: %v", pl.viewer, err)
		}
	})
}

func (s *Scheduler) halt(pl *playlist, reason string) {
	s.tasks.Cancel(pl.timer)
	pl.timer = sched.Handle{}
	if pl.state == StateRunning {
		pl.state = StateIdle
		loggingcycle.CycleStopped(context.Background(), s.pub, s.tick, viewerRef(pl.viewer), loggingcycle.StoppedPayload{Reason: reason}, nil)
	}
}

// RemainingSeconds reports the dwell left on the current entry.
func (s *Scheduler) RemainingSeconds(viewer string) (float64, bool) {
	pl, ok := s.playlists[viewer]
	if !ok || pl.state != StateRunning {
		return 0, false
	}
	next, ok := s.tasks.Next(pl.timer)
	if !ok {
		return 0, false
	}
	remaining := next.Sub(s.clock.Now()).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Running reports whether viewer's playlist is running.
func (s *Scheduler) Running(viewer string) bool {
	pl, ok := s.playlists[viewer]
	return ok && pl.state == StateRunning
}

// PreferredMode returns the mode of viewer's last cycle start.
func (s *Scheduler) PreferredMode(viewer string) (camera.ViewMode, bool) {
	mode, ok := s.preferred[viewer]
	return mode, ok
}

// EnableAutoMembership queues every admitted peer and keeps following
// connects and disconnects.
func (s *Scheduler) EnableAutoMembership(viewer string, rule MembershipRule, peers []session.Target) int {
	pl := s.ensure(viewer)
	r := rule
	pl.auto = &r
	added := 0
	for _, peer := range peers {
		if peer.Name == viewer || !r.Admits(peer.Name) {
			continue
		}
		if err := s.AddTarget(viewer, peer); err == nil {
			added++
		}
	}
	return added
}

// DisableAutoMembership stops following peers. Queued entries stay.
func (s *Scheduler) DisableAutoMembership(viewer string) {
	if pl, ok := s.playlists[viewer]; ok {
		pl.auto = nil
	}
}

// PeerConnected adds peer to every auto-membership playlist that admits it.
func (s *Scheduler) PeerConnected(peer session.Target) {
	for _, viewer := range s.viewers() {
		pl := s.playlists[viewer]
		if pl.auto == nil || viewer == peer.Name || !pl.auto.Admits(peer.Name) {
			continue
		}
		_ = s.AddTarget(viewer, peer)
	}
}

// PeerDisconnected removes peer from every auto-membership playlist.
func (s *Scheduler) PeerDisconnected(name string) {
	for _, viewer := range s.viewers() {
		pl := s.playlists[viewer]
		if pl.auto == nil {
			continue
		}
		if idx := pl.find(name); idx >= 0 {
			s.remove(pl, idx)
		}
	}
}

// TargetLost moves a running playlist past an entry whose entity vanished.
func (s *Scheduler) TargetLost(viewer string, target session.Target) {
	pl, ok := s.playlists[viewer]
	if !ok || pl.state != StateRunning || len(pl.targets) == 0 {
		return
	}
	if pl.targets[pl.index].Key() != target.Key() {
		return
	}
	if err := s.advance(pl, s.clock.Now(), false); err != nil {
		s.logf("cycle %s: skip lost target %s: %v", viewer, target.Key(), err)
	}
}

// Suspend parks viewer's playlist while the viewer is disconnected. It
// reports whether the playlist was running.
func (s *Scheduler) Suspend(viewer string) bool {
	pl, ok := s.playlists[viewer]
	if !ok {
		return false
	}
	running := pl.state == StateRunning
	s.tasks.Cancel(pl.timer)
	pl.timer = sched.Handle{}
	pl.state = StateIdle
	delete(s.playlists, viewer)
	s.suspended[viewer] = pl
	return running
}

// Resume restores a parked playlist. When start is set it runs again from
// entry 0 in its remembered mode, whether the playlist was still parked or
// already restored idle.
func (s *Scheduler) Resume(viewer string, start bool) error {
	pl, parked := s.suspended[viewer]
	if parked {
		delete(s.suspended, viewer)
		s.playlists[viewer] = pl
	} else {
		pl = s.playlists[viewer]
	}
	if !start {
		if !parked {
			return ErrNoPlaylist
		}
		return nil
	}
	mode := camera.ModeOrbit
	if pl != nil && pl.mode.Valid() {
		mode = pl.mode
	} else if preferred, ok := s.preferred[viewer]; ok {
		mode = preferred
	}
	return s.Start(viewer, mode)
}

// Status returns a snapshot of viewer's playlist.
func (s *Scheduler) Status(viewer string) (Status, bool) {
	pl, ok := s.playlists[viewer]
	if !ok {
		return Status{}, false
	}
	status := Status{
		Viewer:       viewer,
		State:        pl.state.String(),
		Targets:      make([]string, 0, len(pl.targets)),
		Index:        pl.index,
		DwellSeconds: pl.dwell.Seconds(),
		Auto:         pl.auto != nil,
	}
	for _, t := range pl.targets {
		status.Targets = append(status.Targets, t.Key())
	}
	if pl.state == StateRunning {
		status.Mode = pl.mode
		if pl.index < len(pl.targets) {
			status.Current = pl.targets[pl.index].Key()
		}
		status.Remaining, _ = s.RemainingSeconds(viewer)
	}
	return status, true
}

// Statuses returns every playlist ordered by viewer.
func (s *Scheduler) Statuses() []Status {
	out := make([]Status, 0, len(s.playlists))
	for _, viewer := range s.viewers() {
		status, _ := s.Status(viewer)
		out = append(out, status)
	}
	return out
}

// Tick fires every dwell timer that is due.
func (s *Scheduler) Tick(tick uint64, now time.Time) int {
	s.tick = tick
	return s.tasks.RunDue(now)
}

// RunningCount reports the number of running playlists.
func (s *Scheduler) RunningCount() int {
	count := 0
	for _, pl := range s.playlists {
		if pl.state == StateRunning {
			count++
		}
	}
	return count
}

func (s *Scheduler) viewers() []string {
	names := make([]string, 0, len(s.playlists))
	for name := range s.playlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func viewerRef(viewer string) logging.EntityRef {
	return logging.EntityRef{ID: viewer, Kind: logging.EntityKindViewer}
}
