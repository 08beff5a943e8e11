// Package session drives per-viewer spectating sessions. The manager owns
// every session, schedules its periodic update on a task table advanced by
// the tick loop, and restores the viewer exactly when the session ends.
package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
	"spectate/server/internal/sched"
	"spectate/server/internal/telemetry"
	"spectate/server/logging"
	loggingspectate "spectate/server/logging/spectate"
)

// DefaultUpdateInterval is the session update period (20 Hz).
const DefaultUpdateInterval = 50 * time.Millisecond

// Sync delivers session state to viewers that render locally.
type Sync interface {
	Supports(viewer string) bool
	SessionState(viewer string, msg netsync.SessionState) error
	Parameters(viewer string, msg netsync.Parameters) error
	TargetUpdate(viewer string, msg netsync.TargetUpdate, now time.Time) (bool, error)
}

// Config wires a Manager to its host.
type Config struct {
	Viewers        Viewers
	Entities       Entities
	Sync           Sync
	Clock          logging.Clock
	Publisher      logging.Publisher
	Logger         telemetry.Logger
	Metrics        telemetry.Metrics
	UpdateInterval time.Duration
	// OnTargetLost runs after a session was stopped because its entity
	// target stopped resolving.
	OnTargetLost func(viewer string, target Target)
}

// StartOptions modify Start.
type StartOptions struct {
	// Force switches a running session in place instead of failing.
	Force bool
}

// Info is a snapshot of a running session.
type Info struct {
	ID        string            `json:"id"`
	Viewer    string            `json:"viewer"`
	Target    string            `json:"target"`
	Kind      string            `json:"kind"`
	Mode      camera.ViewMode   `json:"mode"`
	Params    camera.Parameters `json:"params"`
	World     string            `json:"world"`
	StartedAt time.Time         `json:"startedAt"`
	Networked bool              `json:"networked"`
	Pose      camera.Pose       `json:"pose"`

	target Target
}

// TargetRef returns the session's target.
func (i Info) TargetRef() Target {
	return i.target
}

type activeSession struct {
	id        string
	viewer    string
	target    Target
	mode      camera.ViewMode
	params    camera.Parameters
	world     string
	startedAt time.Time
	networked bool

	task     sched.Handle
	floating camera.FloatingState
	lastTick time.Time
	// elapsed is session time as the trajectories see it. It advances by at
	// most camera.MaxStep per update, so a stalled tick cannot jump the camera.
	elapsed float64
	pose    camera.Pose
}

func (s *activeSession) info() Info {
	return Info{
		ID:        s.id,
		Viewer:    s.viewer,
		Target:    s.target.Name,
		Kind:      s.target.Kind.String(),
		Mode:      s.mode,
		Params:    s.params,
		World:     s.world,
		StartedAt: s.startedAt,
		Networked: s.networked,
		Pose:      s.pose,
		target:    s.target,
	}
}

// Manager is not safe for concurrent use; every call must come from the
// authoritative tick loop.
type Manager struct {
	viewers      Viewers
	entities     Entities
	sync         Sync
	clock        logging.Clock
	pub          logging.Publisher
	logger       telemetry.Logger
	metrics      telemetry.Metrics
	interval     time.Duration
	onTargetLost func(viewer string, target Target)

	tasks     *sched.Table
	sessions  map[string]*activeSession
	originals *OriginalStore
	tick      uint64
}

// NewManager constructs a manager.
func NewManager(cfg Config) *Manager {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Manager{
		viewers:      cfg.Viewers,
		entities:     cfg.Entities,
		sync:         cfg.Sync,
		clock:        clock,
		pub:          pub,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		interval:     interval,
		onTargetLost: cfg.OnTargetLost,
		tasks:        sched.NewTable(),
		sessions:     make(map[string]*activeSession),
		originals:    NewOriginalStore(),
	}
}

// Start begins spectating target. With opts.Force a running session is
// switched in place: its update task is cancelled, the target, mode and
// parameters change, floating state resets, one pose is applied and the task
// is rescheduled, all before Start returns.
func (m *Manager) Start(viewer string, target Target, mode camera.ViewMode, params camera.Parameters, opts StartOptions) (Info, error) {
	if m.viewers == nil || !m.viewers.Known(viewer) {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownViewer, viewer)
	}
	if !mode.Valid() {
		return Info{}, fmt.Errorf("%w: %d", camera.ErrUnknownMode, uint8(mode))
	}
	if err := params.Validate(); err != nil {
		return Info{}, err
	}
	now := m.clock.Now()
	sample, world, err := m.resolve(target, now)
	if err != nil {
		return Info{}, err
	}

	if sess, ok := m.sessions[viewer]; ok {
		if !opts.Force {
			return Info{}, ErrAlreadySpectating
		}
		m.tasks.Cancel(sess.task)
		sess.task = sched.Handle{}
		sess.target = target
		sess.mode = mode
		sess.params = params
		sess.world = world
		m.begin(sess, sample, now, netsync.ActionUpdate)
		loggingspectate.SessionSwitched(context.Background(), m.pub, m.tick, viewerRef(viewer), targetRef(target), m.payload(sess), nil)
		return sess.info(), nil
	}

	m.originals.Acquire(viewer, func() OriginalState {
		return OriginalState{
			Mode:       m.viewers.ControlMode(viewer),
			Pose:       m.viewers.Pose(viewer),
			Subject:    m.viewers.CameraSubject(viewer),
			CapturedAt: now,
		}
	})
	sess := &activeSession{
		id:     uuid.NewString(),
		viewer: viewer,
		target: target,
		mode:   mode,
		params: params,
		world:  world,
	}
	m.sessions[viewer] = sess
	m.viewers.SetControlMode(viewer, ControlSpectating)
	m.viewers.SetCameraSubject(viewer, "")
	m.begin(sess, sample, now, netsync.ActionStart)
	m.count("session.started")
	loggingspectate.SessionStarted(context.Background(), m.pub, m.tick, viewerRef(viewer), targetRef(target), m.payload(sess), nil)
	return sess.info(), nil
}

// ForceSwitch is Start with Force set.
func (m *Manager) ForceSwitch(viewer string, target Target, mode camera.ViewMode, params camera.Parameters) (Info, error) {
	return m.Start(viewer, target, mode, params, StartOptions{Force: true})
}

// Stop ends viewer's session and restores the captured original state. It
// reports false when no session was running.
func (m *Manager) Stop(viewer string) bool {
	return m.stop(viewer, "requested")
}

// Suspend stops the session of a disconnecting viewer and returns what it was
// watching so it can be resumed later.
func (m *Manager) Suspend(viewer string) (Descriptor, bool) {
	sess, ok := m.sessions[viewer]
	if !ok {
		return Descriptor{}, false
	}
	desc := DescriptorOf(sess.target, sess.mode)
	m.stop(viewer, "suspended")
	return desc, true
}

// IsActive reports whether viewer is spectating.
func (m *Manager) IsActive(viewer string) bool {
	_, ok := m.sessions[viewer]
	return ok
}

// Session returns a snapshot of viewer's session.
func (m *Manager) Session(viewer string) (Info, bool) {
	sess, ok := m.sessions[viewer]
	if !ok {
		return Info{}, false
	}
	return sess.info(), true
}

// Sessions returns snapshots of every session ordered by viewer.
func (m *Manager) Sessions() []Info {
	out := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Viewer < out[j].Viewer })
	return out
}

// ActiveCount reports the number of running sessions.
func (m *Manager) ActiveCount() int {
	return len(m.sessions)
}

// SetParameters replaces the whole parameter set of a running session.
func (m *Manager) SetParameters(viewer string, params camera.Parameters) error {
	sess, ok := m.sessions[viewer]
	if !ok {
		return ErrNoActiveSession
	}
	if err := params.Validate(); err != nil {
		return err
	}
	sess.params = params
	m.announceParameters(sess)
	return nil
}

// SetParameter writes one named parameter. Out-of-range values are rejected
// and the prior value kept.
func (m *Manager) SetParameter(viewer, field string, value float64) error {
	sess, ok := m.sessions[viewer]
	if !ok {
		return ErrNoActiveSession
	}
	if err := sess.params.Set(field, value); err != nil {
		return err
	}
	m.announceParameters(sess)
	loggingspectate.ParametersChanged(context.Background(), m.pub, m.tick, viewerRef(viewer), loggingspectate.ParameterPayload{
		SessionID: sess.id,
		Field:     field,
		Value:     value,
	}, nil)
	return nil
}

// Tick runs every session update that is due.
func (m *Manager) Tick(tick uint64, now time.Time) int {
	m.tick = tick
	return m.tasks.RunDue(now)
}

// Originals exposes the captured original states.
func (m *Manager) Originals() *OriginalStore {
	return m.originals
}

func (m *Manager) begin(sess *activeSession, sample camera.TargetSample, now time.Time, action netsync.Action) {
	sess.floating.Reset()
	sess.startedAt = now
	sess.lastTick = now
	sess.elapsed = 0
	sess.networked = m.supports(sess.viewer)

	if pose, err := m.compute(sess, sample, 0); err == nil {
		sess.pose = pose
		m.viewers.ApplyPose(sess.viewer, pose)
	} else {
		m.logf("session %s: initial pose for %s: %v", sess.id, sess.viewer, err)
	}
	if sess.networked {
		m.announce(sess, action, sample, now)
	}

	sess.task = m.tasks.Schedule(now.Add(m.interval), m.interval, func(at time.Time) {
		m.update(sess, at)
	})
}

func (m *Manager) update(sess *activeSession, now time.Time) {
	if m.sessions[sess.viewer] != sess {
		return
	}
	sample, _, err := m.resolve(sess.target, now)
	if err != nil {
		m.lose(sess)
		return
	}
	dt := camera.ClampStep(now.Sub(sess.lastTick).Seconds())
	sess.lastTick = now
	sess.elapsed += dt

	if networked := m.supports(sess.viewer); networked != sess.networked {
		sess.networked = networked
		if networked {
			m.announce(sess, netsync.ActionStart, sample, now)
		}
	}
	if sess.networked {
		if !sess.target.IsPoint() {
			if _, err := m.sync.TargetUpdate(sess.viewer, netsync.TargetUpdateFrom(sample), now); err != nil {
				m.logf("session %s: target update: %v", sess.id, err)
			}
		}
		return
	}

	pose, err := m.compute(sess, sample, dt)
	if err != nil {
		m.logf("session %s: pose: %v", sess.id, err)
		return
	}
	sess.pose = pose
	m.viewers.ApplyPose(sess.viewer, pose)
}

func (m *Manager) lose(sess *activeSession) {
	payload := m.payload(sess)
	target := sess.target
	m.stop(sess.viewer, "target_lost")
	m.count("session.target_lost")
	loggingspectate.TargetLost(context.Background(), m.pub, m.tick, viewerRef(sess.viewer), targetRef(target), payload, nil)
	if m.onTargetLost != nil {
		m.onTargetLost(sess.viewer, target)
	}
}

func (m *Manager) stop(viewer, reason string) bool {
	sess, ok := m.sessions[viewer]
	if !ok {
		return false
	}
	m.tasks.Cancel(sess.task)
	sess.task = sched.Handle{}
	delete(m.sessions, viewer)

	if sess.networked {
		msg := m.sessionState(sess, netsync.ActionStop)
		if err := m.sync.SessionState(viewer, msg); err != nil {
			m.logf("session %s: stop message: %v", sess.id, err)
		}
	}
	if orig, ok := m.originals.Release(viewer); ok {
		m.viewers.SetControlMode(viewer, orig.Mode)
		m.viewers.ApplyPose(viewer, orig.Pose)
		m.viewers.SetCameraSubject(viewer, orig.Subject)
	}
	m.count("session.stopped")
	loggingspectate.SessionStopped(context.Background(), m.pub, m.tick, viewerRef(viewer), loggingspectate.StoppedPayload{
		SessionID: sess.id,
		Reason:    reason,
		Duration:  sess.lastTick.Sub(sess.startedAt).Seconds(),
	}, nil)
	return true
}

func (m *Manager) resolve(target Target, now time.Time) (camera.TargetSample, string, error) {
	switch target.Kind {
	case TargetPoint:
		return camera.StaticSample(target.Point.Position, now), target.Point.World, nil
	case TargetEntity:
		if m.entities == nil {
			return camera.TargetSample{}, "", fmt.Errorf("%w: %s", ErrTargetUnresolvable, target.EntityID)
		}
		k, ok := m.entities.ResolveEntity(target.EntityID)
		if !ok {
			return camera.TargetSample{}, "", fmt.Errorf("%w: %s", ErrTargetUnresolvable, target.EntityID)
		}
		return camera.TargetSample{Position: k.Position, Velocity: k.Velocity, Time: now}, k.World, nil
	default:
		return camera.TargetSample{}, "", fmt.Errorf("%w: kind %d", ErrTargetUnresolvable, target.Kind)
	}
}

func (m *Manager) compute(sess *activeSession, sample camera.TargetSample, dt float64) (camera.Pose, error) {
	return camera.Compute(camera.Input{
		Mode:    sess.mode,
		Params:  sess.params,
		Sample:  sample,
		Elapsed: sess.elapsed,
		Step:    dt,
		State:   &sess.floating,
	})
}

func (m *Manager) supports(viewer string) bool {
	return m.sync != nil && m.sync.Supports(viewer)
}

func (m *Manager) announce(sess *activeSession, action netsync.Action, sample camera.TargetSample, now time.Time) {
	if err := m.sync.SessionState(sess.viewer, m.sessionState(sess, action)); err != nil {
		m.logf("session %s: state message: %v", sess.id, err)
	}
	m.announceParameters(sess)
	if !sess.target.IsPoint() {
		if _, err := m.sync.TargetUpdate(sess.viewer, netsync.TargetUpdateFrom(sample), now); err != nil {
			m.logf("session %s: target update: %v", sess.id, err)
		}
	}
}

func (m *Manager) announceParameters(sess *activeSession) {
	if !sess.networked {
		return
	}
	if err := m.sync.Parameters(sess.viewer, netsync.ParametersFrom(sess.params, 0, sess.startedAt)); err != nil {
		m.logf("session %s: parameters message: %v", sess.id, err)
	}
}

func (m *Manager) sessionState(sess *activeSession, action netsync.Action) netsync.SessionState {
	msg := netsync.SessionState{
		Action:     action,
		IsPoint:    sess.target.IsPoint(),
		WorldID:    sess.world,
		Mode:       sess.mode,
		SessionID:  sess.id,
		TargetName: sess.target.Name,
	}
	if sess.target.IsPoint() {
		pos := netsync.CoordinateOf(sess.target.Point.Position)
		msg.PointPosition = &pos
	} else {
		msg.TargetID = sess.target.EntityID
	}
	return msg
}

func (m *Manager) payload(sess *activeSession) loggingspectate.SessionPayload {
	return loggingspectate.SessionPayload{
		SessionID: sess.id,
		Target:    sess.target.Name,
		Kind:      sess.target.Kind.String(),
		Mode:      sess.mode.String(),
		World:     sess.world,
		Networked: sess.networked,
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func (m *Manager) count(key string) {
	if m.metrics != nil {
		m.metrics.Add(key, 1)
	}
}

func viewerRef(viewer string) logging.EntityRef {
	return logging.EntityRef{ID: viewer, Kind: logging.EntityKindViewer}
}

func targetRef(target Target) logging.EntityRef {
	if target.IsPoint() {
		return logging.EntityRef{ID: target.Point.Name, Kind: logging.EntityKindPoint}
	}
	return logging.EntityRef{ID: target.EntityID, Kind: logging.EntityKindEntity}
}
