// Package render is the client half of the sync protocol. It owns a local
// camera engine, recomputes a pose every frame from the latest server inputs
// and interpolates between the last two computed poses so low-rate updates do
// not show as steps.
package render

import (
	"time"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
)

// MaxExtrapolation caps how far a target sample is projected forward.
const MaxExtrapolation = 0.5

// Renderer is used from the frame loop only.
type Renderer struct {
	defaults camera.Parameters

	active  bool
	state   netsync.SessionState
	params  camera.Parameters
	start   time.Time
	offset  time.Duration
	sample  camera.TargetSample
	sampled bool

	// elapsed is anchored to the server's start time on the first frame of a
	// session and then advances by at most camera.MaxStep per frame.
	elapsed  float64
	anchored bool

	floating camera.FloatingState
	prev     camera.Pose
	cur      camera.Pose
	posed    bool
}

// New constructs a renderer whose sessions start from defaults until the
// server sends parameters.
func New(defaults camera.Parameters) *Renderer {
	return &Renderer{defaults: defaults.Clamped()}
}

// Declaration is the capability message this renderer sends on connect.
func (r *Renderer) Declaration(overrides *netsync.Overrides) netsync.CapabilityDeclaration {
	return netsync.CapabilityDeclaration{
		SupportsInterpolation: true,
		ProtocolVersion:       netsync.Version,
		Overrides:             overrides,
	}
}

// Active reports whether a session is being rendered.
func (r *Renderer) Active() bool {
	return r.active
}

// Session returns the last session announcement.
func (r *Renderer) Session() netsync.SessionState {
	return r.state
}

// Handle applies one server message received at received.
func (r *Renderer) Handle(msg netsync.Message, received time.Time) {
	switch m := msg.(type) {
	case netsync.SessionState:
		r.handleSession(m, received)
	case netsync.Parameters:
		r.params = m.Camera()
		if start := m.Start(); !start.Equal(r.start) {
			r.start = start
			r.anchored = false
		}
	case netsync.TargetUpdate:
		sample := m.Sample()
		if r.sampled && sample.Time.Before(r.sample.Time) {
			return
		}
		r.sample = sample
		r.sampled = true
		r.offset = received.Sub(sample.Time)
	}
}

func (r *Renderer) handleSession(m netsync.SessionState, received time.Time) {
	switch m.Action {
	case netsync.ActionStop:
		r.active = false
		r.sampled = false
		r.posed = false
		r.anchored = false
		r.floating.Reset()
		return
	case netsync.ActionStart:
		// A fresh session snaps; an update keeps interpolating from the
		// current pose.
		r.posed = false
		r.params = r.defaults
		r.start = received.Add(-r.offset)
		r.anchored = false
	}
	r.active = true
	r.state = m
	r.floating.Reset()
	r.sampled = false
	if m.IsPoint && m.PointPosition != nil {
		r.sample = camera.StaticSample(m.PointPosition.Vec(), received.Add(-r.offset))
		r.sampled = true
	}
}

// Frame recomputes the pose at now, dt seconds after the previous frame, and
// returns it. The pose it replaces becomes the start of the interpolation
// served by Pose. It reports false while there is nothing to render.
func (r *Renderer) Frame(now time.Time, dt float64) (camera.Pose, bool) {
	if !r.active || !r.sampled {
		return r.cur, false
	}
	serverNow := now.Add(-r.offset)
	step := camera.ClampStep(dt)
	if r.anchored {
		r.elapsed += step
	} else {
		r.elapsed = camera.ClampElapsed(serverNow.Sub(r.start).Seconds())
		r.anchored = true
	}
	sample := r.sample
	if !r.state.IsPoint {
		sample.Position = camera.Extrapolate(r.sample, serverNow.Sub(r.sample.Time).Seconds(), MaxExtrapolation)
		sample.Time = serverNow
	}
	computed, err := camera.Compute(camera.Input{
		Mode:    r.state.Mode,
		Params:  r.params,
		Sample:  sample,
		Elapsed: r.elapsed,
		Step:    step,
		State:   &r.floating,
	})
	if err != nil {
		return r.cur, false
	}
	if r.posed {
		r.prev = r.cur
	} else {
		r.prev = computed
		r.posed = true
	}
	r.cur = computed
	return r.cur, true
}

// Pose returns the pose frac of the way from the previous computed pose to
// the latest one, where frac is the fraction of the frame interval that has
// passed since the latest Frame.
func (r *Renderer) Pose(frac float64) (camera.Pose, bool) {
	if !r.active || !r.posed {
		return r.cur, false
	}
	switch {
	case frac <= 0:
		return r.prev, true
	case frac >= 1:
		return r.cur, true
	}
	return camera.LerpPose(r.prev, r.cur, frac), true
}
