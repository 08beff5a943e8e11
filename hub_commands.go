package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"spectate/server/internal/camera"
	"spectate/server/internal/cycle"
	"spectate/server/internal/notify"
	"spectate/server/internal/session"
	"spectate/server/internal/sim"
	"spectate/server/internal/world"
	loggingNetwork "spectate/server/logging/network"
)

// errBadCommand marks commands whose payload is missing or inconsistent.
var errBadCommand = errors.New("hub: malformed command")

// Apply implements sim.EngineCore. Each command is applied in order and its
// outcome reported back to the issuing viewer.
func (h *Hub) Apply(ctx sim.LoopTickContext, cmds []sim.Command) error {
	var errs []error
	h.mu.Lock()
	h.tick = ctx.Tick
	for _, cmd := range cmds {
		if err := h.applyLocked(ctx, cmd); err != nil && errors.Is(err, errBadCommand) {
			errs = append(errs, fmt.Errorf("%s from %s: %w", cmd.Type, cmd.ActorID, err))
		}
	}
	h.mu.Unlock()
	h.flush()
	return errors.Join(errs...)
}

func (h *Hub) applyLocked(ctx sim.LoopTickContext, cmd sim.Command) error {
	state, known := h.viewers[cmd.ActorID]
	if !known {
		return nil
	}
	if cmd.Type == sim.CommandDisconnect {
		reason := "closed"
		if cmd.Disconnect != nil && cmd.Disconnect.Reason != "" {
			reason = cmd.Disconnect.Reason
		}
		h.disconnectLocked(cmd.ActorID, reason)
		return nil
	}
	state.lastHeartbeat = ctx.Now

	var (
		message string
		err     error
	)
	switch cmd.Type {
	case sim.CommandConnect:
		h.connectLocked(cmd.ActorID, state, ctx.Now)
	case sim.CommandCapability:
		err = h.capabilityLocked(cmd, state, ctx.Now)
	case sim.CommandSpectate:
		message, err = h.spectateLocked(cmd, ctx.Now)
	case sim.CommandStopSpectate:
		err = h.stopSpectateLocked(cmd.ActorID)
	case sim.CommandCycle:
		message, err = h.cycleLocked(cmd)
	case sim.CommandSetParam:
		err = h.setParamLocked(cmd, state)
	case sim.CommandDefinePoint:
		message, err = h.definePointLocked(cmd)
	case sim.CommandMove:
		err = h.moveLocked(cmd)
	default:
		err = fmt.Errorf("%w: unknown type %q", errBadCommand, cmd.Type)
	}

	code := resultCode(err)
	if err != nil {
		h.metrics.Add(metricCommandsFailed, 1)
		message = err.Error()
		if cmd.Seq == 0 && cmd.Type != sim.CommandMove {
			h.noticeLocked(cmd.ActorID, notify.KeyCommandFailed, code)
		}
	}
	if cmd.Seq > 0 {
		h.sendLocked(cmd.ActorID, commandResultMessage{
			Ver:     ProtocolVersion,
			Type:    "commandResult",
			Seq:     cmd.Seq,
			Tick:    ctx.Tick,
			Command: string(cmd.Type),
			Code:    code,
			Message: message,
		})
	}
	return err
}

func (h *Hub) connectLocked(viewer string, state *viewerState, now time.Time) {
	if !state.connected {
		state.connected = true
		if v, ok := h.world.Viewer(viewer); ok {
			h.cycles.PeerConnected(session.EntityTarget(v.ID, v.Name))
		}
		// A parked playlist comes back idle; a cycle descriptor restarts it
		// once the resume is due.
		if err := h.cycles.Resume(viewer, false); err == nil {
			h.logger.Printf("restored playlist for %s", viewer)
		}
	}
	if state.resume != nil {
		state.resumeAt = now.Add(resumeGrace)
	}
}

func (h *Hub) capabilityLocked(cmd sim.Command, state *viewerState, now time.Time) error {
	if cmd.Capability == nil {
		return errBadCommand
	}
	capability := h.registry.Declare(cmd.ActorID, *cmd.Capability, now)
	loggingNetwork.CapabilityDeclared(context.Background(), h.publisher, h.tick, viewerRef(cmd.ActorID), loggingNetwork.CapabilityPayload{
		Interpolation:   capability.Interpolation,
		ProtocolVersion: capability.ProtocolVersion,
		Overrides:       capability.Overrides != nil,
	}, nil)
	if state.resume != nil && state.connected {
		h.resumeLocked(cmd.ActorID, now)
	}
	return nil
}

// resolveTargetLocked turns a kind and name into a session target.
func (h *Hub) resolveTargetLocked(kind sim.TargetKind, name string) (session.Target, error) {
	switch kind {
	case sim.TargetPoint, "":
		p, ok := h.world.Points().LookupPoint(name)
		if !ok {
			return session.Target{}, fmt.Errorf("%w: %s", session.ErrUnknownPoint, name)
		}
		return session.PointTarget(p), nil
	case sim.TargetEntity:
		e, ok := h.world.Entity(name)
		if !ok {
			return session.Target{}, fmt.Errorf("%w: %s", session.ErrTargetUnresolvable, name)
		}
		return session.EntityTarget(e.ID, e.Name), nil
	default:
		return session.Target{}, fmt.Errorf("%w: target kind %q", errBadCommand, kind)
	}
}

// watchableLocked resolves a target the viewer may watch. A viewer's own
// avatar is never one.
func (h *Hub) watchableLocked(viewer string, kind sim.TargetKind, name string) (session.Target, error) {
	target, err := h.resolveTargetLocked(kind, name)
	if err != nil {
		return session.Target{}, err
	}
	if target.EntityID == viewer {
		return session.Target{}, fmt.Errorf("%w: cannot spectate yourself", session.ErrTargetUnresolvable)
	}
	return target, nil
}

// modeFor falls back to the viewer's remembered cycle mode, then orbit.
func (h *Hub) modeFor(viewer string, mode camera.ViewMode) camera.ViewMode {
	if mode != 0 {
		return mode
	}
	if preferred, ok := h.cycles.PreferredMode(viewer); ok {
		return preferred
	}
	return camera.ModeOrbit
}

func (h *Hub) spectateLocked(cmd sim.Command, now time.Time) (string, error) {
	req := cmd.Spectate
	if req == nil || req.Target == "" {
		return "", errBadCommand
	}
	target, err := h.watchableLocked(cmd.ActorID, req.Kind, req.Target)
	if err != nil {
		return "", err
	}
	mode := h.modeFor(cmd.ActorID, req.Mode)
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %d", camera.ErrUnknownMode, uint8(mode))
	}
	if h.sessions.IsActive(cmd.ActorID) && !req.Force {
		return "", session.ErrAlreadySpectating
	}
	if err := h.startLocked(cmd.ActorID, target, mode, now); err != nil {
		return "", err
	}
	// Manual control detaches a running cycle but keeps its list.
	h.cycles.Detach(cmd.ActorID)
	h.noticeLocked(cmd.ActorID, notify.KeySessionStarted, target.Name, mode.String())
	return target.Key(), nil
}

func (h *Hub) stopSpectateLocked(viewer string) error {
	if h.cycles.Stop(viewer) {
		h.noticeLocked(viewer, notify.KeyCycleStopped)
		return nil
	}
	if !h.sessions.Stop(viewer) {
		return session.ErrNoActiveSession
	}
	h.noticeLocked(viewer, notify.KeySessionStopped)
	return nil
}

func (h *Hub) cycleLocked(cmd sim.Command) (string, error) {
	req := cmd.Cycle
	if req == nil {
		return "", errBadCommand
	}
	viewer := cmd.ActorID
	switch req.Op {
	case sim.CycleAdd:
		target, err := h.watchableLocked(viewer, req.Kind, req.Target)
		if err != nil {
			return "", err
		}
		return target.Key(), h.cycles.AddTarget(viewer, target)
	case sim.CycleGroup:
		points := h.world.Points().PointsInGroup(req.Group)
		if len(points) == 0 {
			return "", fmt.Errorf("%w: group %s", session.ErrUnknownPoint, req.Group)
		}
		return fmt.Sprintf("%d added", h.cycles.AddGroup(viewer, points)), nil
	case sim.CycleRemove:
		return req.Target, h.cycles.RemoveTarget(viewer, req.Target)
	case sim.CycleClear:
		return "", h.cycles.Clear(viewer)
	case sim.CycleDwell:
		return "", h.cycles.SetDwellSeconds(viewer, req.Seconds)
	case sim.CycleStart:
		return "", h.cycles.Start(viewer, h.modeFor(viewer, req.Mode))
	case sim.CycleStop:
		if !h.cycles.Stop(viewer) {
			return "", session.ErrNoActiveSession
		}
		h.noticeLocked(viewer, notify.KeyCycleStopped)
		return "", nil
	case sim.CycleNext:
		return "", h.cycles.Advance(viewer, true)
	case sim.CycleAuto:
		if !req.Enable {
			h.cycles.DisableAutoMembership(viewer)
			return "disabled", nil
		}
		added := h.cycles.EnableAutoMembership(viewer, h.config.Membership, h.world.PeerTargets(viewer))
		return fmt.Sprintf("%d added", added), nil
	default:
		return "", fmt.Errorf("%w: cycle op %q", errBadCommand, req.Op)
	}
}

// setParamLocked updates the viewer's stored parameters and, when a session
// runs, the session's own copy. Out-of-range values change neither.
func (h *Hub) setParamLocked(cmd sim.Command, state *viewerState) error {
	req := cmd.Param
	if req == nil || req.Field == "" {
		return errBadCommand
	}
	next := state.params
	if err := next.Set(req.Field, req.Value); err != nil {
		return err
	}
	if h.sessions.IsActive(cmd.ActorID) {
		if err := h.sessions.SetParameter(cmd.ActorID, req.Field, req.Value); err != nil {
			return err
		}
	}
	state.params = next
	return nil
}

func (h *Hub) definePointLocked(cmd sim.Command) (string, error) {
	req := cmd.Point
	if req == nil {
		return "", errBadCommand
	}
	pose := h.world.Pose(cmd.ActorID)
	p := session.Point{
		Name:     req.Name,
		World:    h.world.ID(),
		Position: pose.Position,
		Yaw:      pose.Yaw,
		Pitch:    pose.Pitch,
		Group:    req.Group,
	}
	if err := h.world.Points().Define(p); err != nil {
		return "", err
	}
	if !h.store.SavePoint(p, cmd.ActorID) {
		h.logger.Printf("point %s not persisted: write queue full", p.Name)
	}
	h.noticeLocked(cmd.ActorID, notify.KeyPointSaved, p.Name)
	return p.Name, nil
}

func (h *Hub) moveLocked(cmd sim.Command) error {
	if cmd.Move == nil {
		return errBadCommand
	}
	if !h.world.SetIntent(cmd.ActorID, mgl64.Vec3{cmd.Move.DX, cmd.Move.DY, cmd.Move.DZ}) {
		return errSpectating
	}
	return nil
}

var errSpectating = errors.New("hub: avatar input ignored while spectating")

// resultCode maps an apply error onto the code sent to the client.
func resultCode(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, session.ErrNoActiveSession):
		return ResultNoActiveSession
	case errors.Is(err, session.ErrAlreadySpectating):
		return ResultAlreadySpectating
	case errors.Is(err, session.ErrTargetUnresolvable):
		return ResultTargetUnresolvable
	case errors.Is(err, session.ErrUnknownPoint):
		return ResultUnknownPoint
	case errors.Is(err, camera.ErrInvalidParameter):
		return ResultInvalidParameter
	case errors.Is(err, camera.ErrUnknownMode):
		return ResultInvalidMode
	case errors.Is(err, cycle.ErrEmptyPlaylist), errors.Is(err, cycle.ErrNoPlaylist):
		return ResultEmptyPlaylist
	case errors.Is(err, cycle.ErrDuplicateTarget):
		return ResultDuplicateTarget
	case errors.Is(err, cycle.ErrUnknownTarget):
		return ResultUnknownTarget
	case errors.Is(err, cycle.ErrInvalidDwell):
		return ResultInvalidDwell
	case errors.Is(err, world.ErrInvalidPointName):
		return ResultInvalidPointName
	case errors.Is(err, errSpectating):
		return ResultSpectating
	default:
		return ResultBadCommand
	}
}
