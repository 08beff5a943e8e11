package spectate

import (
	"context"

	"spectate/server/logging"
)

const (
	// EventSessionStarted is emitted when a viewer begins spectating.
	EventSessionStarted logging.EventType = "spectate.session_started"
	// EventSessionSwitched is emitted when a running session changes target or mode in place.
	EventSessionSwitched logging.EventType = "spectate.session_switched"
	// EventSessionStopped is emitted when a session ends and the viewer is restored.
	EventSessionStopped logging.EventType = "spectate.session_stopped"
	// EventTargetLost is emitted when an entity target stops resolving mid-session.
	EventTargetLost logging.EventType = "spectate.target_lost"
	// EventParametersChanged is emitted when a session's camera parameters change.
	EventParametersChanged logging.EventType = "spectate.parameters_changed"
)

// SessionPayload describes the session an event refers to.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
	Target    string `json:"target"`
	Kind      string `json:"kind"`
	Mode      string `json:"mode"`
	World     string `json:"world,omitempty"`
	Networked bool   `json:"networked,omitempty"`
}

// StoppedPayload records why a session ended.
type StoppedPayload struct {
	SessionID string  `json:"sessionId"`
	Reason    string  `json:"reason"`
	Duration  float64 `json:"durationSeconds"`
}

// ParameterPayload records one parameter write.
type ParameterPayload struct {
	SessionID string  `json:"sessionId"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategorySpectate,
		Payload:  payload,
		Extra:    extra,
	})
}

// SessionStarted publishes a session start.
func SessionStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload SessionPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionStarted, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// SessionSwitched publishes an in-place target or mode change.
func SessionSwitched(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload SessionPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionSwitched, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// SessionStopped publishes a session end.
func SessionStopped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StoppedPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionStopped, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// TargetLost publishes a target that could no longer be resolved.
func TargetLost(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload SessionPayload, extra map[string]any) {
	publish(ctx, pub, EventTargetLost, logging.SeverityWarn, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// ParametersChanged publishes a parameter write.
func ParametersChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ParameterPayload, extra map[string]any) {
	publish(ctx, pub, EventParametersChanged, logging.SeverityDebug, tick, actor, nil, payload, extra)
}
