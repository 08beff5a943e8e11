package cycle

import (
	"context"

	"spectate/server/logging"
)

const (
	// EventCycleStarted is emitted when a viewer's playlist starts running.
	EventCycleStarted logging.EventType = "cycle.started"
	// EventCycleAdvanced is emitted when a running playlist moves to another entry.
	EventCycleAdvanced logging.EventType = "cycle.advanced"
	// EventCycleStopped is emitted when a running playlist goes idle.
	EventCycleStopped logging.EventType = "cycle.stopped"
)

// StartedPayload describes a playlist at start.
type StartedPayload struct {
	Mode         string  `json:"mode"`
	Entries      int     `json:"entries"`
	DwellSeconds float64 `json:"dwellSeconds"`
}

// AdvancedPayload describes one advance.
type AdvancedPayload struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Target string `json:"target"`
	Manual bool   `json:"manual"`
}

// StoppedPayload records why a playlist went idle.
type StoppedPayload struct {
	Reason string `json:"reason"`
}

// CycleStarted publishes a playlist start.
func CycleStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCycleStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpectate,
		Payload:  payload,
		Extra:    extra,
	})
}

// CycleAdvanced publishes a playlist advance. Timer-driven advances are debug noise.
func CycleAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AdvancedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityDebug
	if payload.Manual {
		severity = logging.SeverityInfo
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCycleAdvanced,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategorySpectate,
		Payload:  payload,
		Extra:    extra,
	})
}

// CycleStopped publishes a playlist going idle.
func CycleStopped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StoppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCycleStopped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpectate,
		Payload:  payload,
		Extra:    extra,
	})
}
