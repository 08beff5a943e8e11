package lifecycle

import (
	"context"

	"spectate/server/logging"
)

const (
	// EventViewerJoined is emitted when a viewer connects to the hub.
	EventViewerJoined logging.EventType = "lifecycle.viewer_joined"
	// EventViewerDisconnected is emitted when a viewer leaves the hub.
	EventViewerDisconnected logging.EventType = "lifecycle.viewer_disconnected"
	// EventViewerResumed is emitted when a reconnecting viewer gets its
	// previous spectating state back.
	EventViewerResumed logging.EventType = "lifecycle.viewer_resumed"
)

// ViewerJoinedPayload captures the entry point of a new viewer.
type ViewerJoinedPayload struct {
	World  string `json:"world"`
	Avatar string `json:"avatar,omitempty"`
}

// ViewerDisconnectedPayload captures why a viewer left and what was saved.
type ViewerDisconnectedPayload struct {
	Reason     string `json:"reason"`
	Descriptor string `json:"descriptor,omitempty"`
}

// ViewerResumedPayload records the descriptor a viewer resumed from.
type ViewerResumedPayload struct {
	Descriptor string `json:"descriptor"`
	Resumed    bool   `json:"resumed"`
}

// ViewerJoined publishes a viewer join event.
func ViewerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViewerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventViewerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ViewerDisconnected publishes a viewer disconnect event.
func ViewerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViewerDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventViewerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ViewerResumed publishes the outcome of a resume attempt. A descriptor that
// could no longer be honoured is reported at warn level.
func ViewerResumed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViewerResumedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if !payload.Resumed {
		severity = logging.SeverityWarn
	}
	event := logging.Event{
		Type:     EventViewerResumed,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
