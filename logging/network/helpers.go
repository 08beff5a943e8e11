package network

import (
	"context"

	"spectate/server/logging"
)

const (
	// EventCapabilityDeclared is emitted when a renderer declares what it can
	// compute locally.
	EventCapabilityDeclared logging.EventType = "network.capability_declared"
	// EventCommandRejected is emitted when a viewer command is refused before
	// it reaches the simulation.
	EventCommandRejected logging.EventType = "network.command_rejected"
)

// CapabilityPayload summarises a capability declaration.
type CapabilityPayload struct {
	Interpolation   bool `json:"interpolation"`
	ProtocolVersion int  `json:"protocolVersion"`
	Overrides       bool `json:"overrides"`
}

// CommandRejectedPayload captures the refused command and the reason.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// CapabilityDeclared publishes a capability declaration.
func CapabilityDeclared(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CapabilityPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCapabilityDeclared,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CommandRejected publishes a warning for a refused command.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
