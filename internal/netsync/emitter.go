package netsync

import (
	"fmt"
	"time"

	"spectate/server/internal/telemetry"
)

// DefaultTargetRate is the maximum TargetUpdate rate per viewer, in Hz.
const DefaultTargetRate = 5.0

// Transport delivers an encoded message to one viewer.
type Transport interface {
	Send(viewer string, payload []byte) error
}

// TransportFunc adapts a function into a Transport.
type TransportFunc func(viewer string, payload []byte) error

// Send implements Transport.
func (f TransportFunc) Send(viewer string, payload []byte) error {
	if f == nil {
		return nil
	}
	return f(viewer, payload)
}

// Emitter sends session messages to viewers that declared support. Viewers
// that never declared receive nothing.
type Emitter struct {
	transport Transport
	registry  *Registry
	metrics   telemetry.Metrics
	interval  time.Duration
	lastSent  map[string]time.Time
}

// NewEmitter constructs an emitter limited to rate TargetUpdates per second.
func NewEmitter(transport Transport, registry *Registry, rate float64, metrics telemetry.Metrics) *Emitter {
	if rate <= 0 {
		rate = DefaultTargetRate
	}
	return &Emitter{
		transport: transport,
		registry:  registry,
		metrics:   metrics,
		interval:  time.Duration(float64(time.Second) / rate),
		lastSent:  make(map[string]time.Time),
	}
}

// Supports reports whether viewer receives session messages.
func (e *Emitter) Supports(viewer string) bool {
	return e != nil && e.registry.Supports(viewer)
}

// SessionState sends a session transition. Start and stop reset the target
// update limiter so the first sample of a new session goes out immediately.
func (e *Emitter) SessionState(viewer string, msg SessionState) error {
	if !e.Supports(viewer) {
		return nil
	}
	if msg.Action != ActionUpdate {
		delete(e.lastSent, viewer)
	}
	return e.send(viewer, msg)
}

// Parameters sends the camera parameters of viewer's session.
func (e *Emitter) Parameters(viewer string, msg Parameters) error {
	if !e.Supports(viewer) {
		return nil
	}
	return e.send(viewer, msg)
}

// TargetUpdate sends a target sample unless one went out within the rate
// window. It reports whether the message was sent.
func (e *Emitter) TargetUpdate(viewer string, msg TargetUpdate, now time.Time) (bool, error) {
	if !e.Supports(viewer) {
		return false, nil
	}
	if last, ok := e.lastSent[viewer]; ok && now.Sub(last) < e.interval {
		e.count("netsync.target_updates_suppressed")
		return false, nil
	}
	e.lastSent[viewer] = now
	if err := e.send(viewer, msg); err != nil {
		return false, err
	}
	return true, nil
}

// Forget releases per-viewer limiter state.
func (e *Emitter) Forget(viewer string) {
	if e == nil {
		return
	}
	delete(e.lastSent, viewer)
}

func (e *Emitter) send(viewer string, msg Message) error {
	if e.transport == nil {
		return nil
	}
	payload, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	if err := e.transport.Send(viewer, payload); err != nil {
		e.count("netsync.send_errors")
		return fmt.Errorf("send %s to %s: %w", msg.MessageType(), viewer, err)
	}
	e.count("netsync.messages_sent")
	return nil
}

func (e *Emitter) count(key string) {
	if e.metrics != nil {
		e.metrics.Add(key, 1)
	}
}
