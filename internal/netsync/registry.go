package netsync

import (
	"sync"
	"time"

	"spectate/server/internal/camera"
)

// Capability is what a connected renderer has declared about itself.
type Capability struct {
	Interpolation   bool
	ProtocolVersion int
	Overrides       *Overrides
	DeclaredAt      time.Time
}

// Defaults returns the renderer's preferred camera parameters.
func (c Capability) Defaults() camera.Parameters {
	return c.Overrides.Apply(camera.DefaultParameters())
}

// Registry records capability declarations per viewer. It is read from HTTP
// diagnostics as well as the tick loop, so access is guarded.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Declare stores decl for viewer, replacing any earlier declaration.
func (r *Registry) Declare(viewer string, decl CapabilityDeclaration, now time.Time) Capability {
	capability := Capability{
		Interpolation:   decl.SupportsInterpolation,
		ProtocolVersion: decl.ProtocolVersion,
		DeclaredAt:      now,
	}
	if decl.Overrides.Finite() {
		capability.Overrides = decl.Overrides
	}
	r.mu.Lock()
	r.caps[viewer] = capability
	r.mu.Unlock()
	return capability
}

// Lookup returns the stored declaration.
func (r *Registry) Lookup(viewer string) (Capability, bool) {
	if r == nil {
		return Capability{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[viewer]
	return c, ok
}

// Supports reports whether viewer renders sessions locally.
func (r *Registry) Supports(viewer string) bool {
	c, ok := r.Lookup(viewer)
	return ok && c.Interpolation && c.ProtocolVersion >= 1
}

// Forget drops viewer's declaration.
func (r *Registry) Forget(viewer string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.caps, viewer)
	r.mu.Unlock()
}

// Len reports the number of declared viewers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
