package server

import (
	"context"
	"time"

	"spectate/server/internal/camera"
	"spectate/server/internal/cycle"
	"spectate/server/internal/netsync"
	"spectate/server/internal/notify"
	"spectate/server/internal/session"
	"spectate/server/internal/sim"
	"spectate/server/internal/store/sqlite"
	"spectate/server/internal/telemetry"
	"spectate/server/internal/world"
	"spectate/server/logging"
)

// Persistence is the durable side of the hub. Writes are fire and forget and
// report false when they could not be queued; reads block the caller and are
// only issued outside the tick.
type Persistence interface {
	SavePoint(p session.Point, createdBy string) bool
	SaveDescriptor(viewer string, d session.Descriptor) bool
	RecordUsage(viewer string, target session.Target, mode camera.ViewMode, at time.Time) bool
	TakeDescriptor(ctx context.Context, viewer string) (session.Descriptor, bool, error)
	LoadPoints(ctx context.Context) ([]session.Point, error)
	Usage(ctx context.Context, viewer string) ([]sqlite.Usage, error)
}

// HubConfig captures the tunables for constructing a Hub.
type HubConfig struct {
	World          world.Config
	Loop           sim.LoopConfig
	SyncRate       float64
	UpdateInterval time.Duration
	Camera         camera.Parameters
	DefaultDwell   time.Duration
	Membership     cycle.MembershipRule
	Locale         string
	TickWindow     int

	Logger    telemetry.Logger
	Metrics   *logging.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Store     Persistence
	Notices   *notify.Catalog
}

// DefaultHubConfig returns the baseline hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		World:          world.Config{ID: world.DefaultID},
		Loop:           sim.DefaultLoopConfig(),
		SyncRate:       netsync.DefaultTargetRate,
		UpdateInterval: session.DefaultUpdateInterval,
		Camera:         camera.DefaultParameters(),
		DefaultDwell:   cycle.DefaultDwell,
		Locale:         notify.BaseLocale.String(),
		TickWindow:     telemetry.DefaultTickWindow,
	}
}

type nopPersistence struct{}

func (nopPersistence) SavePoint(session.Point, string) bool {
	return true
}
func (nopPersistence) SaveDescriptor(string, session.Descriptor) bool {
	return true
}
func (nopPersistence) RecordUsage(string, session.Target, camera.ViewMode, time.Time) bool {
	return true
}
func (nopPersistence) TakeDescriptor(context.Context, string) (session.Descriptor, bool, error) {
	return session.Descriptor{}, false, nil
}
func (nopPersistence) LoadPoints(context.Context) ([]session.Point, error) {
	return nil, nil
}
func (nopPersistence) Usage(context.Context, string) ([]sqlite.Usage, error) {
	return nil, sqlite.ErrNotConfigured
}

var _ Persistence = (*sqlite.Writer)(nil)
