package server

import (
	"time"

	"spectate/server/internal/sim"
)

const (
	ProtocolVersion   = 1
	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	// resumeGrace is how long a reconnecting viewer's resume waits for a
	// capability declaration before it falls back to server-side poses.
	resumeGrace  = 500 * time.Millisecond
	maxNameBytes = 32
)

// Reasons attached to commandReject frames.
const (
	CommandRejectUnknownActor   = "unknown_actor"
	CommandRejectInvalidCommand = "invalid_command"
	CommandRejectQueueLimit     = sim.CommandRejectQueueLimit
	CommandRejectQueueFull      = sim.CommandRejectQueueFull
)

// Result codes carried by commandResult frames.
const (
	ResultOK                 = "ok"
	ResultNoActiveSession    = "no_active_session"
	ResultAlreadySpectating  = "already_spectating"
	ResultTargetUnresolvable = "target_unresolvable"
	ResultUnknownPoint       = "unknown_point"
	ResultInvalidParameter   = "invalid_parameter"
	ResultInvalidMode        = "invalid_mode"
	ResultEmptyPlaylist      = "empty_playlist"
	ResultDuplicateTarget    = "duplicate_target"
	ResultUnknownTarget      = "unknown_target"
	ResultInvalidDwell       = "invalid_dwell"
	ResultInvalidPointName   = "invalid_point_name"
	ResultSpectating         = "spectating"
	ResultBadCommand         = "bad_command"
)

// TickRate exposes the default simulation frequency for diagnostics.
func TickRate() int {
	return sim.DefaultLoopConfig().TickRate
}

// HeartbeatInterval exposes the heartbeat cadence for diagnostics.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
