package intake

import (
	"time"

	"spectate/server"
	"spectate/server/internal/net/proto"
	"spectate/server/internal/sim"
)

// Enqueuer accepts staged commands for the next tick.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

type CommandContext struct {
	Engine    Enqueuer
	HasViewer func(string) bool
	Tick      func() uint64
	Now       func() time.Time
}

// StageClientCommand validates a client message, stamps origin metadata and
// enqueues the resulting command. The returned reason is empty on success.
func StageClientCommand(ctx CommandContext, viewerID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, server.CommandRejectInvalidCommand
	}

	switch command.Type {
	case sim.CommandSpectate:
		if command.Spectate == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandCycle:
		if command.Cycle == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandSetParam:
		if command.Param == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandDefinePoint:
		if command.Point == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandCapability:
		if command.Capability == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandMove:
		if command.Move == nil {
			return zero, false, server.CommandRejectInvalidCommand
		}
	case sim.CommandStopSpectate:
	default:
		// Connect and Disconnect are issued by the transport, never by clients.
		return zero, false, server.CommandRejectInvalidCommand
	}

	if ctx.HasViewer != nil && !ctx.HasViewer(viewerID) {
		return zero, false, server.CommandRejectUnknownActor
	}

	command.ActorID = viewerID
	command.Seq = msg.Seq()
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
