package sim

import (
	"time"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
)

// CommandType enumerates the viewer intents applied by the authoritative loop.
type CommandType string

const (
	CommandConnect      CommandType = "Connect"
	CommandDisconnect   CommandType = "Disconnect"
	CommandSpectate     CommandType = "Spectate"
	CommandStopSpectate CommandType = "StopSpectate"
	CommandCycle        CommandType = "Cycle"
	CommandSetParam     CommandType = "SetParam"
	CommandDefinePoint  CommandType = "DefinePoint"
	CommandCapability   CommandType = "Capability"
	CommandMove         CommandType = "Move"
)

// TargetKind selects how a spectate or cycle target name is resolved.
type TargetKind string

const (
	TargetPoint  TargetKind = "point"
	TargetEntity TargetKind = "entity"
)

// SpectateCommand starts or force switches a session.
type SpectateCommand struct {
	Kind   TargetKind      `json:"kind"`
	Target string          `json:"target"`
	Mode   camera.ViewMode `json:"mode"`
	Force  bool            `json:"force"`
}

// CycleOp names a playlist operation.
type CycleOp string

const (
	CycleAdd    CycleOp = "add"
	CycleGroup  CycleOp = "group"
	CycleRemove CycleOp = "remove"
	CycleClear  CycleOp = "clear"
	CycleDwell  CycleOp = "dwell"
	CycleStart  CycleOp = "start"
	CycleStop   CycleOp = "stop"
	CycleNext   CycleOp = "next"
	CycleAuto   CycleOp = "auto"
)

// CycleCommand carries one playlist operation. Only the fields the op reads
// are populated.
type CycleCommand struct {
	Op      CycleOp         `json:"op"`
	Kind    TargetKind      `json:"kind,omitempty"`
	Target  string          `json:"target,omitempty"`
	Group   string          `json:"group,omitempty"`
	Seconds int             `json:"seconds,omitempty"`
	Mode    camera.ViewMode `json:"mode,omitempty"`
	Enable  bool            `json:"enable,omitempty"`
}

// ParamCommand writes one camera parameter for the viewer.
type ParamCommand struct {
	Field string  `json:"field"`
	Value float64 `json:"value"`
}

// PointCommand stores the viewer's current pose as a named point.
type PointCommand struct {
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// MoveCommand carries the avatar's desired movement vector.
type MoveCommand struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	DZ float64 `json:"dz"`
}

// DisconnectCommand records why a viewer left.
type DisconnectCommand struct {
	Reason string `json:"reason"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64                         `json:"originTick"`
	ActorID    string                         `json:"actorId"`
	Type       CommandType                    `json:"type"`
	IssuedAt   time.Time                      `json:"issuedAt"`
	Seq        uint64                         `json:"seq,omitempty"`
	Spectate   *SpectateCommand               `json:"spectate,omitempty"`
	Cycle      *CycleCommand                  `json:"cycle,omitempty"`
	Param      *ParamCommand                  `json:"param,omitempty"`
	Point      *PointCommand                  `json:"point,omitempty"`
	Capability *netsync.CapabilityDeclaration `json:"capability,omitempty"`
	Move       *MoveCommand                   `json:"move,omitempty"`
	Disconnect *DisconnectCommand             `json:"disconnect,omitempty"`
}
