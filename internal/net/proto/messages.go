package proto

import (
	"encoding/json"
	"fmt"

	"spectate/server/internal/camera"
	"spectate/server/internal/netsync"
	"spectate/server/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = netsync.Version

	// Type identifiers for websocket payloads.
	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHeartbeat     = "heartbeat"
)

// Client message type identifiers.
const (
	TypeSpectate     = "spectate"
	TypeStopSpectate = "stopSpectate"
	TypeCycle        = "cycle"
	TypeParam        = "param"
	TypePoint        = "point"
	TypeInput        = "input"
	TypeCapability   = netsync.TypeCapability
	TypeHeartbeat    = "heartbeat"
)

// ClientMessage captures an inbound websocket message from the client. Only
// the fields the message type reads are populated.
type ClientMessage struct {
	Ver        int     `json:"ver,omitempty"`
	Type       string  `json:"type"`
	CommandSeq *uint64 `json:"seq,omitempty"`
	SentAt     int64   `json:"sentAt,omitempty"`

	Kind   string `json:"kind,omitempty"`
	Target string `json:"target,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Force  bool   `json:"force,omitempty"`

	Op      string `json:"op,omitempty"`
	Group   string `json:"group,omitempty"`
	Seconds int    `json:"seconds,omitempty"`
	Enable  bool   `json:"enable,omitempty"`

	Field string  `json:"field,omitempty"`
	Value float64 `json:"value,omitempty"`
	Name  string  `json:"name,omitempty"`

	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`
	DZ float64 `json:"dz,omitempty"`

	payload []byte
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	if msg.Type == TypeCapability {
		msg.payload = payload
	}
	return msg, nil
}

// Seq returns the client sequence number, zero when absent.
func (m ClientMessage) Seq() uint64 {
	if m.CommandSeq == nil {
		return 0
	}
	return *m.CommandSeq
}

// ClientCommand captures the structured simulation command carried by a
// websocket message. Origin metadata is populated by the hub when the command
// is accepted for processing.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeSpectate:
		kind, ok := parseKind(msg.Kind)
		if !ok || msg.Target == "" {
			return sim.Command{}, false
		}
		mode, ok := parseMode(msg.Mode)
		if !ok {
			return sim.Command{}, false
		}
		return sim.Command{
			Type: sim.CommandSpectate,
			Spectate: &sim.SpectateCommand{
				Kind:   kind,
				Target: msg.Target,
				Mode:   mode,
				Force:  msg.Force,
			},
		}, true
	case TypeStopSpectate:
		return sim.Command{Type: sim.CommandStopSpectate}, true
	case TypeCycle:
		return cycleCommand(msg)
	case TypeParam:
		if msg.Field == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:  sim.CommandSetParam,
			Param: &sim.ParamCommand{Field: msg.Field, Value: msg.Value},
		}, true
	case TypePoint:
		if msg.Name == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:  sim.CommandDefinePoint,
			Point: &sim.PointCommand{Name: msg.Name, Group: msg.Group},
		}, true
	case TypeInput:
		return sim.Command{
			Type: sim.CommandMove,
			Move: &sim.MoveCommand{DX: msg.DX, DY: msg.DY, DZ: msg.DZ},
		}, true
	case TypeCapability:
		if len(msg.payload) == 0 {
			return sim.Command{}, false
		}
		decl, err := netsync.DecodeCapability(msg.payload)
		if err != nil {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandCapability, Capability: &decl}, true
	default:
		return sim.Command{}, false
	}
}

func cycleCommand(msg ClientMessage) (sim.Command, bool) {
	op := sim.CycleOp(msg.Op)
	payload := &sim.CycleCommand{Op: op}
	switch op {
	case sim.CycleAdd:
		kind, ok := parseKind(msg.Kind)
		if !ok || msg.Target == "" {
			return sim.Command{}, false
		}
		payload.Kind = kind
		payload.Target = msg.Target
	case sim.CycleGroup:
		if msg.Group == "" {
			return sim.Command{}, false
		}
		payload.Group = msg.Group
	case sim.CycleRemove:
		if msg.Target == "" {
			return sim.Command{}, false
		}
		payload.Target = msg.Target
	case sim.CycleDwell:
		payload.Seconds = msg.Seconds
	case sim.CycleStart:
		mode, ok := parseMode(msg.Mode)
		if !ok {
			return sim.Command{}, false
		}
		payload.Mode = mode
	case sim.CycleAuto:
		payload.Enable = msg.Enable
	case sim.CycleClear, sim.CycleStop, sim.CycleNext:
	default:
		return sim.Command{}, false
	}
	return sim.Command{Type: sim.CommandCycle, Cycle: payload}, true
}

func parseKind(value string) (sim.TargetKind, bool) {
	switch value {
	case "", string(sim.TargetPoint):
		return sim.TargetPoint, true
	case string(sim.TargetEntity), "player":
		return sim.TargetEntity, true
	default:
		return "", false
	}
}

// parseMode leaves the mode unset when the client sent none so the hub can
// apply the viewer's remembered preference.
func parseMode(value string) (camera.ViewMode, bool) {
	if value == "" {
		return 0, true
	}
	mode, err := camera.ParseViewMode(value)
	if err != nil {
		return 0, false
	}
	return mode, true
}

// CommandAck describes an acknowledgement of a queued command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused before it
// reached the tick loop.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
	Tick   uint64
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
		Tick   uint64 `json:"tick,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
	}
	if msg.Retry {
		frame.Retry = true
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}
