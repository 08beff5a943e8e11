package netsync

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned by Decode for unrecognized type identifiers.
var ErrUnknownMessage = errors.New("netsync: unknown message type")

// Encode stamps the envelope and renders msg as JSON.
func Encode(msg Message) ([]byte, error) {
	env := Envelope{Ver: Version, Type: msg.MessageType()}
	switch m := msg.(type) {
	case CapabilityDeclaration:
		m.Envelope = env
		return json.Marshal(m)
	case *CapabilityDeclaration:
		return Encode(*m)
	case SessionState:
		m.Envelope = env
		return json.Marshal(m)
	case *SessionState:
		return Encode(*m)
	case Parameters:
		m.Envelope = env
		return json.Marshal(m)
	case *Parameters:
		return Encode(*m)
	case TargetUpdate:
		m.Envelope = env
		return json.Marshal(m)
	case *TargetUpdate:
		return Encode(*m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// Decode parses a JSON payload into its concrete message type. Unknown
// fields are ignored so newer peers stay readable.
func Decode(payload []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeCapability:
		return DecodeCapability(payload)
	case TypeSessionState:
		var msg SessionState
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeParameters:
		var msg Parameters
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeTargetUpdate:
		var msg TargetUpdate
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// DecodeCapability parses a declaration. Overrides that are malformed, out of
// float range or non-finite are discarded as a whole; the rest of the
// declaration still applies.
func DecodeCapability(payload []byte) (CapabilityDeclaration, error) {
	var raw struct {
		Envelope
		SupportsInterpolation bool            `json:"supportsInterpolation"`
		ProtocolVersion       int             `json:"protocolVersion"`
		Overrides             json.RawMessage `json:"overrides"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return CapabilityDeclaration{}, fmt.Errorf("decode %s: %w", TypeCapability, err)
	}
	decl := CapabilityDeclaration{
		Envelope:              raw.Envelope,
		SupportsInterpolation: raw.SupportsInterpolation,
		ProtocolVersion:       raw.ProtocolVersion,
	}
	if len(raw.Overrides) > 0 && string(raw.Overrides) != "null" {
		var overrides Overrides
		if err := json.Unmarshal(raw.Overrides, &overrides); err == nil && overrides.Finite() {
			decl.Overrides = &overrides
		}
	}
	return decl, nil
}
