package session

import (
	"errors"
	"fmt"
	"strings"

	"spectate/server/internal/camera"
)

// DescriptorKind names what a suspended viewer was watching.
type DescriptorKind string

const (
	DescriptorCycle  DescriptorKind = "cycle"
	DescriptorPoint  DescriptorKind = "point"
	DescriptorEntity DescriptorKind = "entity"
)

// ErrInvalidDescriptor is returned when a stored descriptor cannot be parsed.
var ErrInvalidDescriptor = errors.New("session: invalid descriptor")

// Descriptor is the durable form of a session, used to resume it when the
// viewer reconnects. Ref is the point name or entity ID; cycles carry none.
type Descriptor struct {
	Kind DescriptorKind
	Ref  string
	Mode camera.ViewMode
}

// DescriptorOf describes a target.
func DescriptorOf(target Target, mode camera.ViewMode) Descriptor {
	if target.IsPoint() {
		return Descriptor{Kind: DescriptorPoint, Ref: target.Point.Name, Mode: mode}
	}
	return Descriptor{Kind: DescriptorEntity, Ref: target.EntityID, Mode: mode}
}

// CycleDescriptor describes a running cycle.
func CycleDescriptor(mode camera.ViewMode) Descriptor {
	return Descriptor{Kind: DescriptorCycle, Mode: mode}
}

// MarshalText renders kind:mode[:ref].
func (d Descriptor) MarshalText() ([]byte, error) {
	if !d.Mode.Valid() {
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidDescriptor, d.Mode)
	}
	switch d.Kind {
	case DescriptorCycle:
		return []byte(string(d.Kind) + ":" + d.Mode.String()), nil
	case DescriptorPoint, DescriptorEntity:
		if d.Ref == "" {
			return nil, fmt.Errorf("%w: %s without reference", ErrInvalidDescriptor, d.Kind)
		}
		return []byte(string(d.Kind) + ":" + d.Mode.String() + ":" + d.Ref), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidDescriptor, d.Kind)
	}
}

// UnmarshalText parses the MarshalText form.
func (d *Descriptor) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidDescriptor, text)
	}
	mode, err := camera.ParseViewMode(parts[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	out := Descriptor{Kind: DescriptorKind(parts[0]), Mode: mode}
	switch out.Kind {
	case DescriptorCycle:
		if len(parts) != 2 {
			return fmt.Errorf("%w: %q", ErrInvalidDescriptor, text)
		}
	case DescriptorPoint, DescriptorEntity:
		if len(parts) != 3 || parts[2] == "" {
			return fmt.Errorf("%w: %q", ErrInvalidDescriptor, text)
		}
		out.Ref = parts[2]
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidDescriptor, parts[0])
	}
	*d = out
	return nil
}

func (d Descriptor) String() string {
	text, err := d.MarshalText()
	if err != nil {
		return "invalid"
	}
	return string(text)
}
