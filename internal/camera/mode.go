package camera

import (
	"errors"
	"fmt"
	"strings"
)

// ViewMode selects which trajectory function drives the camera.
type ViewMode uint8

const (
	ModeOrbit ViewMode = iota + 1
	ModeFollow
	ModeSlowOrbit
	ModeAerialView
	ModeSpiralUp
	ModeFloating
)

// ErrUnknownMode is returned when a mode value or name is outside the closed set.
var ErrUnknownMode = errors.New("camera: unknown view mode")

var modeNames = map[ViewMode]string{
	ModeOrbit:      "orbit",
	ModeFollow:     "follow",
	ModeSlowOrbit:  "slow_orbit",
	ModeAerialView: "aerial_view",
	ModeSpiralUp:   "spiral_up",
	ModeFloating:   "floating",
}

// Modes lists every view mode in declaration order.
func Modes() []ViewMode {
	return []ViewMode{ModeOrbit, ModeFollow, ModeSlowOrbit, ModeAerialView, ModeSpiralUp, ModeFloating}
}

func (m ViewMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m belongs to the closed set of modes.
func (m ViewMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Cinematic reports whether m is one of the procedurally animated variants.
func (m ViewMode) Cinematic() bool {
	switch m {
	case ModeSlowOrbit, ModeAerialView, ModeSpiralUp, ModeFloating:
		return true
	default:
		return false
	}
}

// Stateful reports whether m needs a FloatingState threaded between calls.
func (m ViewMode) Stateful() bool {
	return m == ModeFloating
}

// ParseViewMode accepts the canonical names plus a few spellings used by
// operators ("slow-orbit", "aerial", "spiral").
func ParseViewMode(raw string) (ViewMode, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, "-", "_")
	switch name {
	case "aerial":
		return ModeAerialView, nil
	case "spiral":
		return ModeSpiralUp, nil
	case "cinematic":
		return ModeFloating, nil
	}
	for mode, candidate := range modeNames {
		if candidate == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// MarshalText encodes the mode using its canonical name.
func (m ViewMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a canonical or alias mode name.
func (m *ViewMode) UnmarshalText(data []byte) error {
	parsed, err := ParseViewMode(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
