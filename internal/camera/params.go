package camera

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidParameter is returned when a parameter write is non-finite, out of
// range, or names an unknown field. The previous value is retained.
var ErrInvalidParameter = errors.New("camera: invalid parameter")

// Parameters tunes every trajectory function. All fields are plain values so
// a Parameters can be copied freely between sessions and over the wire.
type Parameters struct {
	Distance           float64 `json:"distance"`
	HeightOffset       float64 `json:"heightOffset"`
	RotationSpeed      float64 `json:"rotationSpeed"`
	FloatingStrength   float64 `json:"floatingStrength"`
	FloatingSpeed      float64 `json:"floatingSpeed"`
	OrbitRadius        float64 `json:"orbitRadius"`
	HeightVariation    float64 `json:"heightVariation"`
	BreathingFrequency float64 `json:"breathingFrequency"`
	DampingFactor      float64 `json:"dampingFactor"`
	AttractionFactor   float64 `json:"attractionFactor"`
	PredictionFactor   float64 `json:"predictionFactor"`
}

// Range is the inclusive valid interval of a parameter together with its default.
type Range struct {
	Min     float64
	Max     float64
	Default float64
}

func (r Range) clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return r.Default
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

func (r Range) contains(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= r.Min && v <= r.Max
}

type field struct {
	rng Range
	ptr func(*Parameters) *float64
}

var fields = map[string]field{
	"distance":           {Range{1, 64, 6}, func(p *Parameters) *float64 { return &p.Distance }},
	"heightOffset":       {Range{-16, 48, 2}, func(p *Parameters) *float64 { return &p.HeightOffset }},
	"rotationSpeed":      {Range{0, 180, 15}, func(p *Parameters) *float64 { return &p.RotationSpeed }},
	"floatingStrength":   {Range{0, 4, 1}, func(p *Parameters) *float64 { return &p.FloatingStrength }},
	"floatingSpeed":      {Range{0, 4, 0.5}, func(p *Parameters) *float64 { return &p.FloatingSpeed }},
	"orbitRadius":        {Range{1, 64, 8}, func(p *Parameters) *float64 { return &p.OrbitRadius }},
	"heightVariation":    {Range{0, 16, 2}, func(p *Parameters) *float64 { return &p.HeightVariation }},
	"breathingFrequency": {Range{0, 2, 0.25}, func(p *Parameters) *float64 { return &p.BreathingFrequency }},
	"dampingFactor":      {Range{0.5, 0.999, 0.92}, func(p *Parameters) *float64 { return &p.DampingFactor }},
	"attractionFactor":   {Range{0.01, 20, 2.5}, func(p *Parameters) *float64 { return &p.AttractionFactor }},
	"predictionFactor":   {Range{0, 2, 0.6}, func(p *Parameters) *float64 { return &p.PredictionFactor }},
}

// DefaultParameters returns the documented default of every field.
func DefaultParameters() Parameters {
	var p Parameters
	for _, f := range fields {
		*f.ptr(&p) = f.rng.Default
	}
	return p
}

// Fields lists parameter names in sorted order.
func Fields() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldRange reports the valid range of a named field.
func FieldRange(name string) (Range, bool) {
	f, ok := fields[name]
	return f.rng, ok
}

// Clamped returns a copy with every field forced into its valid range.
// Non-finite values are replaced by the field default.
func (p Parameters) Clamped() Parameters {
	out := p
	for _, f := range fields {
		ptr := f.ptr(&out)
		*ptr = f.rng.clamp(*ptr)
	}
	return out
}

// Get reads a named field.
func (p Parameters) Get(name string) (float64, bool) {
	f, ok := fields[name]
	if !ok {
		return 0, false
	}
	return *f.ptr(&p), true
}

// Set writes a named field. Values outside the documented range are rejected
// with ErrInvalidParameter and leave p unchanged.
func (p *Parameters) Set(name string, value float64) error {
	f, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidParameter, name)
	}
	if !f.rng.contains(value) {
		return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidParameter, name, value, f.rng.Min, f.rng.Max)
	}
	*f.ptr(p) = value
	return nil
}

// Validate reports the first field outside its range.
func (p Parameters) Validate() error {
	for _, name := range Fields() {
		f := fields[name]
		if v := *f.ptr(&p); !f.rng.contains(v) {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidParameter, name, v, f.rng.Min, f.rng.Max)
		}
	}
	return nil
}
