package world

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultID        = "overworld"
	DefaultWidth     = 512.0
	DefaultDepth     = 512.0
	DefaultHeight    = 256.0
	DefaultMoveSpeed = 4.3
	DefaultEyeHeight = 1.62
)

// Config sizes the world and tunes avatar movement.
type Config struct {
	ID        string     `json:"id"`
	Width     float64    `json:"width"`
	Depth     float64    `json:"depth"`
	Height    float64    `json:"height"`
	MoveSpeed float64    `json:"moveSpeed"`
	EyeHeight float64    `json:"eyeHeight"`
	Spawn     mgl64.Vec3 `json:"spawn"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.ID = strings.TrimSpace(normalized.ID)
	if normalized.ID == "" {
		normalized.ID = DefaultID
	}
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Depth <= 0 {
		normalized.Depth = DefaultDepth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.MoveSpeed <= 0 {
		normalized.MoveSpeed = DefaultMoveSpeed
	}
	if normalized.EyeHeight <= 0 {
		normalized.EyeHeight = DefaultEyeHeight
	}
	if normalized.Spawn == (mgl64.Vec3{}) {
		normalized.Spawn = mgl64.Vec3{normalized.Width / 2, 64, normalized.Depth / 2}
	}
	normalized.Spawn = normalized.clamp(normalized.Spawn)
	return normalized
}

func (cfg Config) clamp(pos mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		mgl64.Clamp(pos.X(), 0, cfg.Width),
		mgl64.Clamp(pos.Y(), 0, cfg.Height),
		mgl64.Clamp(pos.Z(), 0, cfg.Depth),
	}
}
