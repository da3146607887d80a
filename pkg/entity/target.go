// pkg/entity/target.go
package entity

import (
	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// Target is a scored landing platform. Position is the centre of its slab.
type Target struct {
	BaseEntity `msgpack:",inline"`
	Key        string           `json:"key" msgpack:"key"`
	Label      string           `json:"label" msgpack:"label"`
	Width      float64          `json:"width" msgpack:"width"`
	Height     float64          `json:"height" msgpack:"height"`
	Multiplier float64          `json:"multiplier" msgpack:"multiplier"`
	Stars      int              `json:"stars" msgpack:"stars"`
	Friction   float64          `json:"friction" msgpack:"friction"`
	Home       physics.Vector2D `json:"home" msgpack:"home"`
}

// NewTargets lays the target specs out across the world, left to right.
func NewTargets(specs []config.TargetSpec, world config.WorldConfig) []*Target {
	targets := make([]*Target, 0, len(specs))
	y := world.TargetBaseY + world.TargetHeight/2
	for i, spec := range specs {
		home := physics.Vector2D{X: spec.XFraction * world.Width, Y: y}
		targets = append(targets, &Target{
			BaseEntity: BaseEntity{ID: ID(i + 1), Position: home, Active: true},
			Key:        spec.ID,
			Label:      spec.Label,
			Width:      spec.Width,
			Height:     world.TargetHeight,
			Multiplier: spec.Multiplier,
			Stars:      spec.Stars,
			Friction:   spec.Friction,
			Home:       home,
		})
	}
	return targets
}

// Bounds returns the target slab.
func (t *Target) Bounds() physics.Rect {
	return physics.Rect{Center: t.Position, Width: t.Width, Height: t.Height}
}

// Top returns the landing surface height.
func (t *Target) Top() float64 {
	return t.Position.Y + t.Height/2
}

// HalfWidth returns half the target width.
func (t *Target) HalfWidth() float64 {
	return t.Width / 2
}
