// pkg/entity/entity.go
package entity

import (
	"github.com/opd-ai/go-lander/pkg/physics"
)

// ID is a unique identifier for an entity
type ID uint64

// Entity is the base interface for all simulated objects
type Entity interface {
	GetID() ID
	GetPosition() physics.Vector2D
	Bounds() physics.Rect
	Render(r Renderer)
}

// BaseEntity contains common functionality for all entities
type BaseEntity struct {
	ID       ID               `json:"id" msgpack:"id"`
	Position physics.Vector2D `json:"position" msgpack:"position"`
	Velocity physics.Vector2D `json:"velocity" msgpack:"velocity"`
	Active   bool             `json:"active" msgpack:"active"`
}

// GetID returns the entity's unique identifier
func (e *BaseEntity) GetID() ID {
	return e.ID
}

// GetPosition returns the entity's position
func (e *BaseEntity) GetPosition() physics.Vector2D {
	return e.Position
}

// Update moves the entity along its velocity
func (e *BaseEntity) Update(deltaTime float64) {
	e.Position = e.Position.Add(e.Velocity.Scale(deltaTime))
}

func (v *Vehicle) Render(r Renderer) {
	r.RenderVehicle(v.State())
}

func (t *Target) Render(r Renderer) {
	r.RenderTarget(*t)
}

func (h *Hazard) Render(r Renderer) {
	r.RenderHazard(*h)
}
