package entity

import "github.com/opd-ai/go-lander/pkg/physics"

// Hazard is a short-lived ballistic particle that destroys the vehicle on contact.
type Hazard struct {
	BaseEntity `msgpack:",inline"`
	Radius     float64 `json:"radius" msgpack:"radius"`
	Age        float64 `json:"age" msgpack:"age"`
	Lifetime   float64 `json:"lifetime" msgpack:"lifetime"`
	// Gravity is the particle's own vertical acceleration in points/s².
	Gravity float64 `json:"gravity" msgpack:"gravity"`
}

// Step advances the particle along its ballistic arc.
func (h *Hazard) Step(dt float64) {
	h.Velocity.Y += h.Gravity * dt
	h.Update(dt)
	h.Age += dt
}

// Expired reports whether the particle has burned out or fallen below floorY.
func (h *Hazard) Expired(floorY float64) bool {
	return h.Age >= h.Lifetime || h.Position.Y+h.Radius < floorY
}

// Collider returns the particle's collision circle.
func (h *Hazard) Collider() physics.Circle {
	return physics.Circle{Center: h.Position, Radius: h.Radius}
}

// Bounds returns the box enclosing the particle.
func (h *Hazard) Bounds() physics.Rect {
	return physics.Rect{Center: h.Position, Width: 2 * h.Radius, Height: 2 * h.Radius}
}
