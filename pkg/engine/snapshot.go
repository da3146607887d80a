package engine

import (
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// FrameSnapshot is a read-only copy of a session after a tick. It shares no
// memory with the session.
type FrameSnapshot struct {
	SessionID       string              `json:"session" msgpack:"session"`
	Profile         string              `json:"profile" msgpack:"profile"`
	Tick            uint64              `json:"tick" msgpack:"tick"`
	Elapsed         float64             `json:"elapsed" msgpack:"elapsed"`
	State           State               `json:"state" msgpack:"state"`
	Vehicle         entity.VehicleState `json:"vehicle" msgpack:"vehicle"`
	ApproachSpeed   float64             `json:"approachSpeed" msgpack:"approachSpeed"`
	MaxDescentSpeed float64             `json:"maxDescentSpeed" msgpack:"maxDescentSpeed"`
	Force           physics.Vector2D    `json:"force" msgpack:"force"`
	Targets         []entity.Target     `json:"targets" msgpack:"targets"`
	Hazards         []entity.Hazard     `json:"hazards,omitempty" msgpack:"hazards,omitempty"`
	Outcome         *landing.Outcome    `json:"outcome,omitempty" msgpack:"outcome,omitempty"`
}

// Terminal reports whether the round has ended.
func (f FrameSnapshot) Terminal() bool {
	return f.State == StateTerminal
}

// Render draws the frame: targets, then hazards, then the vehicle.
func (f FrameSnapshot) Render(r entity.Renderer) {
	r.Clear()
	for i := range f.Targets {
		f.Targets[i].Render(r)
	}
	for i := range f.Hazards {
		f.Hazards[i].Render(r)
	}
	r.RenderVehicle(f.Vehicle)
	r.Present()
}

func (s *Session) snapshotLocked() FrameSnapshot {
	f := FrameSnapshot{
		SessionID:       s.id,
		Profile:         s.profile.ID,
		Tick:            s.tick,
		Elapsed:         s.elapsed,
		State:           s.state,
		Vehicle:         s.vehicle.State(),
		ApproachSpeed:   s.vehicle.ApproachSpeed(),
		MaxDescentSpeed: s.vehicle.MaxDescentSpeed,
		Force:           s.lastForce,
		Targets:         make([]entity.Target, len(s.targets)),
	}
	for i, t := range s.targets {
		f.Targets[i] = *t
	}
	if len(s.hazards) > 0 {
		f.Hazards = make([]entity.Hazard, len(s.hazards))
		for i, h := range s.hazards {
			f.Hazards[i] = *h
		}
	}
	if s.outcome != nil {
		o := s.outcome.Clone()
		f.Outcome = &o
	}
	return f
}
