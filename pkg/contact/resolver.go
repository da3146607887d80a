// Package contact detects the first touchdown of the vehicle each session.
package contact

import (
	"math"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/perturbation"
)

// Kind identifies what the vehicle touched.
type Kind int

const (
	None Kind = iota
	Ground
	Target
	Hazard
)

func (k Kind) String() string {
	switch k {
	case Ground:
		return "ground"
	case Target:
		return "target"
	case Hazard:
		return "hazard"
	default:
		return "none"
	}
}

// Contact is the result of one resolution.
type Contact struct {
	Kind   Kind
	Target *entity.Target
	Hazard *entity.Hazard
}

// Resolver reports at most one contact per session. It latches on the
// first contact and reports None until Reset.
type Resolver struct {
	world   config.WorldConfig
	latched bool
}

// NewResolver creates a resolver for world.
func NewResolver(world config.WorldConfig) *Resolver {
	return &Resolver{world: world}
}

// Resolve checks the box swept by the vehicle during the last step against
// targets first, then the ground, then live hazards.
func (r *Resolver) Resolve(v *entity.Vehicle, targets []*entity.Target, hazards []*entity.Hazard) Contact {
	if r.latched {
		return Contact{}
	}
	c := r.resolve(v, targets, hazards)
	if c.Kind != None {
		r.latched = true
	}
	return c
}

func (r *Resolver) resolve(v *entity.Vehicle, targets []*entity.Target, hazards []*entity.Hazard) Contact {
	swept := v.SweptBounds()

	var touched []*entity.Target
	for _, t := range targets {
		if swept.Intersects(t.Bounds()) {
			touched = append(touched, t)
		}
	}
	switch len(touched) {
	case 0:
	case 1:
		return Contact{Kind: Target, Target: touched[0]}
	default:
		return Contact{Kind: Target, Target: NearestTarget(v.Position.X, touched)}
	}

	if swept.Bottom() <= r.world.GroundHeight {
		return Contact{Kind: Ground}
	}

	if h, ok := perturbation.HazardHit(v.Bounds(), hazards, r.world); ok {
		return Contact{Kind: Hazard, Hazard: h}
	}
	return Contact{}
}

// Latched reports whether a contact has already been reported.
func (r *Resolver) Latched() bool {
	return r.latched
}

// Reset clears the latch for a new session.
func (r *Resolver) Reset() {
	r.latched = false
}

// NearestTarget returns the target whose centre is horizontally closest to x,
// or nil when there are none.
func NearestTarget(x float64, targets []*entity.Target) *entity.Target {
	var nearest *entity.Target
	best := math.Inf(1)
	for _, t := range targets {
		if d := math.Abs(t.Position.X - x); d < best {
			best = d
			nearest = t
		}
	}
	return nearest
}

// RestingY returns the vehicle centre height that puts the bottom of its
// rotated box on the target surface.
func RestingY(v *entity.Vehicle, t *entity.Target) float64 {
	b := v.Bounds()
	return t.Top() + b.Height/2
}
