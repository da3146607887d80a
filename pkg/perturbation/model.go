// Package perturbation produces the environmental effects of a landing profile:
// wind, gusts, thrust noise, extra drag, moving targets and debris eruptions.
package perturbation

import (
	"math"
	"math/rand/v2"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// Tuning constants. Forces are accelerations in points/s².
const (
	WindMin         = 15.0
	WindMax         = 35.0
	OscillationRate = 1.2
	OscillationJit  = 5.0

	GustForce     = 120.0
	GustJitter    = 15.0
	CalmJitter    = 5.0
	CalmMinTime   = 2.0
	CalmMaxTime   = 4.0
	GustMinTime   = 1.0
	GustMaxTime   = 2.5
	KickMaxX      = 1.5
	KickMaxY      = 0.5
	LinearDrag    = 0.35
	AngularDrag   = 0.5
	BobAmplitude  = 12.0
	BobRate       = 0.8
	SwayAmplitude = 60.0
	SwayRate      = 0.5
	SwayRateStep  = 0.15
	// SwayMargin is the minimum clearance kept between neighbouring targets.
	SwayMargin = 2.0

	EruptionMinInterval = 2.0
	EruptionMaxInterval = 5.0
	EruptionEdge        = 50.0
	EruptionY           = 180.0
	DebrisPerEruption   = 8
	DebrisMinRadius     = 3.0
	DebrisMaxRadius     = 7.0
	DebrisMaxVX         = 40.0
	DebrisMinRise       = 80.0
	DebrisMaxRise       = 200.0
	DebrisMinRiseTime   = 0.6
	DebrisMaxRiseTime   = 1.2
	DebrisFallTime      = 0.8
)

// Amplitude returns the oscillating wind amplitude for a severity.
func Amplitude(s config.Severity) float64 {
	switch s {
	case config.SeverityExtreme:
		return 90
	case config.SeverityUpdraft:
		return 60
	default:
		return 40
	}
}

// Model is the per-session perturbation state. It is driven from the
// simulation goroutine and is not safe for concurrent use.
type Model struct {
	profile config.EnvironmentProfile
	world   config.WorldConfig
	rng     *rand.Rand
	scale   float64

	wind      float64
	gust      gustState
	nextBurst float64
	nextID    entity.ID
}

type gustState struct {
	active   bool
	until    float64
	strength float64
}

// New creates a model for profile seeded with seed.
func New(profile config.EnvironmentProfile, world config.WorldConfig, seed uint64) *Model {
	m := &Model{profile: profile, world: world}
	m.Reset(seed)
	return m
}

// Reset reseeds the model and redraws its per-session parameters.
func (m *Model) Reset(seed uint64) {
	m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m.scale = m.profile.HazardScale
	if m.scale <= 0 {
		m.scale = 1
	}
	m.wind = 0
	m.gust = gustState{}
	m.nextBurst = 0
	m.nextID = 1

	switch m.profile.Mechanic {
	case config.MechanicConstantWind:
		m.wind = m.uniform(WindMin, WindMax) * m.sign() * m.scale
	case config.MechanicGustCycle:
		m.gust.until = m.uniform(CalmMinTime, CalmMaxTime)
	case config.MechanicHazardDebris:
		m.nextBurst = m.uniform(EruptionMinInterval, EruptionMaxInterval) / m.scale
	}
}

// Profile returns the profile the model was built for.
func (m *Model) Profile() config.EnvironmentProfile {
	return m.profile
}

// Wind returns the constant wind drawn for this session, zero for other mechanics.
func (m *Model) Wind() float64 {
	return m.wind
}

// Compute returns the forces for the tick starting at elapsed seconds of flight.
func (m *Model) Compute(elapsed, dt float64, thrusting bool) entity.Forces {
	var f entity.Forces
	switch m.profile.Mechanic {
	case config.MechanicConstantWind:
		f.Force.X = m.wind
	case config.MechanicOscillatingWind:
		v := Amplitude(m.profile.Severity)*m.scale*math.Sin(OscillationRate*elapsed) +
			m.uniform(-OscillationJit, OscillationJit)
		if m.profile.Severity == config.SeverityUpdraft {
			f.Force.Y = v
		} else {
			f.Force.X = v
		}
	case config.MechanicGustCycle:
		f.Force.X = m.gustForce(elapsed)
	case config.MechanicThrustPerturbation:
		if thrusting {
			f.Kick = physics.Vector2D{
				X: m.uniform(-KickMaxX, KickMaxX) * m.scale,
				Y: m.uniform(-KickMaxY, KickMaxY) * m.scale,
			}
		}
	case config.MechanicDampingIncrease:
		f.ExtraLinearDamping = LinearDrag * m.scale
		f.ExtraAngularDamping = AngularDrag * m.scale
	}
	return f
}

// Gusting reports whether a gust is currently blowing.
func (m *Model) Gusting() bool {
	return m.gust.active
}

func (m *Model) gustForce(elapsed float64) float64 {
	for elapsed >= m.gust.until {
		if m.gust.active {
			m.gust.active = false
			m.gust.until += m.uniform(CalmMinTime, CalmMaxTime)
		} else {
			m.gust.active = true
			m.gust.strength = GustForce * m.scale * m.sign()
			m.gust.until += m.uniform(GustMinTime, GustMaxTime)
		}
	}
	if m.gust.active {
		return m.gust.strength + m.uniform(-GustJitter, GustJitter)
	}
	return m.uniform(-CalmJitter, CalmJitter)
}

// AdvanceTargets moves targets for the moving-target mechanic. Sway is limited
// so that neighbours never overlap and every target stays inside the world.
func (m *Model) AdvanceTargets(elapsed float64, targets []*entity.Target) {
	if m.profile.Mechanic != config.MechanicMovingTarget {
		return
	}
	for i, t := range targets {
		left, right := swayRoom(targets, i, m.world.Width)
		// Alternate directions so neighbours move against each other; every
		// target is at home when elapsed is zero.
		dir := 1.0
		if i%2 == 1 {
			dir = -1
		}
		sway := dir * SwayAmplitude * m.scale * math.Sin((SwayRate+SwayRateStep*float64(i))*elapsed)
		t.Position.X = t.Home.X + physics.Clamp(sway, -left, right)
		t.Position.Y = t.Home.Y + dir*BobAmplitude*m.scale*math.Sin(BobRate*elapsed)
	}
}

// swayRoom returns how far target i may move left and right of its home.
func swayRoom(targets []*entity.Target, i int, width float64) (left, right float64) {
	t := targets[i]
	homeLeft := t.Home.X - t.HalfWidth()
	homeRight := t.Home.X + t.HalfWidth()

	if i == 0 {
		left = homeLeft
	} else {
		prev := targets[i-1]
		left = (homeLeft-(prev.Home.X+prev.HalfWidth()))/2 - SwayMargin
	}
	if i == len(targets)-1 {
		right = width - homeRight
	} else {
		next := targets[i+1]
		right = ((next.Home.X-next.HalfWidth())-homeRight)/2 - SwayMargin
	}
	return math.Max(0, left), math.Max(0, right)
}

// UpdateHazards steps live debris, drops expired particles and spawns a new
// eruption when one is due. It returns the surviving particles and how many
// were spawned this tick.
func (m *Model) UpdateHazards(elapsed, dt float64, hazards []*entity.Hazard) ([]*entity.Hazard, int) {
	if m.profile.Mechanic != config.MechanicHazardDebris {
		return hazards, 0
	}
	alive := hazards[:0]
	for _, h := range hazards {
		h.Step(dt)
		if !h.Expired(m.world.GroundHeight) {
			alive = append(alive, h)
		}
	}
	for i := len(alive); i < len(hazards); i++ {
		hazards[i] = nil
	}

	spawned := 0
	if elapsed >= m.nextBurst {
		alive = append(alive, m.erupt()...)
		spawned = DebrisPerEruption
		m.nextBurst = elapsed + m.uniform(EruptionMinInterval, EruptionMaxInterval)/m.scale
	}
	return alive, spawned
}

// erupt creates one burst of debris. Each particle rises by a random height
// over a random time and then falls for DebrisFallTime.
func (m *Model) erupt() []*entity.Hazard {
	origin := physics.Vector2D{
		X: m.uniform(EruptionEdge, m.world.Width-EruptionEdge),
		Y: EruptionY,
	}
	burst := make([]*entity.Hazard, 0, DebrisPerEruption)
	for i := 0; i < DebrisPerEruption; i++ {
		rise := m.uniform(DebrisMinRise, DebrisMaxRise)
		riseTime := m.uniform(DebrisMinRiseTime, DebrisMaxRiseTime)
		burst = append(burst, &entity.Hazard{
			BaseEntity: entity.BaseEntity{
				ID:       m.nextID,
				Position: origin,
				Velocity: physics.Vector2D{
					X: m.uniform(-DebrisMaxVX, DebrisMaxVX),
					Y: 2 * rise / riseTime,
				},
				Active: true,
			},
			Radius:   m.uniform(DebrisMinRadius, DebrisMaxRadius),
			Lifetime: riseTime + DebrisFallTime,
			Gravity:  -2 * rise / (riseTime * riseTime),
		})
		m.nextID++
	}
	return burst
}

// HazardHit returns the first live particle touching box, using a quadtree
// over the particles for the broad phase.
func HazardHit(box physics.Rect, hazards []*entity.Hazard, world config.WorldConfig) (*entity.Hazard, bool) {
	if len(hazards) == 0 {
		return nil, false
	}
	area := physics.Rect{
		Center: physics.Vector2D{X: world.Width / 2, Y: world.Height / 2},
		Width:  world.Width + 4*world.WrapMargin + 2*DebrisMaxVX,
		Height: world.Height * 2,
	}
	tree := physics.NewQuadTree[*entity.Hazard](area, 8)
	for _, h := range hazards {
		if !tree.Insert(h.Position, h) && h.Collider().IntersectsRect(box) {
			return h, true
		}
	}
	query := physics.Rect{
		Center: box.Center,
		Width:  box.Width + 2*DebrisMaxRadius,
		Height: box.Height + 2*DebrisMaxRadius,
	}
	for _, h := range tree.Query(query) {
		if h.Collider().IntersectsRect(box) {
			return h, true
		}
	}
	return nil, false
}

func (m *Model) uniform(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}

func (m *Model) sign() float64 {
	if m.rng.IntN(2) == 0 {
		return -1
	}
	return 1
}
