// pkg/engine/game.go
package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/contact"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/perturbation"
	"github.com/opd-ai/go-lander/pkg/physics"
	"github.com/opd-ai/go-lander/pkg/scoring"
)

// State is the lifecycle stage of a session.
type State int

const (
	StatePreLaunch State = iota
	StateActive
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StatePreLaunch:
		return "pre-launch"
	case StateActive:
		return "active"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder receives every tick a session processes.
type Recorder interface {
	RecordTick(tick uint64, dt float64, in entity.ControlInput)
}

// Options configures a new session.
type Options struct {
	// ID defaults to a random UUID.
	ID string
	// Profile defaults to the configured default profile.
	Profile string
	// Seed seeds the first round. Later rounds derive their seed from it.
	Seed uint64
	Bus  *event.Bus
}

// Session owns one vehicle on one landing field. Tick and Reset take the
// write lock; Snapshot and the accessors take the read lock. Events are
// published after the lock is released, so handlers may call back into
// the session.
type Session struct {
	mu sync.RWMutex

	id        string
	cfg       *config.GameConfig
	catalog   *config.Catalog
	bus       *event.Bus
	evaluator *landing.Evaluator
	resolver  *contact.Resolver
	recorder  Recorder

	profile  config.EnvironmentProfile
	selected config.EnvironmentProfile
	baseSeed uint64
	seed     uint64
	round    uint64

	vehicle   *entity.Vehicle
	targets   []*entity.Target
	hazards   []*entity.Hazard
	model     *perturbation.Model
	messenger *scoring.Messenger

	state     State
	tick      uint64
	elapsed   float64
	lastForce physics.Vector2D
	outcome   *landing.Outcome
}

// NewSession creates a session in PreLaunch.
func NewSession(cfg *config.GameConfig, catalog *config.Catalog, opts Options) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	profileID := opts.Profile
	if profileID == "" {
		profileID = cfg.DefaultProfile
	}
	profile, err := catalog.Lookup(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewEventBus()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}

	s := &Session{
		id:        opts.ID,
		cfg:       cfg,
		catalog:   catalog,
		bus:       opts.Bus,
		evaluator: landing.NewEvaluator(cfg.Thresholds, cfg.Simulation.SlideFrictionLimit),
		resolver:  contact.NewResolver(cfg.World),
		profile:   profile,
		selected:  profile,
		baseSeed:  seed,
		seed:      seed,
		vehicle:   entity.NewVehicle(1, cfg.Vehicle, cfg.World),
	}
	s.initRound()
	return s, nil
}

// initRound rebuilds every per-round object from the current profile and seed.
func (s *Session) initRound() {
	s.vehicle.Reset()
	s.targets = entity.NewTargets(s.profile.TargetSpecs(), s.cfg.World)
	s.hazards = nil
	s.model = perturbation.New(s.profile, s.cfg.World, s.seed)
	s.messenger = scoring.NewMessenger(s.seed)
	s.resolver.Reset()
	s.state = StatePreLaunch
	s.tick = 0
	s.elapsed = 0
	s.lastForce = physics.Vector2D{}
	s.outcome = nil
}

// SetRecorder installs r to receive processed ticks. Pass nil to stop recording.
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// Tick advances the session by dt seconds with the given controls.
func (s *Session) Tick(dt float64, in entity.ControlInput) FrameSnapshot {
	s.mu.Lock()
	events := s.tickLocked(dt, in)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, e := range events {
		s.bus.Publish(e)
	}
	return snap
}

func (s *Session) tickLocked(dt float64, in entity.ControlInput) []event.Event {
	if s.state == StateTerminal {
		return nil
	}
	dt = s.sanitizeDelta(dt)
	in = in.Sanitized()

	var events []event.Event
	if s.state == StatePreLaunch {
		if !in.Active() {
			return nil
		}
		s.state = StateActive
		s.vehicle.Dynamic = true
		events = append(events, s.newEvent(event.SessionStarted))
	}
	if s.recorder != nil {
		s.recorder.RecordTick(s.tick, dt, in)
	}
	if dt == 0 {
		return events
	}

	forces := s.model.Compute(s.elapsed, dt, in.Thrust && s.vehicle.Fuel > 0)
	s.lastForce = forces.Force
	s.model.AdvanceTargets(s.elapsed+dt, s.targets)
	res := s.vehicle.Step(dt, in, s.profile, forces)

	var spawned int
	s.hazards, spawned = s.model.UpdateHazards(s.elapsed, dt, s.hazards)
	s.elapsed += dt
	s.tick++

	if res.Thrusted {
		events = append(events, &event.ThrustEvent{SessionEvent: *s.newEvent(event.ThrustTick), Fuel: s.vehicle.Fuel})
	}
	if res.RotationStarted {
		events = append(events, s.newEvent(event.RotationStart))
	}
	if spawned > 0 {
		events = append(events, &event.HazardEvent{SessionEvent: *s.newEvent(event.HazardSpawned), Count: spawned})
	}

	c := s.resolver.Resolve(s.vehicle, s.targets, s.hazards)
	switch {
	case c.Kind == contact.Target:
		s.land(c.Target)
	case c.Kind == contact.Ground:
		s.crash(landing.CauseGround)
	case c.Kind == contact.Hazard:
		s.crash(landing.CauseHazard)
	case res.OutOfBounds:
		s.crash(landing.CauseOutOfBounds)
	}

	if s.outcome != nil {
		events = append(events, s.outcomeEvent())
	}
	return events
}

// sanitizeDelta maps unusable deltas to zero and caps large ones.
func (s *Session) sanitizeDelta(dt float64) float64 {
	if !physics.IsFinite(dt) || dt <= 0 {
		return 0
	}
	return math.Min(dt, s.cfg.Simulation.MaxDelta)
}

// kinematics measures the vehicle at first contact. Vertical speed counts
// only falling, so a rising contact reads zero.
func (s *Session) kinematics() landing.Kinematics {
	return landing.Kinematics{
		VerticalSpeed:     s.vehicle.DownwardSpeed(),
		HorizontalSpeed:   math.Abs(s.vehicle.Velocity.X),
		RotationMagnitude: math.Abs(s.vehicle.Rotation),
		ApproachSpeed:     s.vehicle.ApproachSpeed(),
	}
}

// land evaluates a touchdown on target and ends the session.
func (s *Session) land(target *entity.Target) {
	k := s.kinematics()
	verdict := s.evaluator.EvaluateKinematics(k)
	if !verdict.Safe {
		s.finish(landing.Outcome{Result: landing.ResultCrash, Cause: landing.CauseThreshold, Kinematics: k, Failed: verdict.Failed})
		return
	}
	offset := s.vehicle.Position.X - target.Position.X
	if s.evaluator.SlidesOff(offset, s.vehicle.Velocity.X, target.HalfWidth(), target.Friction, s.profile.Gravity) {
		s.finish(landing.Outcome{Result: landing.ResultCrash, Cause: landing.CauseSlideOff, Kinematics: k})
		return
	}

	score := scoring.Score(k, s.vehicle.Position.X, target, s.vehicle.Fuel, s.cfg.Thresholds)
	s.vehicle.Position.Y = contact.RestingY(s.vehicle, target)
	s.finish(landing.Outcome{
		Result:     landing.ResultSafe,
		Cause:      landing.CauseNone,
		Kinematics: k,
		TargetKey:  target.Key,
		Score:      score,
		Stars:      target.Stars,
		Message:    s.messenger.Success(target.Stars, score),
	})
}

func (s *Session) crash(cause landing.Cause) {
	s.finish(landing.Outcome{Result: landing.ResultCrash, Cause: cause, Kinematics: s.kinematics()})
}

// finish records the outcome and freezes the vehicle. It runs once per round.
func (s *Session) finish(o landing.Outcome) {
	if o.Result == landing.ResultCrash {
		o.Message, o.Nudge = s.messenger.Crash(o.Cause, o.Failed)
	}
	o.FuelLeft = s.vehicle.Fuel
	s.vehicle.Freeze()
	s.vehicle.Velocity = physics.Vector2D{}
	s.vehicle.AngularVelocity = 0
	s.outcome = &o
	s.state = StateTerminal
}

func (s *Session) newEvent(t event.Type) *event.SessionEvent {
	return event.NewSessionEvent(t, s, s.id, s.profile.ID, s.tick, s.elapsed)
}

func (s *Session) outcomeEvent() event.Event {
	t := event.Crash
	if s.outcome.Safe() {
		t = event.LandingSuccess
	}
	return &event.LandingEvent{
		SessionEvent: *s.newEvent(t),
		Target:       s.outcome.TargetKey,
		Cause:        string(s.outcome.Cause),
		Score:        s.outcome.Score,
		Stars:        s.outcome.Stars,
	}
}

// Reset starts a new round in PreLaunch under the selected profile.
func (s *Session) Reset() FrameSnapshot {
	s.mu.Lock()
	s.profile = s.selected
	s.round++
	s.seed = deriveSeed(s.baseSeed, s.round)
	s.initRound()
	e := s.newEvent(event.SessionReset)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(e)
	return snap
}

// SelectProfile chooses the profile used from the next Reset on.
func (s *Session) SelectProfile(id string) error {
	profile, err := s.catalog.Lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = profile
	e := event.NewSessionEvent(event.ProfileSelected, s, s.id, profile.ID, s.tick, s.elapsed)
	s.mu.Unlock()

	s.bus.Publish(e)
	return nil
}

// deriveSeed spreads round numbers over the seed space (splitmix64).
func deriveSeed(base, round uint64) uint64 {
	if round == 0 {
		return base
	}
	z := base + round*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Snapshot returns the current frame without advancing the simulation.
func (s *Session) Snapshot() FrameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Outcome returns the terminal outcome of the current round, if any.
func (s *Session) Outcome() (landing.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outcome == nil {
		return landing.Outcome{}, false
	}
	return s.outcome.Clone(), true
}

// State returns the lifecycle stage.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Bus returns the bus events are published on.
func (s *Session) Bus() *event.Bus { return s.bus }

// Config returns the configuration the session was built with.
func (s *Session) Config() *config.GameConfig { return s.cfg }

// Profile returns the profile of the current round.
func (s *Session) Profile() config.EnvironmentProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Seed returns the seed of the current round.
func (s *Session) Seed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed
}
