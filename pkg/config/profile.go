package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/go-lander/pkg/physics"
)

// ErrUnknownProfile is returned when a profile ID is not in the catalog.
var ErrUnknownProfile = errors.New("unknown environment profile")

// Mechanic tags the environmental effect a profile applies.
type Mechanic string

const (
	MechanicNone               Mechanic = "none"
	MechanicConstantWind       Mechanic = "constant-wind"
	MechanicOscillatingWind    Mechanic = "oscillating-wind"
	MechanicGustCycle          Mechanic = "gust-cycle"
	MechanicThrustPerturbation Mechanic = "thrust-perturbation"
	MechanicDampingIncrease    Mechanic = "damping-increase"
	MechanicFrictionDecrease   Mechanic = "friction-decrease"
	MechanicMovingTarget       Mechanic = "moving-target"
	MechanicHazardDebris       Mechanic = "hazard-debris"
)

// Severity selects a variant of the oscillating wind.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityExtreme  Severity = "extreme"
	SeverityUpdraft  Severity = "updraft"
)

// Valid reports whether m is a known mechanic.
func (m Mechanic) Valid() bool {
	switch m {
	case MechanicNone, MechanicConstantWind, MechanicOscillatingWind, MechanicGustCycle,
		MechanicThrustPerturbation, MechanicDampingIncrease, MechanicFrictionDecrease,
		MechanicMovingTarget, MechanicHazardDebris:
		return true
	}
	return false
}

// TargetSpec is the static description of a landing target.
type TargetSpec struct {
	ID         string  `yaml:"id" json:"id"`
	Label      string  `yaml:"label" json:"label"`
	XFraction  float64 `yaml:"xFraction" json:"xFraction"`
	Width      float64 `yaml:"width" json:"width"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Stars      int     `yaml:"stars" json:"stars"`
	Friction   float64 `yaml:"friction" json:"friction"`
}

// DefaultTargets returns the three standard landing targets, left to right.
func DefaultTargets() []TargetSpec {
	return []TargetSpec{
		{ID: "A", Label: "Training Zone", XFraction: 0.18, Width: 130, Multiplier: 1, Stars: 1, Friction: 0.8},
		{ID: "B", Label: "Precision Target", XFraction: 0.50, Width: 110, Multiplier: 2, Stars: 2, Friction: 0.8},
		{ID: "C", Label: "Elite Landing", XFraction: 0.82, Width: 80, Multiplier: 5, Stars: 3, Friction: 0.8},
	}
}

// EnvironmentProfile holds the per-level physical parameters.
// Profiles are handed out by value and never mutated after lookup.
type EnvironmentProfile struct {
	ID          string       `yaml:"id" json:"id"`
	Level       int          `yaml:"level" json:"level"`
	Name        string       `yaml:"name" json:"name"`
	Gravity     float64      `yaml:"gravity" json:"gravity"`
	ThrustPower float64      `yaml:"thrustPower" json:"thrustPower"`
	Mechanic    Mechanic     `yaml:"mechanic" json:"mechanic"`
	Severity    Severity     `yaml:"severity,omitempty" json:"severity,omitempty"`
	HazardScale float64      `yaml:"hazardScale" json:"hazardScale"`
	Description string       `yaml:"description" json:"description"`
	Targets     []TargetSpec `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// GravityPoints returns gravity as a world acceleration in points/s².
func (p EnvironmentProfile) GravityPoints() float64 {
	return p.Gravity * physics.PointsPerMeter
}

// ThrustRatio returns thrust power over gravity magnitude.
func (p EnvironmentProfile) ThrustRatio() float64 {
	if p.Gravity == 0 {
		return 0
	}
	g := p.Gravity
	if g < 0 {
		g = -g
	}
	return p.ThrustPower / g
}

// TargetSpecs returns a private copy of the profile's targets.
func (p EnvironmentProfile) TargetSpecs() []TargetSpec {
	src := p.Targets
	if len(src) == 0 {
		src = DefaultTargets()
	}
	out := make([]TargetSpec, len(src))
	copy(out, src)
	if p.Mechanic == MechanicFrictionDecrease {
		for i := range out {
			out[i].Friction = 0.05
		}
	}
	return out
}

// Validate checks the profile is usable by a session.
func (p EnvironmentProfile) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "ID", Message: "profile id is required"}
	}
	if p.Gravity >= 0 || !physics.IsFinite(p.Gravity) {
		return &ValidationError{Field: "Gravity", Value: fmt.Sprint(p.Gravity), Message: "must be negative"}
	}
	if p.ThrustPower <= 0 || !physics.IsFinite(p.ThrustPower) {
		return &ValidationError{Field: "ThrustPower", Value: fmt.Sprint(p.ThrustPower), Message: "must be positive"}
	}
	if !p.Mechanic.Valid() {
		return &ValidationError{Field: "Mechanic", Value: string(p.Mechanic), Message: "unknown mechanic"}
	}
	if p.HazardScale < 0 {
		return &ValidationError{Field: "HazardScale", Value: fmt.Sprint(p.HazardScale), Message: "must not be negative"}
	}
	specs := p.TargetSpecs()
	for i, t := range specs {
		if t.Width <= 0 || t.Multiplier <= 0 {
			return &ValidationError{Field: "Targets", Value: t.ID, Message: "width and multiplier must be positive"}
		}
		if i > 0 && specs[i-1].XFraction >= t.XFraction {
			return &ValidationError{Field: "Targets", Value: t.ID, Message: "targets must be ordered left to right"}
		}
	}
	return nil
}

// Catalog is an ordered, read-only set of environment profiles.
type Catalog struct {
	profiles map[string]EnvironmentProfile
	order    []string
}

type catalogFile struct {
	Profiles []EnvironmentProfile `yaml:"profiles"`
}

// NewCatalog builds a catalog, rejecting invalid or duplicate profiles.
func NewCatalog(profiles []EnvironmentProfile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]EnvironmentProfile, len(profiles))}
	for _, p := range profiles {
		if p.Mechanic == "" {
			p.Mechanic = MechanicNone
		}
		if p.HazardScale == 0 {
			p.HazardScale = 1
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.ID, err)
		}
		if _, exists := c.profiles[p.ID]; exists {
			return nil, fmt.Errorf("profile %q: duplicate id", p.ID)
		}
		p.Targets = p.TargetSpecs()
		c.profiles[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// ParseCatalog decodes a YAML profile catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("catalog defines no profiles")
	}
	return NewCatalog(file.Profiles)
}

// LoadCatalog reads a YAML profile catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// MarshalYAML encodes the catalog in the same layout ParseCatalog reads.
func (c *Catalog) MarshalYAML() (interface{}, error) {
	file := catalogFile{}
	for _, id := range c.order {
		file.Profiles = append(file.Profiles, c.profiles[id])
	}
	return file, nil
}

// Lookup returns a copy of the profile with the given ID.
func (c *Catalog) Lookup(id string) (EnvironmentProfile, error) {
	p, ok := c.profiles[id]
	if !ok {
		return EnvironmentProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
	p.Targets = p.TargetSpecs()
	return p, nil
}

// IDs returns profile IDs in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Campaign returns the numbered levels in ascending order.
func (c *Catalog) Campaign() []EnvironmentProfile {
	var levels []EnvironmentProfile
	for _, id := range c.order {
		if p := c.profiles[id]; p.Level > 0 {
			p.Targets = p.TargetSpecs()
			levels = append(levels, p)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels
}

// ByLevel returns the campaign profile with the given level number.
func (c *Catalog) ByLevel(level int) (EnvironmentProfile, bool) {
	for _, p := range c.Campaign() {
		if p.Level == level {
			return p, true
		}
	}
	return EnvironmentProfile{}, false
}

// DefaultCatalog returns the classic profile and the ten campaign levels.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

func defaultProfiles() []EnvironmentProfile {
	return []EnvironmentProfile{
		{ID: "classic", Name: "Classic", Gravity: -2.0, ThrustPower: 12, Mechanic: MechanicNone,
			Description: "Three targets, no hazards."},
		{ID: "moon", Level: 1, Name: "Moon", Gravity: -1.6, ThrustPower: 8, Mechanic: MechanicNone,
			Description: "Low gravity training. No hazards."},
		{ID: "mars", Level: 2, Name: "Mars", Gravity: -2.0, ThrustPower: 9.5, Mechanic: MechanicConstantWind,
			Description: "Light dust winds push your craft."},
		{ID: "titan", Level: 3, Name: "Titan", Gravity: -2.2, ThrustPower: 10, Mechanic: MechanicDampingIncrease,
			Description: "Dense atmosphere increases drag."},
		{ID: "europa", Level: 4, Name: "Europa", Gravity: -2.5, ThrustPower: 11, Mechanic: MechanicFrictionDecrease,
			Description: "Ice surface, low friction landing."},
		{ID: "earth", Level: 5, Name: "Earth", Gravity: -2.8, ThrustPower: 12, Mechanic: MechanicMovingTarget,
			Description: "Barge landing, the platforms move."},
		{ID: "venus", Level: 6, Name: "Venus", Gravity: -3.2, ThrustPower: 13, Mechanic: MechanicOscillatingWind,
			Severity: SeverityUpdraft, Description: "Vertical updrafts disrupt your descent."},
		{ID: "mercury", Level: 7, Name: "Mercury", Gravity: -3.5, ThrustPower: 14, Mechanic: MechanicThrustPerturbation,
			Description: "Heat shimmer disrupts thrust control."},
		{ID: "ganymede", Level: 8, Name: "Ganymede", Gravity: -3.8, ThrustPower: 15, Mechanic: MechanicNone,
			Description: "Deep craters make terrain deadly."},
		{ID: "io", Level: 9, Name: "Io", Gravity: -4.2, ThrustPower: 16.5, Mechanic: MechanicHazardDebris,
			Description: "Volcanic debris is deadly, time it."},
		{ID: "jupiter", Level: 10, Name: "Jupiter", Gravity: -4.8, ThrustPower: 18.5, Mechanic: MechanicGustCycle,
			Description: "Sudden gusts between calm windows."},
	}
}
