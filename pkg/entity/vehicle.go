// pkg/entity/vehicle.go
package entity

import (
	"math"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// ControlInput is the latest control state polled for a tick.
type ControlInput struct {
	Thrust      bool `json:"thrust" msgpack:"thrust"`
	RotateLeft  bool `json:"left" msgpack:"left"`
	RotateRight bool `json:"right" msgpack:"right"`
	// Tilt is an optional analog rotation input in [-1, 1]; positive turns clockwise.
	// When set it replaces the digital rotation buttons.
	Tilt *float64 `json:"tilt,omitempty" msgpack:"tilt,omitempty"`
}

// Sanitized returns a copy with a clamped tilt. Non-finite tilt is dropped.
func (c ControlInput) Sanitized() ControlInput {
	if c.Tilt == nil {
		return c
	}
	if !physics.IsFinite(*c.Tilt) {
		c.Tilt = nil
		return c
	}
	t := physics.Clamp(*c.Tilt, -1, 1)
	c.Tilt = &t
	return c
}

// Active reports whether the input asks for any control action.
func (c ControlInput) Active() bool {
	return c.Thrust || c.RotateLeft || c.RotateRight || (c.Tilt != nil && *c.Tilt != 0)
}

// Forces is the environmental contribution to one tick.
type Forces struct {
	// Force is an acceleration in points/s², integrated over dt.
	Force physics.Vector2D
	// Kick is a velocity change applied once.
	Kick                physics.Vector2D
	ExtraLinearDamping  float64
	ExtraAngularDamping float64
}

// VehicleState is a read-only copy of the vehicle.
type VehicleState struct {
	Position        physics.Vector2D `json:"position" msgpack:"position"`
	Velocity        physics.Vector2D `json:"velocity" msgpack:"velocity"`
	Rotation        float64          `json:"rotation" msgpack:"rotation"`
	AngularVelocity float64          `json:"angularVelocity" msgpack:"angularVelocity"`
	Fuel            float64          `json:"fuel" msgpack:"fuel"`
	Thrusting       bool             `json:"thrusting" msgpack:"thrusting"`
	Dynamic         bool             `json:"dynamic" msgpack:"dynamic"`
	Width           float64          `json:"width" msgpack:"width"`
	Height          float64          `json:"height" msgpack:"height"`
}

// StepResult describes what happened during a vehicle step.
type StepResult struct {
	Thrusted        bool
	RotationStarted bool
	FuelUsed        float64
	OutOfBounds     bool
}

// Vehicle is the player-controlled lander
type Vehicle struct {
	BaseEntity
	Rotation        float64
	AngularVelocity float64
	Fuel            float64
	Dynamic         bool
	Thrusting       bool
	MaxDescentSpeed float64
	History         *physics.FlightHistory

	params       config.VehicleConfig
	world        config.WorldConfig
	wasRotating  bool
	lastPosition physics.Vector2D
}

// NewVehicle creates a vehicle parked at its spawn point
func NewVehicle(id ID, params config.VehicleConfig, world config.WorldConfig) *Vehicle {
	v := &Vehicle{
		BaseEntity: BaseEntity{ID: id, Active: true},
		History:    physics.NewFlightHistory(params.HistorySize),
		params:     params,
		world:      world,
	}
	v.Reset()
	return v
}

// Reset returns the vehicle to the spawn point with a full tank.
func (v *Vehicle) Reset() {
	v.Position = v.SpawnPoint()
	v.lastPosition = v.Position
	v.Velocity = physics.Vector2D{}
	v.Rotation = 0
	v.AngularVelocity = 0
	v.Fuel = v.params.MaxFuel
	v.Dynamic = false
	v.Thrusting = false
	v.MaxDescentSpeed = 0
	v.wasRotating = false
	v.Active = true
	v.History.Reset()
}

// SpawnPoint returns where the vehicle starts a session
func (v *Vehicle) SpawnPoint() physics.Vector2D {
	return physics.Vector2D{
		X: v.params.SpawnXFraction * v.world.Width,
		Y: v.world.Height - v.params.SpawnDrop,
	}
}

// Bounds returns the axis-aligned box around the rotated body.
func (v *Vehicle) Bounds() physics.Rect {
	return physics.RotatedBounds(v.Position, v.params.Width, v.params.Height, v.Rotation)
}

// PreviousBounds returns the body box at the start of the last step.
func (v *Vehicle) PreviousBounds() physics.Rect {
	return physics.RotatedBounds(v.lastPosition, v.params.Width, v.params.Height, v.Rotation)
}

// SweptBounds returns the box covered by the body during the last step.
func (v *Vehicle) SweptBounds() physics.Rect {
	return physics.Sweep(v.PreviousBounds(), v.Bounds())
}

// ApproachSpeed returns the mean recent downward speed, or the current one
// when no samples exist yet.
func (v *Vehicle) ApproachSpeed() float64 {
	return v.History.Mean(v.DownwardSpeed())
}

// DownwardSpeed returns the falling speed, zero when rising.
func (v *Vehicle) DownwardSpeed() float64 {
	return math.Max(0, -v.Velocity.Y)
}

// Freeze stops physics integration after a terminal outcome.
func (v *Vehicle) Freeze() {
	v.Dynamic = false
	v.Thrusting = false
}

// State returns a copy of the vehicle for snapshots and renderers.
func (v *Vehicle) State() VehicleState {
	return VehicleState{
		Position:        v.Position,
		Velocity:        v.Velocity,
		Rotation:        v.Rotation,
		AngularVelocity: v.AngularVelocity,
		Fuel:            v.Fuel,
		Thrusting:       v.Thrusting,
		Dynamic:         v.Dynamic,
		Width:           v.params.Width,
		Height:          v.params.Height,
	}
}

// Step integrates one tick. Thrust and rotation are velocity increments per
// tick; gravity and environmental forces scale with dt.
func (v *Vehicle) Step(dt float64, in ControlInput, profile config.EnvironmentProfile, f Forces) StepResult {
	var result StepResult
	if !v.Dynamic || dt <= 0 {
		return result
	}
	in = in.Sanitized()
	v.lastPosition = v.Position

	downward := v.DownwardSpeed()
	if downward > v.MaxDescentSpeed {
		v.MaxDescentSpeed = downward
	}
	v.History.Push(downward)

	fuelBefore := v.Fuel
	result.Thrusted = v.applyThrust(in.Thrust, profile.ThrustPower)
	result.RotationStarted = v.applyRotation(in)

	v.Velocity = v.Velocity.Add(f.Kick)
	v.Velocity = v.Velocity.Add(f.Force.Scale(dt))
	v.Velocity.Y += profile.GravityPoints() * dt

	if f.ExtraLinearDamping > 0 {
		v.Velocity = v.Velocity.Scale(math.Max(0, 1-f.ExtraLinearDamping*dt))
	}
	v.AngularVelocity *= math.Max(0, 1-(v.params.AngularDamping+f.ExtraAngularDamping)*dt)

	v.Update(dt)
	v.Rotation = physics.WrapAngle(v.Rotation + v.AngularVelocity*dt)
	v.wrapHorizontal()

	v.Fuel = physics.Clamp(v.Fuel, 0, v.params.MaxFuel)
	result.FuelUsed = fuelBefore - v.Fuel
	result.OutOfBounds = v.Position.Y < v.world.OutOfBoundsY
	return result
}

// applyThrust adds the per-tick thrust impulse along the body axis.
func (v *Vehicle) applyThrust(thrust bool, power float64) bool {
	v.Thrusting = thrust && v.Fuel > 0
	if !v.Thrusting {
		return false
	}
	// Vectoring assist: a share of the thrust, growing with |sin(rotation)|,
	// leaves the body axis and pushes sideways with the tilt. Not physical;
	// it keeps steep levels recoverable.
	sin := math.Sin(v.Rotation)
	redirected := v.params.VectoringFraction * math.Abs(sin)
	v.Velocity = v.Velocity.Add(physics.FromAngle(v.Rotation+math.Pi/2, power*(1-redirected)))
	v.Velocity.X -= sin * power * v.params.VectoringFraction
	v.Fuel -= v.params.ThrustFuelPerTick
	return true
}

// applyRotation handles analog tilt or the digital buttons, never both.
func (v *Vehicle) applyRotation(in ControlInput) bool {
	rotating := false
	if v.Fuel > 0 {
		if in.Tilt != nil {
			rotating = v.applyTilt(*in.Tilt)
		} else {
			if in.RotateLeft {
				v.AngularVelocity += v.params.RotationPower
				v.Fuel -= v.params.RotationFuelPerTick
				rotating = true
			}
			if in.RotateRight {
				v.AngularVelocity -= v.params.RotationPower
				v.Fuel -= v.params.RotationFuelPerTick
				rotating = true
			}
		}
	}
	started := rotating && !v.wasRotating
	v.wasRotating = rotating
	return started
}

func (v *Vehicle) applyTilt(tilt float64) bool {
	magnitude := math.Abs(tilt)
	if magnitude <= v.params.TiltDeadZone {
		return false
	}
	fraction := (magnitude - v.params.TiltDeadZone) / (1 - v.params.TiltDeadZone)
	v.AngularVelocity -= math.Copysign(v.params.RotationPower*fraction, tilt)
	v.Fuel -= v.params.RotationFuelPerTick * fraction
	return true
}

// wrapHorizontal moves the vehicle to the opposite edge once it leaves the margin.
func (v *Vehicle) wrapHorizontal() {
	margin := v.world.WrapMargin
	if v.Position.X < -margin {
		v.Position.X = v.world.Width + margin
		v.lastPosition.X = v.Position.X
	} else if v.Position.X > v.world.Width+margin {
		v.Position.X = -margin
		v.lastPosition.X = v.Position.X
	}
}
