// Package scoring turns a safe landing into points and stars.
//
// Every term falls off quadratically from its best value to zero at the
// matching landing threshold, so the score has no steps other than the
// safe/crash gate itself. Fuel left in the tank multiplies the subtotal by
// up to 2.5 and the target multiplies it again.
package scoring

import (
	"math"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/landing"
)

// Term weights.
const (
	BasePoints        = 100.0
	SoftLandingMax    = 700.0
	HorizontalMax     = 400.0
	CentreMax         = 350.0
	RotationMax       = 250.0
	ApproachMax       = 200.0
	MaxSubtotal       = BasePoints + SoftLandingMax + HorizontalMax + CentreMax + RotationMax + ApproachMax
	FuelBonus         = 1.5
	FullTank          = 100.0
	MaxFuelMultiplier = 1 + FuelBonus
)

// Breakdown itemises a score.
type Breakdown struct {
	Base             float64 `json:"base"`
	SoftLanding      float64 `json:"softLanding"`
	Horizontal       float64 `json:"horizontal"`
	Centre           float64 `json:"centre"`
	Rotation         float64 `json:"rotation"`
	Approach         float64 `json:"approach"`
	Subtotal         float64 `json:"subtotal"`
	FuelMultiplier   float64 `json:"fuelMultiplier"`
	TargetMultiplier float64 `json:"targetMultiplier"`
	Final            int     `json:"final"`
}

// Compute scores a landing offset points from the target centre.
func Compute(k landing.Kinematics, offset, halfWidth, fuel, multiplier float64, th config.Thresholds) Breakdown {
	b := Breakdown{
		Base:             BasePoints,
		SoftLanding:      falloff(SoftLandingMax, math.Abs(k.VerticalSpeed), th.MaxVerticalSpeed),
		Horizontal:       falloff(HorizontalMax, math.Abs(k.HorizontalSpeed), th.MaxHorizontalSpeed),
		Centre:           falloff(CentreMax, math.Abs(offset), halfWidth),
		Rotation:         falloff(RotationMax, math.Abs(k.RotationMagnitude), th.MaxRotation),
		Approach:         falloff(ApproachMax, k.ApproachSpeed, th.MaxApproachSpeed),
		FuelMultiplier:   FuelMultiplier(fuel),
		TargetMultiplier: multiplier,
	}
	b.Subtotal = b.Base + b.SoftLanding + b.Horizontal + b.Centre + b.Rotation + b.Approach
	b.Final = int(math.Floor(b.Subtotal * b.FuelMultiplier * b.TargetMultiplier))
	return b
}

// Score returns the final score for a landing at vehicleX on target.
func Score(k landing.Kinematics, vehicleX float64, target *entity.Target, fuel float64, th config.Thresholds) int {
	return Compute(k, vehicleX-target.Position.X, target.HalfWidth(), fuel, target.Multiplier, th).Final
}

// FuelMultiplier maps fuel in [0, 100] onto [1.0, 2.5].
func FuelMultiplier(fuel float64) float64 {
	if !(fuel > 0) {
		return 1
	}
	return 1 + math.Min(fuel, FullTank)/FullTank*FuelBonus
}

// falloff returns weight·(1 − min(1, value/limit))². Unusable inputs score zero.
func falloff(weight, value, limit float64) float64 {
	if !(limit > 0) || math.IsNaN(value) {
		return 0
	}
	r := 1 - math.Min(1, math.Max(0, value/limit))
	return weight * r * r
}
