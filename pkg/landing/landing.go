// Package landing decides whether a touchdown on a target is safe.
package landing

import (
	"math"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// Result is the terminal classification of a session.
type Result string

const (
	ResultSafe  Result = "safe"
	ResultCrash Result = "crash"
)

// Cause explains a crash.
type Cause string

const (
	CauseNone        Cause = "none"
	CauseGround      Cause = "ground"
	CauseThreshold   Cause = "target-threshold"
	CauseSlideOff    Cause = "slide-off"
	CauseOutOfBounds Cause = "out-of-bounds"
	CauseHazard      Cause = "hazard"
)

// Check names one of the four touchdown limits.
type Check string

const (
	CheckVertical   Check = "vertical-speed"
	CheckHorizontal Check = "horizontal-speed"
	CheckRotation   Check = "rotation"
	CheckApproach   Check = "approach-speed"
)

// Kinematics are the vehicle measurements taken at first contact.
type Kinematics struct {
	VerticalSpeed     float64 `json:"verticalSpeed" msgpack:"verticalSpeed"`
	HorizontalSpeed   float64 `json:"horizontalSpeed" msgpack:"horizontalSpeed"`
	RotationMagnitude float64 `json:"rotation" msgpack:"rotation"`
	ApproachSpeed     float64 `json:"approachSpeed" msgpack:"approachSpeed"`
}

// Verdict is the result of the threshold gate.
type Verdict struct {
	Safe   bool
	Failed []Check
}

// Outcome is the immutable terminal record of a session.
type Outcome struct {
	Result     Result     `json:"result" msgpack:"result"`
	Cause      Cause      `json:"cause" msgpack:"cause"`
	Kinematics Kinematics `json:"kinematics" msgpack:"kinematics"`
	// TargetKey is set only for safe landings.
	TargetKey string  `json:"target,omitempty" msgpack:"target,omitempty"`
	Failed    []Check `json:"failed,omitempty" msgpack:"failed,omitempty"`
	Score     int     `json:"score" msgpack:"score"`
	Stars     int     `json:"stars" msgpack:"stars"`
	FuelLeft  float64 `json:"fuelLeft" msgpack:"fuelLeft"`
	Message   string  `json:"message" msgpack:"message"`
	Nudge     string  `json:"nudge,omitempty" msgpack:"nudge,omitempty"`
}

// Safe reports whether the outcome is a safe landing.
func (o Outcome) Safe() bool {
	return o.Result == ResultSafe
}

// Clone returns a deep copy.
func (o Outcome) Clone() Outcome {
	if o.Failed != nil {
		o.Failed = append([]Check(nil), o.Failed...)
	}
	return o
}

// Evaluator applies the touchdown thresholds.
type Evaluator struct {
	thresholds         config.Thresholds
	slideFrictionLimit float64
}

// NewEvaluator creates an evaluator. Slide-off is only checked on surfaces
// whose friction is below slideFrictionLimit.
func NewEvaluator(thresholds config.Thresholds, slideFrictionLimit float64) *Evaluator {
	return &Evaluator{thresholds: thresholds, slideFrictionLimit: slideFrictionLimit}
}

// Thresholds returns the limits in use.
func (e *Evaluator) Thresholds() config.Thresholds {
	return e.thresholds
}

// Evaluate runs the four checks. Every check is inclusive and all of them
// must pass. Non-finite measurements fail their check.
func (e *Evaluator) Evaluate(vertical, horizontal, rotation, approach float64) Verdict {
	var failed []Check
	if !within(math.Abs(vertical), e.thresholds.MaxVerticalSpeed) {
		failed = append(failed, CheckVertical)
	}
	if !within(math.Abs(horizontal), e.thresholds.MaxHorizontalSpeed) {
		failed = append(failed, CheckHorizontal)
	}
	if !within(math.Abs(rotation), e.thresholds.MaxRotation) {
		failed = append(failed, CheckRotation)
	}
	if !within(approach, e.thresholds.MaxApproachSpeed) {
		failed = append(failed, CheckApproach)
	}
	return Verdict{Safe: len(failed) == 0, Failed: failed}
}

// EvaluateKinematics is Evaluate over a Kinematics value.
func (e *Evaluator) EvaluateKinematics(k Kinematics) Verdict {
	return e.Evaluate(k.VerticalSpeed, k.HorizontalSpeed, k.RotationMagnitude, k.ApproachSpeed)
}

func within(v, limit float64) bool {
	return physics.IsFinite(v) && v <= limit
}

// SlidesOff reports whether a vehicle touching down at offset from the target
// centre with horizontal velocity vx would slide past the target edge.
func (e *Evaluator) SlidesOff(offset, vx, halfWidth, friction, gravity float64) bool {
	if friction >= e.slideFrictionLimit {
		return false
	}
	d := SlideDistance(vx, friction, gravity)
	return math.Abs(offset+math.Copysign(d, vx)) > halfWidth
}

// SlideDistance returns how far, in points, a body moving at speed points/s
// slides on a surface with friction coefficient friction under gravity
// (m/s²). Frictionless or weightless surfaces slide forever.
func SlideDistance(speed, friction, gravity float64) float64 {
	if speed == 0 {
		return 0
	}
	decel := friction * math.Abs(gravity) * physics.PointsPerMeter
	if decel <= 0 || !physics.IsFinite(decel) {
		return math.Inf(1)
	}
	return speed * speed / (2 * decel)
}
