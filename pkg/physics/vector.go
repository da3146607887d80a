// pkg/physics/vector.go
package physics

import "math"

// PointsPerMeter converts profile gravity (m/s²) into world points.
const PointsPerMeter = 150.0

// Vector2D is a 2D vector in world points. Y grows upward.
type Vector2D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns the sum of two vectors
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns the difference between two vectors
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale multiplies the vector by a scalar value
func (v Vector2D) Scale(factor float64) Vector2D {
	return Vector2D{X: v.X * factor, Y: v.Y * factor}
}

// Length returns the magnitude of the vector
func (v Vector2D) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the distance between two points
func (v Vector2D) Distance(other Vector2D) float64 {
	return v.Sub(other).Length()
}

// FromAngle creates a vector from an angle and magnitude
func FromAngle(angle float64, magnitude float64) Vector2D {
	return Vector2D{
		X: magnitude * math.Cos(angle),
		Y: magnitude * math.Sin(angle),
	}
}

// IsFinite reports whether both components are real numbers.
func (v Vector2D) IsFinite() bool {
	return IsFinite(v.X) && IsFinite(v.Y)
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// WrapAngle maps an angle in radians onto [-π, π].
func WrapAngle(a float64) float64 {
	if !IsFinite(a) {
		return 0
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
