// pkg/physics/collision.go
package physics

import "math"

// Rect is an axis-aligned box described by its centre and size.
type Rect struct {
	Center Vector2D
	Width  float64
	Height float64
}

// Left returns the minimum X of the box
func (r Rect) Left() float64 { return r.Center.X - r.Width/2 }

// Right returns the maximum X of the box
func (r Rect) Right() float64 { return r.Center.X + r.Width/2 }

// Bottom returns the minimum Y of the box
func (r Rect) Bottom() float64 { return r.Center.Y - r.Height/2 }

// Top returns the maximum Y of the box
func (r Rect) Top() float64 { return r.Center.Y + r.Height/2 }

// Contains reports whether point lies inside the box (right and top edges excluded).
func (r Rect) Contains(point Vector2D) bool {
	return point.X >= r.Left() && point.X < r.Right() &&
		point.Y >= r.Bottom() && point.Y < r.Top()
}

// Intersects reports whether two boxes overlap or touch.
func (r Rect) Intersects(other Rect) bool {
	return r.Left() <= other.Right() && other.Left() <= r.Right() &&
		r.Bottom() <= other.Top() && other.Bottom() <= r.Top()
}

// OverlapX reports whether the horizontal extents of two boxes overlap.
func (r Rect) OverlapX(other Rect) bool {
	return r.Left() <= other.Right() && other.Left() <= r.Right()
}

// RotatedBounds returns the axis-aligned bounds of a width x height box
// centred on center and rotated by angle radians.
func RotatedBounds(center Vector2D, width, height, angle float64) Rect {
	c := math.Abs(math.Cos(angle))
	s := math.Abs(math.Sin(angle))
	return Rect{
		Center: center,
		Width:  width*c + height*s,
		Height: width*s + height*c,
	}
}

// Sweep returns the smallest box covering a box moved from one centre to another.
func Sweep(from, to Rect) Rect {
	left := math.Min(from.Left(), to.Left())
	right := math.Max(from.Right(), to.Right())
	bottom := math.Min(from.Bottom(), to.Bottom())
	top := math.Max(from.Top(), to.Top())
	return Rect{
		Center: Vector2D{X: (left + right) / 2, Y: (bottom + top) / 2},
		Width:  right - left,
		Height: top - bottom,
	}
}

// Circle represents a circular collision shape
type Circle struct {
	Center Vector2D
	Radius float64
}

// IntersectsRect reports whether the circle touches the box.
func (c Circle) IntersectsRect(r Rect) bool {
	nx := Clamp(c.Center.X, r.Left(), r.Right())
	ny := Clamp(c.Center.Y, r.Bottom(), r.Top())
	dx := c.Center.X - nx
	dy := c.Center.Y - ny
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// QuadTree for spatial partitioning
type QuadTree[T any] struct {
	Boundary  Rect
	Capacity  int
	points    []Vector2D
	objects   []T
	divided   bool
	northWest *QuadTree[T]
	northEast *QuadTree[T]
	southWest *QuadTree[T]
	southEast *QuadTree[T]
}

// NewQuadTree creates a new quad tree with the given boundary and capacity
func NewQuadTree[T any](boundary Rect, capacity int) *QuadTree[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &QuadTree[T]{
		Boundary: boundary,
		Capacity: capacity,
		points:   make([]Vector2D, 0, capacity),
		objects:  make([]T, 0, capacity),
	}
}

// Insert stores object at point. Points outside the boundary are rejected.
func (qt *QuadTree[T]) Insert(point Vector2D, object T) bool {
	if !qt.Boundary.Contains(point) {
		return false
	}

	if len(qt.points) < qt.Capacity && !qt.divided {
		qt.points = append(qt.points, point)
		qt.objects = append(qt.objects, object)
		return true
	}

	if !qt.divided {
		qt.subdivide()
	}

	return qt.northWest.Insert(point, object) ||
		qt.northEast.Insert(point, object) ||
		qt.southWest.Insert(point, object) ||
		qt.southEast.Insert(point, object)
}

// subdivide splits the quadtree into four quadrants
func (qt *QuadTree[T]) subdivide() {
	x := qt.Boundary.Center.X
	y := qt.Boundary.Center.Y
	w := qt.Boundary.Width / 2
	h := qt.Boundary.Height / 2

	qt.northWest = NewQuadTree[T](Rect{Center: Vector2D{X: x - w/2, Y: y + h/2}, Width: w, Height: h}, qt.Capacity)
	qt.northEast = NewQuadTree[T](Rect{Center: Vector2D{X: x + w/2, Y: y + h/2}, Width: w, Height: h}, qt.Capacity)
	qt.southWest = NewQuadTree[T](Rect{Center: Vector2D{X: x - w/2, Y: y - h/2}, Width: w, Height: h}, qt.Capacity)
	qt.southEast = NewQuadTree[T](Rect{Center: Vector2D{X: x + w/2, Y: y - h/2}, Width: w, Height: h}, qt.Capacity)
	qt.divided = true
}

// Query returns every object whose point lies inside area.
func (qt *QuadTree[T]) Query(area Rect) []T {
	var found []T
	if !qt.Boundary.Intersects(area) {
		return found
	}

	for i, point := range qt.points {
		if area.Contains(point) {
			found = append(found, qt.objects[i])
		}
	}

	if !qt.divided {
		return found
	}

	found = append(found, qt.northWest.Query(area)...)
	found = append(found, qt.northEast.Query(area)...)
	found = append(found, qt.southWest.Query(area)...)
	found = append(found, qt.southEast.Query(area)...)
	return found
}

// Len returns the number of stored objects.
func (qt *QuadTree[T]) Len() int {
	n := len(qt.points)
	if qt.divided {
		n += qt.northWest.Len() + qt.northEast.Len() + qt.southWest.Len() + qt.southEast.Len()
	}
	return n
}
