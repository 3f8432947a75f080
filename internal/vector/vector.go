// Package vector provides the 2D point arithmetic shared by node positions
// and the viewport.
package vector

import "math"

// Vector is an immutable 2D point or displacement.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zero is the origin.
var Zero = Vector{}

// New returns the vector (x, y).
func New(x, y float64) Vector {
	return Vector{X: x, Y: y}
}

// Plus returns v + o.
func (v Vector) Plus(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

// Minus returns v - o.
func (v Vector) Minus(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

// Times scales v by k.
func (v Vector) Times(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k}
}

// Length returns the euclidean norm of v.
func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// ApproxEqual reports whether v and o differ by at most eps on each axis.
func (v Vector) ApproxEqual(o Vector, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

// IsFinite reports whether neither component is NaN or infinite.
func (v Vector) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
