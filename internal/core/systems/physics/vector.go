// Package physics holds the small amount of vector math the simulation needs.
// Values are plain structs passed by value; nothing here allocates.
package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the magnitude at or below which a vector is treated as zero
// length by Normalize.
const Epsilon = 1e-9

// Vector3 is an immutable-by-convention 3D vector.
type Vector3 struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
	Z float64 `json:"z" yaml:"z" mapstructure:"z"`
}

// Zero is the zero vector.
var Zero = Vector3{}

// Vec3 is shorthand for Vector3{x, y, z}.
func Vec3(x, y, z float64) Vector3 { return Vector3{X: x, Y: y, Z: z} }

func fromR3(v r3.Vec) Vector3 { return Vector3{X: v.X, Y: v.Y, Z: v.Z} }

func (v Vector3) r3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 { return fromR3(r3.Add(v.r3(), o.r3())) }

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 { return fromR3(r3.Sub(v.r3(), o.r3())) }

// Scale returns v * k.
func (v Vector3) Scale(k float64) Vector3 { return fromR3(r3.Scale(k, v.r3())) }

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 { return r3.Dot(v.r3(), o.r3()) }

// Magnitude returns the Euclidean norm of v.
func (v Vector3) Magnitude() float64 { return r3.Norm(v.r3()) }

// Normalize returns the unit vector in the direction of v. A vector whose
// magnitude is at or below Epsilon normalizes to Zero instead of NaN.
func (v Vector3) Normalize() Vector3 {
	mag := v.Magnitude()
	if mag <= Epsilon {
		return Zero
	}
	return v.Scale(1 / mag)
}

// Limit returns v clamped to at most max in magnitude.
func (v Vector3) Limit(max float64) Vector3 {
	if v.Magnitude() > max {
		return v.Normalize().Scale(max)
	}
	return v
}

// Distance returns |v - o|.
func (v Vector3) Distance(o Vector3) float64 { return v.Sub(o).Magnitude() }

// IsZero reports whether every component is exactly zero.
func (v Vector3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// ApproxEqual compares componentwise within tol.
func (v Vector3) ApproxEqual(o Vector3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
