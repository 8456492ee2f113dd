package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the absolute tolerance used for unit-length and
// zero-length checks.
const Tolerance = 1e-9

var (
	// ErrZeroVector is returned when a direction of zero length is supplied
	// where an axis is required.
	ErrZeroVector = errors.New("geom: zero-length vector")
	// ErrParallelAxes is returned when the x and z axes of a frame do not
	// span a plane.
	ErrParallelAxes = errors.New("geom: x and z axes are parallel")
	// ErrLengthMismatch is returned when paired slices differ in length.
	ErrLengthMismatch = errors.New("geom: radii and angles differ in length")
)

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func Normalize(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}

// IsZero reports whether v is shorter than Tolerance.
func IsZero(v r3.Vec) bool {
	return r3.Norm(v) < Tolerance
}

// EqualWithin reports whether a and b agree component-wise within tol.
func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// Rotate rotates v by angle radians about axis (right-handed).
func Rotate(v, axis r3.Vec, angle float64) r3.Vec {
	return r3.NewRotation(angle, axis).Rotate(v)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(degrees float64) float64 {
	return (math.Pi / 180) * degrees
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(radians float64) float64 {
	return (180 / math.Pi) * radians
}
