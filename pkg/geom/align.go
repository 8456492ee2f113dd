package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultAlignTolerance is the default tolerance on 1 − |cos| used to decide
// whether a vertex sits on an axis through the frame center.
const DefaultAlignTolerance = 0.01

// Aligned reports whether the direction from center to p is parallel or
// anti-parallel to the unit axis a, within tol on 1 − |cos|. A point at the
// center has no direction and is never aligned.
func Aligned(p, center, a r3.Vec, tol float64) bool {
	d := r3.Sub(p, center)
	if IsZero(d) {
		return false
	}
	c := math.Abs(r3.Dot(Normalize(d), a))
	return 1-c <= tol
}

// SignedCoordinate returns the coordinate of p along the unit axis a,
// measured from center.
func SignedCoordinate(p, center, a r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, center), a)
}
