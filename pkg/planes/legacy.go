package planes

import (
	"fmt"
	"math"

	"github.com/chazu/turtleshell/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Legacy generates planes from a single angle applied equally about all
// three principal planes.
type Legacy struct {
	PlaneDeg float64
}

var _ Strategy = Legacy{}

func (l Legacy) String() string {
	return fmt.Sprintf("legacy(%g°)", l.PlaneDeg)
}

// CarveAngle returns the plane angle.
func (l Legacy) CarveAngle() float64 { return l.PlaneDeg }

// Generate returns the three principal planes (normal to the main axis,
// through center/xpoint/zpoint, and that plane turned 90° about the main
// axis) followed by each principal plane rotated ±PlaneDeg about one of its
// in-plane axes.
func (l Legacy) Generate(f geom.Frame) (Set, error) {
	if err := CheckAngle("plane angle", l.PlaneDeg); err != nil {
		return Set{}, err
	}
	theta := geom.Deg2Rad(l.PlaneDeg)

	main := f.X
	plane2 := geom.Normalize(r3.Cross(f.X, f.Z))
	plane3 := geom.Rotate(plane2, main, math.Pi/2)
	principal := []r3.Vec{main, plane2, plane3}

	// Each principal plane turns about the in-plane axis whose carve pass
	// measures against that plane's normal: the main-axis plane about Y,
	// plane2 about Z, plane3 about X.
	pivots := []r3.Vec{f.Y, f.Z, f.X}
	diagonal := make([]r3.Vec, 0, 2*len(principal))
	for i, n := range principal {
		diagonal = append(diagonal,
			geom.Rotate(n, pivots[i], theta),
			geom.Rotate(n, pivots[i], -theta),
		)
	}
	return assemble(f, principal, diagonal)
}
