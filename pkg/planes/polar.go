package planes

import (
	"fmt"
	"math"

	"github.com/chazu/turtleshell/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Polar generates planes from a polar angle (measured from the frame's Y
// axis) and an azimuthal angle (measured from X), both in degrees.
type Polar struct {
	PolarDeg     float64
	AzimuthalDeg float64
}

var _ Strategy = Polar{}

func (p Polar) String() string {
	return fmt.Sprintf("polar(%g°, %g°)", p.PolarDeg, p.AzimuthalDeg)
}

// CarveAngle returns the polar angle.
func (p Polar) CarveAngle() float64 { return p.PolarDeg }

// Generate returns three principal cuts (the xz plane and two equatorial
// azimuthal planes) followed by four diagonal cuts bounding the square
// panel around the Y pole.
func (p Polar) Generate(f geom.Frame) (Set, error) {
	if err := CheckAngle("polar angle", p.PolarDeg); err != nil {
		return Set{}, err
	}
	if err := CheckAngle("azimuthal angle", p.AzimuthalDeg); err != nil {
		return Set{}, err
	}
	polar := geom.Deg2Rad(p.PolarDeg)
	az := geom.Deg2Rad(p.AzimuthalDeg)

	principal := []r3.Vec{
		r3.Cross(f.X, f.Z),
		f.PolarVector(1, math.Pi/2, math.Pi-az),
		f.PolarVector(1, math.Pi/2, -(math.Pi - az)),
	}

	corners := [4]r3.Vec{
		f.PolarVector(1, polar, az),
		f.PolarVector(1, polar, -az),
		f.PolarVector(1, polar, math.Pi+az),
		f.PolarVector(1, polar, math.Pi-az),
	}
	diagonal := make([]r3.Vec, 0, len(corners))
	for i := range corners {
		diagonal = append(diagonal, r3.Cross(corners[i], corners[(i+1)%len(corners)]))
	}
	return assemble(f, principal, diagonal)
}

// assemble normalizes the raw normals into a Set anchored at the frame
// center.
func assemble(f geom.Frame, principal, diagonal []r3.Vec) (Set, error) {
	var s Set
	for i, v := range principal {
		n, err := unitNormal(v, fmt.Sprintf("principal normal %d", i))
		if err != nil {
			return Set{}, err
		}
		s.Principal = append(s.Principal, Cut{Point: f.Center, Normal: n})
	}
	for i, v := range diagonal {
		n, err := unitNormal(v, fmt.Sprintf("diagonal normal %d", i))
		if err != nil {
			return Set{}, err
		}
		s.Diagonal = append(s.Diagonal, Cut{Point: f.Center, Normal: n, Up: upMapping[i%len(upMapping)]})
	}
	return s, nil
}
