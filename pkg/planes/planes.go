// Package planes generates the ordered cutting-plane normals that slice a
// hollow body into octants and then into turtle-shell panels.
//
// Two interchangeable strategies produce the same design intent: Polar
// (polar + azimuthal angle) and Legacy (one symmetric plane angle). A job
// uses exactly one of them.
package planes

import (
	"errors"
	"fmt"

	"github.com/chazu/turtleshell/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrAngleRange is returned for angles outside the open interval (0, 90)
// degrees. At 0 or 90 the carve comparison against cos(angle) degenerates.
var ErrAngleRange = errors.New("planes: angle must be in (0, 90) degrees")

// ErrDegenerateNormal is returned when a plane normal collapses to zero.
var ErrDegenerateNormal = errors.New("planes: degenerate plane normal")

// upMapping is the reference edge paired with each diagonal cut, in order.
// Kernels that cut with a 2D sketch orient the sketch with it.
var upMapping = [...]geom.Axis{geom.AxisY, geom.AxisY, geom.AxisZ, geom.AxisZ, geom.AxisX, geom.AxisX}

// Cut is one transient cutting plane anchored at the frame center.
type Cut struct {
	Point  r3.Vec
	Normal r3.Vec
	// Up is the reference axis for sketch-based cuts. Only meaningful for
	// diagonal cuts.
	Up geom.Axis
}

// Set is the ordered output of a Strategy. Principal cuts must be applied
// before diagonal cuts.
type Set struct {
	Principal []Cut
	Diagonal  []Cut
}

// Normals returns every normal, principal cuts first.
func (s Set) Normals() []r3.Vec {
	out := make([]r3.Vec, 0, s.Len())
	for _, c := range s.Principal {
		out = append(out, c.Normal)
	}
	for _, c := range s.Diagonal {
		out = append(out, c.Normal)
	}
	return out
}

// Len returns the total number of cuts.
func (s Set) Len() int {
	return len(s.Principal) + len(s.Diagonal)
}

// Strategy computes a Set for a frame. Implementations are pure: the same
// frame always yields a bit-identical Set.
type Strategy interface {
	Generate(f geom.Frame) (Set, error)
	// CarveAngle is the default angle, in degrees, faces are matched
	// against during carving.
	CarveAngle() float64
	String() string
}

// CheckAngle validates that deg lies strictly between 0 and 90.
func CheckAngle(name string, deg float64) error {
	if !(deg > 0 && deg < 90) {
		return fmt.Errorf("%s = %g: %w", name, deg, ErrAngleRange)
	}
	return nil
}

func unitNormal(v r3.Vec, what string) (r3.Vec, error) {
	if geom.IsZero(v) {
		return r3.Vec{}, fmt.Errorf("%s: %w", what, ErrDegenerateNormal)
	}
	return geom.Normalize(v), nil
}
