package geom

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis names one of the three local frame axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// AllAxes is the default carve order.
var AllAxes = []Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Reference returns the principal axis whose direction a face normal is
// compared against during a carve pass along a. The pairing is cyclic and
// follows the octant construction: x pairs with z, y with x, z with y.
func (a Axis) Reference() Axis {
	switch a {
	case AxisX:
		return AxisZ
	case AxisY:
		return AxisX
	default:
		return AxisY
	}
}

// ParseAxis converts "x", "y" or "z" (any case) to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("geom: invalid axis %q, expected x, y, or z", s)
}

// MarshalText encodes the axis as its name.
func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an axis name.
func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Frame is the local coordinate frame the turtle shell is laid out in.
// X and Z are the normalized user axes and Y = normalize(Z × X). The axes
// need not be exactly orthogonal; callers are expected to supply a
// near-orthogonal pair.
type Frame struct {
	Center r3.Vec
	X      r3.Vec
	Y      r3.Vec
	Z      r3.Vec
}

// NewFrame builds a Frame from a center and the user-supplied x and z
// directions.
func NewFrame(center, x, z r3.Vec) (Frame, error) {
	if IsZero(x) {
		return Frame{}, fmt.Errorf("x axis: %w", ErrZeroVector)
	}
	if IsZero(z) {
		return Frame{}, fmt.Errorf("z axis: %w", ErrZeroVector)
	}
	xu := Normalize(x)
	zu := Normalize(z)
	y := r3.Cross(zu, xu)
	if IsZero(y) {
		return Frame{}, ErrParallelAxes
	}
	return Frame{
		Center: center,
		X:      xu,
		Y:      Normalize(y),
		Z:      zu,
	}, nil
}

// Axis returns the unit vector of the named axis.
func (f Frame) Axis(a Axis) r3.Vec {
	switch a {
	case AxisX:
		return f.X
	case AxisY:
		return f.Y
	default:
		return f.Z
	}
}

// Local expresses frame coordinates (x, y, z) as a world-space offset.
func (f Frame) Local(x, y, z float64) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(x, f.X), r3.Scale(y, f.Y)), r3.Scale(z, f.Z))
}

// PolarVector converts a spherical coordinate to a world-space direction.
// The polar angle is measured from Y and the azimuth from X, both in
// radians:
//
//	x = r·sin(polar)·cos(azimuthal)
//	y = r·cos(polar)
//	z = −r·sin(polar)·sin(azimuthal)
func (f Frame) PolarVector(radius, polar, azimuthal float64) r3.Vec {
	sp, cp := math.Sincos(polar)
	sa, ca := math.Sincos(azimuthal)
	return f.Local(radius*sp*ca, radius*cp, -radius*sp*sa)
}
