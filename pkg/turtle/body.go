package turtle

import (
	"errors"
	"fmt"

	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/kernel/brep"
	"github.com/chazu/turtleshell/pkg/kernel/sdfx"
	"gonum.org/v1/gonum/spatial/r3"
)

// Body shapes understood by BodySpec.
const (
	ShapeHollowSphere = "hollow-sphere"
	ShapeBox          = "box"
)

// ErrUnknownShape is reported for a BodySpec naming no known shape.
var ErrUnknownShape = errors.New("unknown body shape")

// BodySpec describes the fixture body a job is run against.
type BodySpec struct {
	// Shape is ShapeHollowSphere (default) or ShapeBox.
	Shape  string
	Center r3.Vec

	// Hollow sphere.
	Inner        float64
	Outer        float64
	Subdivisions int
	// Sampled builds the sphere by ray-marching an sdfx envelope instead
	// of placing the radii analytically.
	Sampled bool
	// Clip intersects the shell with the union of these origin-centred
	// box sizes. Each box must contain the inner sphere.
	Clip []r3.Vec
	// Rotation turns the clipped shell by Euler angles in degrees about
	// x, y and z before it is moved to Center.
	Rotation r3.Vec

	// Box.
	Size r3.Vec
}

// DefaultBody is the unit shell the CLI falls back to.
func DefaultBody() BodySpec {
	return BodySpec{Shape: ShapeHollowSphere, Inner: 1, Outer: 2}
}

// sampled reports whether Build ray-marches an envelope. Clipping and
// rotation imply it.
func (s BodySpec) sampled() bool {
	return s.Sampled || len(s.Clip) > 0 || s.Rotation != (r3.Vec{})
}

func (s BodySpec) shape() string {
	if s.Shape == "" {
		return ShapeHollowSphere
	}
	return s.Shape
}

// Validate checks the dimensions for the selected shape.
func (s BodySpec) Validate() error {
	var errs []error
	add := func(field string, err error) {
		errs = append(errs, &FieldError{Field: "body." + field, Err: err})
	}
	if !finite(s.Center) {
		add("center", fmt.Errorf("%v: %w", s.Center, ErrOutOfRange))
	}
	switch s.shape() {
	case ShapeHollowSphere:
		if !(s.Inner > 0) {
			add("inner", fmt.Errorf("%g, want > 0: %w", s.Inner, ErrOutOfRange))
		}
		if !(s.Outer > s.Inner) {
			add("outer", fmt.Errorf("%g, want > inner: %w", s.Outer, ErrOutOfRange))
		}
		if s.Subdivisions < 0 || s.Subdivisions > brep.MaxSubdivisions {
			add("subdivisions", fmt.Errorf("%d, want [0, %d]: %w", s.Subdivisions, brep.MaxSubdivisions, ErrOutOfRange))
		}
		for i, c := range s.Clip {
			if !(min(c.X, c.Y, c.Z) > 2*s.Inner) {
				add(fmt.Sprintf("clip[%d]", i), fmt.Errorf("%v, want every side > %g: %w", c, 2*s.Inner, ErrOutOfRange))
			}
		}
		if !finite(s.Rotation) {
			add("rotation", fmt.Errorf("%v: %w", s.Rotation, ErrOutOfRange))
		}
	case ShapeBox:
		if !(s.Size.X > 0 && s.Size.Y > 0 && s.Size.Z > 0) {
			add("size", fmt.Errorf("%v, want positive: %w", s.Size, ErrOutOfRange))
		}
		if s.sampled() {
			add("sampled", fmt.Errorf("box bodies are built directly: %w", ErrOutOfRange))
		}
	default:
		add("shape", fmt.Errorf("%q: %w", s.Shape, ErrUnknownShape))
	}
	return errors.Join(errs...)
}

// Build creates the body on k.
func (s BodySpec) Build(k *brep.Kernel) (kernel.Body, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.shape() == ShapeBox {
		return k.NewBox(s.Center, s.Size)
	}
	if !s.sampled() {
		return k.NewHollowSphere(s.Center, s.Inner, s.Outer, s.Subdivisions)
	}
	env, err := s.Envelope()
	if err != nil {
		return nil, err
	}
	return k.FromEnvelope(env, s.Center, s.Subdivisions)
}

// Envelope composes the sampled shell: the hollow sphere, intersected
// with the union of the clip boxes, rotated, then moved to Center.
func (s BodySpec) Envelope() (*sdfx.Envelope, error) {
	env, err := sdfx.HollowSphere(s.Inner, s.Outer)
	if err != nil {
		return nil, err
	}
	var bound *sdfx.Envelope
	for _, size := range s.Clip {
		box, err := sdfx.Box(size)
		if err != nil {
			return nil, err
		}
		if bound == nil {
			bound = box
			continue
		}
		bound = bound.Union(box)
	}
	if bound != nil {
		env = env.Intersection(bound)
	}
	if s.Rotation != (r3.Vec{}) {
		env = env.Rotate(s.Rotation.X, s.Rotation.Y, s.Rotation.Z)
	}
	return env.Translate(s.Center), nil
}

func (s BodySpec) String() string {
	if s.shape() == ShapeBox {
		return fmt.Sprintf("box %gx%gx%g", s.Size.X, s.Size.Y, s.Size.Z)
	}
	str := fmt.Sprintf("hollow sphere %g/%g", s.Inner, s.Outer)
	if len(s.Clip) > 0 {
		str += fmt.Sprintf(" clipped by %d box(es)", len(s.Clip))
	}
	return str
}
