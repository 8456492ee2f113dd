package brep

import (
	"errors"
	"fmt"

	"github.com/chazu/turtleshell/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// convexTol is how far a cell vertex may sit in front of one of the
	// cell's own face planes.
	convexTol = 1e-7
	// boundsTol pads the envelope box for ray-marched surface vertices.
	boundsTol = 1e-6
)

// ValidateGeometry checks every cell of the body: each polygon has at
// least three vertices, non-zero area and a unit normal agreeing with its
// winding; each cell is convex; and, for envelope-built bodies, every
// vertex lies inside the envelope's bounding box. All problems found are
// joined under kernel.ErrInvalidGeometry.
func (k *Kernel) ValidateGeometry(h kernel.Body) error {
	b, err := k.lookup(h)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()

	var errs []error
	if len(b.cells) == 0 {
		errs = append(errs, errors.New("body has no cells"))
	}
	for ci, c := range b.cells {
		verts := c.vertices()
		for pi, p := range c.polys {
			if err := p.check(verts); err != nil {
				errs = append(errs, fmt.Errorf("cell %d polygon %d: %w", ci, pi, err))
			}
		}
		if b.bounds != nil {
			for _, v := range verts {
				if !inBox(v, b.bounds[0], b.bounds[1], boundsTol) {
					errs = append(errs, fmt.Errorf("cell %d: vertex %v outside envelope", ci, v))
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", kernel.ErrInvalidGeometry, errors.Join(errs...))
	}
	return nil
}

func (p polygon) check(cellVerts []r3.Vec) error {
	if len(p.verts) < 3 {
		return fmt.Errorf("%d vertices", len(p.verts))
	}
	n := newell(p.verts)
	if r3.Norm(n) < minAreaNorm {
		return errors.New("zero area")
	}
	if !unitLength(p.normal, 1e-9) {
		return fmt.Errorf("normal %v is not unit length", p.normal)
	}
	if r3.Dot(r3.Unit(n), p.normal) < 0.99 {
		return fmt.Errorf("winding disagrees with normal %v", p.normal)
	}
	for _, v := range cellVerts {
		if d := r3.Dot(r3.Sub(v, p.verts[0]), p.normal); d > convexTol {
			return fmt.Errorf("vertex %v lies %g in front of the face: cell is not convex", v, d)
		}
	}
	return nil
}

func inBox(v, mn, mx r3.Vec, tol float64) bool {
	return v.X >= mn.X-tol && v.X <= mx.X+tol &&
		v.Y >= mn.Y-tol && v.Y <= mx.Y+tol &&
		v.Z >= mn.Z-tol && v.Z <= mx.Z+tol
}
