// Package sdfx describes the solid envelope of a body with the
// github.com/deadsy/sdfx SDF library. Envelopes are composed the way
// solids are (primitives, booleans, transforms) and are then sampled along
// rays to build a polyhedral body and to bound it.
package sdfx

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// bisectSteps is enough halvings to take any practical step below 1e-15.
const bisectSteps = 64

// ErrBadStep is returned by RadialCrossings for a non-positive step.
var ErrBadStep = errors.New("sdfx: step must be positive")

// Envelope wraps an sdf.SDF3. Negative values are inside the solid.
type Envelope struct {
	s sdf.SDF3
}

// New wraps an existing SDF.
func New(s sdf.SDF3) *Envelope {
	return &Envelope{s: s}
}

func toV3(v r3.Vec) v3.Vec { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

func toR3(v v3.Vec) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Sphere returns a solid sphere centred on the origin.
func Sphere(radius float64) (*Envelope, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	return New(s), nil
}

// HollowSphere returns a spherical shell centred on the origin.
func HollowSphere(inner, outer float64) (*Envelope, error) {
	if !(inner > 0 && inner < outer) {
		return nil, fmt.Errorf("hollow sphere radii %g/%g: need 0 < inner < outer", inner, outer)
	}
	out, err := Sphere(outer)
	if err != nil {
		return nil, err
	}
	in, err := Sphere(inner)
	if err != nil {
		return nil, err
	}
	return out.Difference(in), nil
}

// Box returns a box of the given size centred on the origin.
func Box(size r3.Vec) (*Envelope, error) {
	s, err := sdf.Box3D(toV3(size), 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	return New(s), nil
}

// ---------------------------------------------------------------------------
// Booleans and transforms
// ---------------------------------------------------------------------------

// Difference returns e minus o.
func (e *Envelope) Difference(o *Envelope) *Envelope {
	return New(sdf.Difference3D(e.s, o.s))
}

// Union returns the union of e and o.
func (e *Envelope) Union(o *Envelope) *Envelope {
	return New(sdf.Union3D(e.s, o.s))
}

// Intersection returns the intersection of e and o.
func (e *Envelope) Intersection(o *Envelope) *Envelope {
	return New(sdf.Intersect3D(e.s, o.s))
}

// Translate moves the envelope by offset.
func (e *Envelope) Translate(offset r3.Vec) *Envelope {
	return New(sdf.Transform3D(e.s, sdf.Translate3d(toV3(offset))))
}

// Rotate rotates the envelope by Euler angles (degrees) about X, Y, Z.
func (e *Envelope) Rotate(x, y, z float64) *Envelope {
	m := sdf.RotateZ(z * math.Pi / 180).Mul(sdf.RotateY(y * math.Pi / 180)).Mul(sdf.RotateX(x * math.Pi / 180))
	return New(sdf.Transform3D(e.s, m))
}

// ---------------------------------------------------------------------------
// Sampling
// ---------------------------------------------------------------------------

// Evaluate returns the signed distance at p.
func (e *Envelope) Evaluate(p r3.Vec) float64 {
	return e.s.Evaluate(toV3(p))
}

// Inside reports whether p lies inside the solid or on its surface.
func (e *Envelope) Inside(p r3.Vec) bool {
	return e.Evaluate(p) <= 0
}

// BoundingBox returns the axis-aligned bounding box.
func (e *Envelope) BoundingBox() (min, max r3.Vec) {
	bb := e.s.BoundingBox()
	return toR3(bb.Min), toR3(bb.Max)
}

// Extent returns the length of the bounding-box diagonal.
func (e *Envelope) Extent() float64 {
	mn, mx := e.BoundingBox()
	return r3.Norm(r3.Sub(mx, mn))
}

// Reach returns the distance from origin to the farthest bounding-box
// corner, the longest ray from origin that can still meet the solid.
func (e *Envelope) Reach(origin r3.Vec) float64 {
	mn, mx := e.BoundingBox()
	far := 0.0
	for _, x := range []float64{mn.X, mx.X} {
		for _, y := range []float64{mn.Y, mx.Y} {
			for _, z := range []float64{mn.Z, mx.Z} {
				far = math.Max(far, r3.Norm(r3.Sub(r3.Vec{X: x, Y: y, Z: z}, origin)))
			}
		}
	}
	return far
}

// RadialCrossings walks the ray origin + t·dir for t in [0, maxDist] in
// increments of step and returns every t where the ray crosses the
// surface, refined by bisection. dir is normalized first.
func (e *Envelope) RadialCrossings(origin, dir r3.Vec, maxDist, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, ErrBadStep
	}
	if r3.Norm(dir) == 0 {
		return nil, fmt.Errorf("sdfx: zero ray direction")
	}
	dir = r3.Unit(dir)
	at := func(t float64) bool {
		return e.Inside(r3.Add(origin, r3.Scale(t, dir)))
	}

	var out []float64
	prevT, prevIn := 0.0, at(0)
	for t := step; prevT < maxDist; t += step {
		t = math.Min(t, maxDist)
		in := at(t)
		if in != prevIn {
			out = append(out, bisect(at, prevT, t, prevIn))
		}
		prevT, prevIn = t, in
	}
	return out, nil
}

// bisect narrows [lo, hi] around the change of at, where at(lo) == loIn.
func bisect(at func(float64) bool, lo, hi float64, loIn bool) float64 {
	for i := 0; i < bisectSteps && hi-lo > 0; i++ {
		mid := (lo + hi) / 2
		if mid <= lo || mid >= hi {
			break
		}
		if at(mid) == loIn {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
