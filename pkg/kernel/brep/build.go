package brep

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/kernel/sdfx"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxSubdivisions bounds sphere tessellation; each level quadruples the
// cell count.
const MaxSubdivisions = 4

// ErrBadShape is returned by the builders for invalid dimensions.
var ErrBadShape = errors.New("brep: invalid shape parameters")

// NewBox returns a body with one axis-aligned box cell.
func (k *Kernel) NewBox(center, size r3.Vec) (kernel.Body, error) {
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return nil, fmt.Errorf("box size %v: %w", size, ErrBadShape)
	}
	h := r3.Scale(0.5, size)
	corner := func(sx, sy, sz float64) r3.Vec {
		return r3.Add(center, r3.Vec{X: sx * h.X, Y: sy * h.Y, Z: sz * h.Z})
	}
	quads := [][4]r3.Vec{
		{corner(-1, -1, -1), corner(-1, 1, -1), corner(-1, 1, 1), corner(-1, -1, 1)},
		{corner(1, -1, -1), corner(1, 1, -1), corner(1, 1, 1), corner(1, -1, 1)},
		{corner(-1, -1, -1), corner(1, -1, -1), corner(1, -1, 1), corner(-1, -1, 1)},
		{corner(-1, 1, -1), corner(1, 1, -1), corner(1, 1, 1), corner(-1, 1, 1)},
		{corner(-1, -1, -1), corner(1, -1, -1), corner(1, 1, -1), corner(-1, 1, -1)},
		{corner(-1, -1, 1), corner(1, -1, 1), corner(1, 1, 1), corner(-1, 1, 1)},
	}
	c := &cell{}
	for _, q := range quads {
		p, err := orientedPolygon(q[:], center)
		if err != nil {
			return nil, err
		}
		c.polys = append(c.polys, p)
	}
	return k.add([]*cell{c}, nil), nil
}

// NewHollowSphere returns a spherical shell approximated by one convex
// frustum cell per triangle of a subdivided octahedron. The octahedron
// vertices sit exactly on the principal axes.
func (k *Kernel) NewHollowSphere(center r3.Vec, inner, outer float64, subdivisions int) (kernel.Body, error) {
	if !(inner > 0 && inner < outer) {
		return nil, fmt.Errorf("hollow sphere radii %g/%g: %w", inner, outer, ErrBadShape)
	}
	radii := func(r3.Vec) (float64, float64, error) { return inner, outer, nil }
	cells, err := shell(center, subdivisions, radii)
	if err != nil {
		return nil, err
	}
	return k.add(cells, nil), nil
}

// FromEnvelope builds a shell body by marching rays from center through the
// envelope along the subdivided octahedron directions. Every ray must cross
// the surface exactly twice. Vertices of the result are kept inside the
// envelope's bounding box by ValidateGeometry.
func (k *Kernel) FromEnvelope(env *sdfx.Envelope, center r3.Vec, subdivisions int) (kernel.Body, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope: %w", ErrBadShape)
	}
	reach := env.Reach(center)
	step := reach / 4096
	radii := func(dir r3.Vec) (float64, float64, error) {
		ts, err := env.RadialCrossings(center, dir, reach, step)
		if err != nil {
			return 0, 0, err
		}
		if len(ts) != 2 {
			return 0, 0, fmt.Errorf("ray %v crosses the envelope %d times, want 2: %w", dir, len(ts), ErrBadShape)
		}
		return ts[0], ts[1], nil
	}
	cells, err := shell(center, subdivisions, radii)
	if err != nil {
		return nil, err
	}
	mn, mx := env.BoundingBox()
	return k.add(cells, &[2]r3.Vec{mn, mx}), nil
}

// radiusFunc returns the inner and outer surface distance along a unit
// direction.
type radiusFunc func(dir r3.Vec) (inner, outer float64, err error)

func shell(center r3.Vec, subdivisions int, radii radiusFunc) ([]*cell, error) {
	if subdivisions < 0 || subdivisions > MaxSubdivisions {
		return nil, fmt.Errorf("subdivisions %d outside [0, %d]: %w", subdivisions, MaxSubdivisions, ErrBadShape)
	}
	type span struct{ in, out float64 }
	cache := map[vkey]span{}
	lookup := func(d r3.Vec) (span, error) {
		k := keyOf(d)
		if s, ok := cache[k]; ok {
			return s, nil
		}
		in, out, err := radii(d)
		if err != nil {
			return span{}, err
		}
		s := span{in, out}
		cache[k] = s
		return s, nil
	}

	tris := octahedron()
	for i := 0; i < subdivisions; i++ {
		tris = subdivide(tris)
	}
	cells := make([]*cell, 0, len(tris))
	for _, tri := range tris {
		var in, out [3]r3.Vec
		for i, d := range tri {
			s, err := lookup(d)
			if err != nil {
				return nil, err
			}
			in[i] = r3.Add(center, r3.Scale(s.in, d))
			out[i] = r3.Add(center, r3.Scale(s.out, d))
		}
		c, err := frustum(in, out)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// frustum builds the convex cell between an inner and an outer triangle.
func frustum(in, out [3]r3.Vec) (*cell, error) {
	var mid r3.Vec
	for i := range in {
		mid = r3.Add(mid, r3.Add(in[i], out[i]))
	}
	mid = r3.Scale(1.0/6, mid)

	loops := [][]r3.Vec{
		{out[0], out[1], out[2]},
		{in[0], in[2], in[1]},
	}
	for i := range in {
		j := (i + 1) % 3
		loops = append(loops, []r3.Vec{in[i], in[j], out[j], out[i]})
	}
	c := &cell{}
	for _, l := range loops {
		p, err := orientedPolygon(l, mid)
		if err != nil {
			return nil, err
		}
		c.polys = append(c.polys, p)
	}
	return c, nil
}

// orientedPolygon builds a polygon facing away from the interior point.
func orientedPolygon(verts []r3.Vec, interior r3.Vec) (polygon, error) {
	var centroid r3.Vec
	for _, v := range verts {
		centroid = r3.Add(centroid, v)
	}
	centroid = r3.Scale(1/float64(len(verts)), centroid)
	p, ok := newPolygon(verts, r3.Sub(centroid, interior))
	if !ok {
		return polygon{}, fmt.Errorf("degenerate polygon %v: %w", verts, ErrBadShape)
	}
	return p, nil
}

// octahedron returns the eight unit triangles, wound outward.
func octahedron() [][3]r3.Vec {
	var tris [][3]r3.Vec
	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			for _, sz := range []float64{1, -1} {
				a, b, c := r3.Vec{X: sx}, r3.Vec{Y: sy}, r3.Vec{Z: sz}
				if r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)), r3.Add(a, r3.Add(b, c))) < 0 {
					b, c = c, b
				}
				tris = append(tris, [3]r3.Vec{a, b, c})
			}
		}
	}
	return tris
}

// subdivide splits each triangle into four, pushing the new vertices onto
// the unit sphere.
func subdivide(tris [][3]r3.Vec) [][3]r3.Vec {
	out := make([][3]r3.Vec, 0, 4*len(tris))
	mid := func(a, b r3.Vec) r3.Vec { return r3.Unit(r3.Add(a, b)) }
	for _, t := range tris {
		a, b, c := t[0], t[1], t[2]
		ab, bc, ca := mid(a, b), mid(b, c), mid(c, a)
		out = append(out,
			[3]r3.Vec{a, ab, ca},
			[3]r3.Vec{ab, b, bc},
			[3]r3.Vec{ca, bc, c},
			[3]r3.Vec{ab, bc, ca},
		)
	}
	return out
}

// unitLength reports whether v has length one within tol.
func unitLength(v r3.Vec, tol float64) bool {
	return math.Abs(r3.Norm(v)-1) <= tol
}
