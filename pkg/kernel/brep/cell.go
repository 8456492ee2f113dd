package brep

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/turtleshell/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// planeEps is the distance within which a vertex counts as lying on a
	// cutting plane.
	planeEps = 1e-9
	// keyQuantum is the grid vertices are snapped to when identifying
	// coincident vertices across cells.
	keyQuantum = 1e-9
	// minAreaNorm is the smallest Newell normal length (twice the area)
	// a polygon may have.
	minAreaNorm = 1e-12
)

// vkey identifies a vertex position on the keyQuantum grid.
type vkey [3]int64

func keyOf(v r3.Vec) vkey {
	return vkey{
		int64(math.Round(v.X / keyQuantum)),
		int64(math.Round(v.Y / keyQuantum)),
		int64(math.Round(v.Z / keyQuantum)),
	}
}

func (k vkey) less(o vkey) bool {
	for i := range k {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return false
}

// polygon is one planar convex face of a cell. Vertices wind
// counter-clockwise seen from outside, so the Newell normal agrees with
// normal.
type polygon struct {
	verts   []r3.Vec
	normal  r3.Vec
	removed bool
}

// newell returns the Newell normal of a vertex loop; its length is twice
// the polygon area.
func newell(verts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i, a := range verts {
		b := verts[(i+1)%len(verts)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n
}

// newPolygon orients verts so the polygon faces along outward.
func newPolygon(verts []r3.Vec, outward r3.Vec) (polygon, bool) {
	if len(verts) < 3 {
		return polygon{}, false
	}
	n := newell(verts)
	if r3.Norm(n) < minAreaNorm {
		return polygon{}, false
	}
	if r3.Dot(n, outward) < 0 {
		reversed := make([]r3.Vec, len(verts))
		for i, v := range verts {
			reversed[len(verts)-1-i] = v
		}
		verts = reversed
		n = r3.Scale(-1, n)
	}
	return polygon{verts: verts, normal: r3.Unit(n)}, true
}

// key identifies the polygon independent of winding and starting vertex.
// Coincident polygons of neighbouring cells share a key.
func (p polygon) key() string {
	keys := make([]vkey, len(p.verts))
	for i, v := range p.verts {
		keys[i] = keyOf(v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	var sb strings.Builder
	for _, k := range keys {
		for _, c := range k {
			sb.WriteString(strconv.FormatInt(c, 36))
			sb.WriteByte(',')
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// cell is a convex polyhedron bounded by its polygons.
type cell struct {
	polys []polygon
}

func (c *cell) vertices() []r3.Vec {
	var out []r3.Vec
	seen := map[vkey]bool{}
	for _, p := range c.polys {
		for _, v := range p.verts {
			k := keyOf(v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// side classifies a signed distance as +1, 0 or -1.
func side(d float64) int {
	switch {
	case d > planeEps:
		return 1
	case d < -planeEps:
		return -1
	default:
		return 0
	}
}

// crossing returns the point where edge a-b meets the plane. Endpoints are
// put in a canonical order first so neighbouring cells sharing the edge
// compute bit-identical points.
func crossing(pl kernel.Plane, a, b r3.Vec) r3.Vec {
	if keyOf(b).less(keyOf(a)) {
		a, b = b, a
	}
	da, db := pl.Side(a), pl.Side(b)
	t := da / (da - db)
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// clip splits a polygon by the plane. Either piece may be empty. on
// collects points of the polygon lying on the plane.
func clip(pl kernel.Plane, p polygon, on *[]r3.Vec) (front, back []r3.Vec) {
	n := len(p.verts)
	for i, a := range p.verts {
		b := p.verts[(i+1)%n]
		sa, sb := side(pl.Side(a)), side(pl.Side(b))
		if sa >= 0 {
			front = append(front, a)
		}
		if sa <= 0 {
			back = append(back, a)
		}
		if sa == 0 {
			*on = append(*on, a)
		}
		if sa*sb < 0 {
			x := crossing(pl, a, b)
			front = append(front, x)
			back = append(back, x)
			*on = append(*on, x)
		}
	}
	return front, back
}

// piece keeps a clipped loop when it still bounds area, inheriting the
// parent's normal and removal flag.
func piece(verts []r3.Vec, parent polygon) (polygon, bool) {
	if len(verts) < 3 || r3.Norm(newell(verts)) < minAreaNorm {
		return polygon{}, false
	}
	return polygon{verts: verts, normal: parent.normal, removed: parent.removed}, true
}

// split cuts the cell by the plane. ok is false when the plane does not
// pass through the cell interior.
func (c *cell) split(pl kernel.Plane) (front, back *cell, ok bool) {
	pos, neg := false, false
	for _, v := range c.vertices() {
		switch side(pl.Side(v)) {
		case 1:
			pos = true
		case -1:
			neg = true
		}
	}
	if !pos || !neg {
		return nil, nil, false
	}

	var on []r3.Vec
	front, back = &cell{}, &cell{}
	for _, p := range c.polys {
		f, b := clip(pl, p, &on)
		if fp, ok := piece(f, p); ok {
			front.polys = append(front.polys, fp)
		}
		if bp, ok := piece(b, p); ok {
			back.polys = append(back.polys, bp)
		}
	}

	ring := capRing(pl.Normal, on)
	if len(ring) < 3 {
		return nil, nil, false
	}
	backCap := polygon{verts: ring, normal: pl.Normal}
	frontRing := make([]r3.Vec, len(ring))
	for i, v := range ring {
		frontRing[len(ring)-1-i] = v
	}
	frontCap := polygon{verts: frontRing, normal: r3.Scale(-1, pl.Normal)}
	front.polys = append(front.polys, frontCap)
	back.polys = append(back.polys, backCap)
	return front, back, true
}

// capRing dedupes the on-plane points and orders them counter-clockwise
// about n.
func capRing(n r3.Vec, pts []r3.Vec) []r3.Vec {
	seen := map[vkey]bool{}
	var ring []r3.Vec
	for _, p := range pts {
		k := keyOf(p)
		if !seen[k] {
			seen[k] = true
			ring = append(ring, p)
		}
	}
	if len(ring) < 3 {
		return nil
	}
	var c r3.Vec
	for _, p := range ring {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(len(ring)), c)

	u := r3.Sub(ring[0], c)
	u = r3.Sub(u, r3.Scale(r3.Dot(u, n), n))
	if r3.Norm(u) == 0 {
		return nil
	}
	u = r3.Unit(u)
	w := r3.Cross(n, u)
	angle := func(p r3.Vec) float64 {
		d := r3.Sub(p, c)
		return math.Atan2(r3.Dot(d, w), r3.Dot(d, u))
	}
	sort.SliceStable(ring, func(i, j int) bool { return angle(ring[i]) < angle(ring[j]) })
	if r3.Norm(newell(ring)) < minAreaNorm {
		return nil
	}
	return ring
}
