// Package brep implements kernel.Kernel with an in-memory polyhedral
// boundary representation. A body is a list of convex cells; partitioning
// splits every cell a plane passes through, and coincident polygons of
// neighbouring cells form a single B-rep face.
package brep

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel            = (*Kernel)(nil)
	_ kernel.SketchPartitioner = (*Kernel)(nil)
	_ kernel.Body              = handle{}
)

var (
	// ErrNoSuchEntity is returned for snapshot indices outside the body.
	ErrNoSuchEntity = errors.New("brep: no such entity")
	// ErrSketchTooShort is returned when a sketch segment does not span
	// the body.
	ErrSketchTooShort = errors.New("brep: sketch segment does not span body")
)

// handle is the kernel.Body given out to callers.
type handle struct{ id string }

func (h handle) ID() string { return h.id }

// body is the kernel-side state behind a handle.
type body struct {
	mu         sync.Mutex
	cells      []*cell
	generation uint64
	retained   *leftovers
	topo       *topology
	// bounds, when set, is the box every vertex must stay inside.
	bounds *[2]r3.Vec
	// removed counts RemoveFace calls that hit a face. Later cuts may
	// split a removed polygon, so the polygons themselves over-count.
	removed int
}

func (b *body) topology() *topology {
	if b.topo == nil {
		b.topo = buildTopology(b.cells, b.retained)
	}
	return b.topo
}

// mutated invalidates every handle and cached view.
func (b *body) mutated() {
	b.generation++
	b.topo = nil
}

// Kernel owns a set of bodies. The zero value is not usable; call New.
type Kernel struct {
	mu     sync.Mutex
	bodies map[string]*body
}

// New returns an empty Kernel.
func New() *Kernel {
	return &Kernel{bodies: map[string]*body{}}
}

func (k *Kernel) add(cells []*cell, bounds *[2]r3.Vec) kernel.Body {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := uuid.NewString()
	k.bodies[id] = &body{cells: cells, retained: newLeftovers(), bounds: bounds}
	return handle{id: id}
}

// lookup returns the locked body behind h. Callers must unlock it.
func (k *Kernel) lookup(h kernel.Body) (*body, error) {
	if h == nil {
		return nil, kernel.ErrUnknownBody
	}
	k.mu.Lock()
	b, ok := k.bodies[h.ID()]
	k.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("body %q: %w", h.ID(), kernel.ErrUnknownBody)
	}
	b.mu.Lock()
	return b, nil
}

// Discard drops a body. Its handle becomes unknown.
func (k *Kernel) Discard(h kernel.Body) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.bodies, h.ID())
}

// ---------------------------------------------------------------------------
// Datums
// ---------------------------------------------------------------------------

// CreateAxis returns the axis from point towards through.
func (k *Kernel) CreateAxis(point, through r3.Vec) (kernel.Axis, error) {
	d := r3.Sub(through, point)
	if r3.Norm(d) < planeEps {
		return kernel.Axis{}, fmt.Errorf("axis through coincident points %v: %w", point, kernel.ErrDegenerate)
	}
	return kernel.Axis{Origin: point, Direction: r3.Unit(d)}, nil
}

// CreatePlane returns the plane through point normal to the axis.
func (k *Kernel) CreatePlane(point r3.Vec, normal kernel.Axis) (kernel.Plane, error) {
	if r3.Norm(normal.Direction) < planeEps {
		return kernel.Plane{}, fmt.Errorf("plane normal: %w", kernel.ErrDegenerate)
	}
	return kernel.Plane{Point: point, Normal: r3.Unit(normal.Direction)}, nil
}

// ---------------------------------------------------------------------------
// Partitioning
// ---------------------------------------------------------------------------

// PartitionCells splits every cell the plane passes through. A plane that
// misses every cell leaves the body and its generation untouched.
func (k *Kernel) PartitionCells(h kernel.Body, p kernel.Plane) (kernel.PartitionResult, error) {
	b, err := k.lookup(h)
	if err != nil {
		return kernel.PartitionResult{}, err
	}
	defer b.mu.Unlock()
	if r3.Norm(p.Normal) < planeEps {
		return kernel.PartitionResult{}, fmt.Errorf("partition plane normal: %w", kernel.ErrDegenerate)
	}
	p.Normal = r3.Unit(p.Normal)
	return b.partition(p), nil
}

func (b *body) partition(p kernel.Plane) kernel.PartitionResult {
	res := kernel.PartitionResult{CellsBefore: len(b.cells)}
	next := make([]*cell, 0, len(b.cells))
	split := 0
	for _, c := range b.cells {
		front, back, ok := c.split(p)
		if !ok {
			next = append(next, c)
			continue
		}
		split++
		next = append(next, front, back)
	}
	res.CellsAfter = len(next)
	if split == 0 {
		res.Outcome = kernel.PartitionNoIntersection
		return res
	}
	b.cells = next
	b.mutated()
	res.Outcome = kernel.PartitionSplit
	return res
}

// PartitionBySketch cuts with the surface swept by the sketch segment along
// the sketch normal. The segment must reach past the body on both ends.
func (k *Kernel) PartitionBySketch(h kernel.Body, s kernel.Sketch) (kernel.PartitionResult, error) {
	b, err := k.lookup(h)
	if err != nil {
		return kernel.PartitionResult{}, err
	}
	defer b.mu.Unlock()

	dir := r3.Sub(s.End, s.Start)
	length := r3.Norm(dir)
	n := r3.Cross(dir, s.Normal)
	if length < planeEps || r3.Norm(n) < planeEps {
		return kernel.PartitionResult{}, fmt.Errorf("sketch segment: %w", kernel.ErrDegenerate)
	}
	dir = r3.Unit(dir)
	for _, c := range b.cells {
		for _, v := range c.vertices() {
			t := r3.Dot(r3.Sub(v, s.Start), dir)
			if t < 0 || t > length {
				return kernel.PartitionResult{}, fmt.Errorf("vertex %v outside [0, %g] along segment: %w", v, length, ErrSketchTooShort)
			}
		}
	}
	return b.partition(kernel.Plane{Point: s.Start, Normal: r3.Unit(n)}), nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Vertices returns every vertex, including ones left dangling by face
// removal that have not been swept yet.
func (k *Kernel) Vertices(h kernel.Body) ([]kernel.Vertex, error) {
	b, err := k.lookup(h)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	t := b.topology()
	return lo.Map(t.vertices, func(v r3.Vec, i int) kernel.Vertex {
		return kernel.Vertex{Index: i, Position: v, Generation: b.generation}
	}), nil
}

// Faces returns the live faces in deterministic cell order.
func (k *Kernel) Faces(h kernel.Body) ([]kernel.Face, error) {
	b, err := k.lookup(h)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	t := b.topology()
	return lo.Map(t.faces, func(f faceInfo, i int) kernel.Face {
		return kernel.Face{Index: i, VertexIndices: append([]int(nil), f.verts...), Generation: b.generation}
	}), nil
}

// Edges returns every edge, including dangling ones.
func (k *Kernel) Edges(h kernel.Body) ([]kernel.Edge, error) {
	b, err := k.lookup(h)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	t := b.topology()
	return lo.Map(t.edges, func(e [2]int, i int) kernel.Edge {
		return kernel.Edge{Index: i, VertexIndices: e, Generation: b.generation}
	}), nil
}

// face resolves a snapshot against the current generation.
func (b *body) face(f kernel.Face) (faceInfo, error) {
	if err := kernel.CheckGeneration("face", f.Generation, b.generation); err != nil {
		return faceInfo{}, err
	}
	t := b.topology()
	if f.Index < 0 || f.Index >= len(t.faces) {
		return faceInfo{}, fmt.Errorf("face %d of %d: %w", f.Index, len(t.faces), ErrNoSuchEntity)
	}
	return t.faces[f.Index], nil
}

// FaceNormal returns the unit normal of the face as seen from the first
// cell bounding it.
func (k *Kernel) FaceNormal(h kernel.Body, f kernel.Face) (r3.Vec, error) {
	b, err := k.lookup(h)
	if err != nil {
		return r3.Vec{}, err
	}
	defer b.mu.Unlock()
	fi, err := b.face(f)
	if err != nil {
		return r3.Vec{}, err
	}
	return fi.normal, nil
}

// ---------------------------------------------------------------------------
// Removal
// ---------------------------------------------------------------------------

// RemoveFace removes a face from every cell it bounds. With deleteCells
// the bounding cells are deleted as well. Vertices and edges left without
// a face stay until RemoveRedundantEntities.
func (k *Kernel) RemoveFace(h kernel.Body, f kernel.Face, deleteCells bool) error {
	b, err := k.lookup(h)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()
	fi, err := b.face(f)
	if err != nil {
		return err
	}

	kept := b.cells[:0:0]
	anyHit := false
	for _, c := range b.cells {
		hit := false
		for i := range c.polys {
			p := &c.polys[i]
			if p.removed || p.key() != fi.key {
				continue
			}
			p.removed = true
			hit, anyHit = true, true
			b.retained.addPolygon(*p)
		}
		if hit && deleteCells {
			for _, p := range c.polys {
				b.retained.addPolygon(p)
			}
			continue
		}
		kept = append(kept, c)
	}
	if anyHit {
		b.removed++
	}
	b.cells = kept
	b.mutated()
	return nil
}

// RemoveRedundantEntities sweeps vertices and edges no live face uses and
// returns how many were removed.
func (k *Kernel) RemoveRedundantEntities(h kernel.Body) (int, error) {
	b, err := k.lookup(h)
	if err != nil {
		return 0, err
	}
	defer b.mu.Unlock()
	removed := 0
	if !b.retained.empty() {
		all := b.topology()
		live := buildTopology(b.cells, nil)
		removed = len(all.vertices) - len(live.vertices) + len(all.edges) - len(live.edges)
		b.retained = newLeftovers()
	}
	b.mutated()
	return removed, nil
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Stats summarises a body.
type Stats struct {
	Cells        int    `yaml:"cells"`
	Faces        int    `yaml:"faces"`
	RemovedFaces int    `yaml:"removedFaces"`
	Edges        int    `yaml:"edges"`
	Vertices     int    `yaml:"vertices"`
	Generation   uint64 `yaml:"generation"`
}

// Stats returns counts for the body at its current generation.
func (k *Kernel) Stats(h kernel.Body) (Stats, error) {
	b, err := k.lookup(h)
	if err != nil {
		return Stats{}, err
	}
	defer b.mu.Unlock()
	t := b.topology()
	return Stats{
		Cells:        len(b.cells),
		Faces:        len(t.faces),
		RemovedFaces: b.removed,
		Edges:        len(t.edges),
		Vertices:     len(t.vertices),
		Generation:   b.generation,
	}, nil
}

// Extent returns the length of the body's bounding-box diagonal.
func (k *Kernel) Extent(h kernel.Body) (float64, error) {
	b, err := k.lookup(h)
	if err != nil {
		return 0, err
	}
	defer b.mu.Unlock()
	mn, mx, ok := b.box()
	if !ok {
		return 0, fmt.Errorf("empty body: %w", ErrNoSuchEntity)
	}
	return r3.Norm(r3.Sub(mx, mn)), nil
}

func (b *body) box() (mn, mx r3.Vec, ok bool) {
	first := true
	for _, c := range b.cells {
		for _, p := range c.polys {
			for _, v := range p.verts {
				if first {
					mn, mx, first = v, v, false
					continue
				}
				mn = r3.Vec{X: min(mn.X, v.X), Y: min(mn.Y, v.Y), Z: min(mn.Z, v.Z)}
				mx = r3.Vec{X: max(mx.X, v.X), Y: max(mx.Y, v.Y), Z: max(mx.Z, v.Z)}
			}
		}
	}
	return mn, mx, !first
}
