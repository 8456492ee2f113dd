// Package kernel defines the abstract B-rep kernel interface the partition
// and carve passes drive. Implementations (brep) own their bodies; only
// value snapshots and opaque handles cross this boundary, so backends can
// be swapped without changing the rest of the system.
package kernel

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrStaleHandle is returned when a Vertex, Face or Edge snapshot from
	// an older body generation is passed back to the kernel.
	ErrStaleHandle = errors.New("kernel: stale handle")
	// ErrUnknownBody is returned for bodies the kernel does not own.
	ErrUnknownBody = errors.New("kernel: unknown body")
	// ErrDegenerate is returned for zero-length axes and similar input.
	ErrDegenerate = errors.New("kernel: degenerate geometry")
	// ErrInvalidGeometry wraps every ValidateGeometry failure.
	ErrInvalidGeometry = errors.New("kernel: invalid geometry")
)

// Body is an opaque handle to a kernel-owned solid made of cells, faces,
// edges and vertices. Bodies are mutated in place.
type Body interface {
	// ID identifies the body within its kernel.
	ID() string
}

// Axis is a datum axis through Origin along a unit Direction.
type Axis struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// Plane is a datum plane through Point with a unit Normal.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

// Side returns the signed distance of v from the plane.
func (p Plane) Side(v r3.Vec) float64 {
	return r3.Dot(r3.Sub(v, p.Point), p.Normal)
}

// PartitionOutcome classifies a partition call.
type PartitionOutcome int

const (
	// PartitionSplit means at least one cell was split.
	PartitionSplit PartitionOutcome = iota
	// PartitionNoIntersection means the plane missed every cell. It is an
	// expected outcome for planes that only touch a boundary.
	PartitionNoIntersection
)

func (o PartitionOutcome) String() string {
	switch o {
	case PartitionSplit:
		return "split"
	case PartitionNoIntersection:
		return "no-intersection"
	default:
		return fmt.Sprintf("PartitionOutcome(%d)", int(o))
	}
}

// PartitionResult reports what a partition call did.
type PartitionResult struct {
	Outcome     PartitionOutcome
	CellsBefore int
	CellsAfter  int
}

// Sketch describes a sketch-based cut: a straight segment from Start to End
// drawn on the sketch plane with normal Normal, extruded through the body
// along Normal. The segment must span the body.
type Sketch struct {
	Normal r3.Vec
	Start  r3.Vec
	End    r3.Vec
}

// Kernel is the abstract B-rep kernel interface.
type Kernel interface {
	// Datums
	CreateAxis(point, through r3.Vec) (Axis, error)
	CreatePlane(point r3.Vec, normal Axis) (Plane, error)

	// Partitioning. A plane that misses the body is reported through
	// PartitionResult.Outcome, not as an error.
	PartitionCells(b Body, p Plane) (PartitionResult, error)

	// Queries. Every returned snapshot carries the body generation it was
	// taken at.
	Vertices(b Body) ([]Vertex, error)
	Faces(b Body) ([]Face, error)
	Edges(b Body) ([]Edge, error)
	FaceNormal(b Body, f Face) (r3.Vec, error)

	// Removal
	RemoveFace(b Body, f Face, deleteCells bool) error
	RemoveRedundantEntities(b Body) (removed int, err error)

	ValidateGeometry(b Body) error
}

// SketchPartitioner is implemented by kernels that can partition with a
// sketch instead of a datum plane.
type SketchPartitioner interface {
	PartitionBySketch(b Body, s Sketch) (PartitionResult, error)
}
