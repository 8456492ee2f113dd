package kernel

import (
	"fmt"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vertex is a snapshot of one body vertex. Index is only meaningful at
// Generation.
type Vertex struct {
	Index      int
	Position   r3.Vec
	Generation uint64
}

// Face is a snapshot of one body face and the vertices bounding it.
type Face struct {
	Index         int
	VertexIndices []int
	Generation    uint64
}

// Has reports whether vertex index v bounds the face.
func (f Face) Has(v int) bool {
	return lo.Contains(f.VertexIndices, v)
}

// HasAny reports whether any of vs bounds the face.
func (f Face) HasAny(vs ...int) bool {
	return lo.SomeBy(vs, f.Has)
}

func (f Face) String() string {
	return fmt.Sprintf("face %d@%d %v", f.Index, f.Generation, f.VertexIndices)
}

// Edge is a snapshot of one body edge.
type Edge struct {
	Index         int
	VertexIndices [2]int
	Generation    uint64
}

// CheckGeneration returns ErrStaleHandle unless got matches the current
// generation.
func CheckGeneration(what string, got, current uint64) error {
	if got != current {
		return fmt.Errorf("%s from generation %d, body is at %d: %w", what, got, current, ErrStaleHandle)
	}
	return nil
}
