package brep

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/kernel/sdfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox(t *testing.T, k *Kernel) kernel.Body {
	t.Helper()
	b, err := k.NewBox(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)
	return b
}

func plane(normal r3.Vec) kernel.Plane {
	return kernel.Plane{Normal: r3.Unit(normal)}
}

func stats(t *testing.T, k *Kernel, b kernel.Body) Stats {
	t.Helper()
	s, err := k.Stats(b)
	require.NoError(t, err)
	return s
}

func TestNewBox(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	s := stats(t, k, b)
	assert.Equal(t, 1, s.Cells)
	assert.Equal(t, 6, s.Faces)
	assert.Equal(t, 1, s.RemovedFaces)
	assert.Equal(t, 12, s.Edges)
	assert.Equal(t, 8, s.Vertices)
	require.NoError(t, k.ValidateGeometry(b))

	_, err := k.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 0, Z: 1})
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestPartitionSplitsBox(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	res, err := k.PartitionCells(b, plane(r3.Vec{X: 1}))
	require.NoError(t, err)
	assert.Equal(t, kernel.PartitionSplit, res.Outcome)
	assert.Equal(t, 1, res.CellsBefore)
	assert.Equal(t, 2, res.CellsAfter)

	s := stats(t, k, b)
	assert.Equal(t, 2, s.Cells)
	assert.Equal(t, 11, s.Faces, "four split sides, two ends and one shared cap")
	assert.Equal(t, 20, s.Edges)
	assert.Equal(t, 12, s.Vertices)
	// Euler-Poincaré for a cell complex: V - E + F - C = 1.
	assert.Equal(t, 1, s.Vertices-s.Edges+s.Faces-s.Cells)
	require.NoError(t, k.ValidateGeometry(b))
}

func TestPartitionMissLeavesBodyUntouched(t *testing.T) {
	tests := []struct {
		name  string
		plane kernel.Plane
	}{
		{"outside", kernel.Plane{Point: r3.Vec{X: 5}, Normal: r3.Vec{X: 1}}},
		{"touching a face", kernel.Plane{Point: r3.Vec{Y: 1}, Normal: r3.Vec{Y: 1}}},
		{"touching an edge", kernel.Plane{Point: r3.Vec{X: 1, Y: 1}, Normal: r3.Unit(r3.Vec{X: 1, Y: 1})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New()
			b := unitBox(t, k)
			faces, err := k.Faces(b)
			require.NoError(t, err)

			res, err := k.PartitionCells(b, tt.plane)
			require.NoError(t, err)
			assert.Equal(t, kernel.PartitionNoIntersection, res.Outcome)
			assert.Equal(t, 1, res.CellsAfter)

			// Handles survive a miss.
			_, err = k.FaceNormal(b, faces[0])
			assert.NoError(t, err)
		})
	}
}

func TestPartitionRejectsZeroNormal(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	_, err := k.PartitionCells(b, kernel.Plane{})
	assert.ErrorIs(t, err, kernel.ErrDegenerate)
}

func TestStaleHandles(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	faces, err := k.Faces(b)
	require.NoError(t, err)
	_, err = k.PartitionCells(b, plane(r3.Vec{Z: 1}))
	require.NoError(t, err)

	_, err = k.FaceNormal(b, faces[0])
	assert.ErrorIs(t, err, kernel.ErrStaleHandle)
	assert.ErrorIs(t, k.RemoveFace(b, faces[0], false), kernel.ErrStaleHandle)

	fresh, err := k.Faces(b)
	require.NoError(t, err)
	assert.Greater(t, fresh[0].Generation, faces[0].Generation)
	_, err = k.FaceNormal(b, fresh[0])
	assert.NoError(t, err)

	bogus := fresh[0]
	bogus.Index = len(fresh)
	_, err = k.FaceNormal(b, bogus)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestUnknownBody(t *testing.T) {
	k1, k2 := New(), New()
	b := unitBox(t, k1)
	_, err := k2.Faces(b)
	assert.ErrorIs(t, err, kernel.ErrUnknownBody)
	_, err = k1.Faces(nil)
	assert.ErrorIs(t, err, kernel.ErrUnknownBody)

	k1.Discard(b)
	_, err = k1.Vertices(b)
	assert.ErrorIs(t, err, kernel.ErrUnknownBody)
}

// findFace returns the face whose normal is parallel to n and whose
// vertices all satisfy on.
func findFace(t *testing.T, k *Kernel, b kernel.Body, n r3.Vec, on func(r3.Vec) bool) kernel.Face {
	t.Helper()
	faces, err := k.Faces(b)
	require.NoError(t, err)
	verts, err := k.Vertices(b)
	require.NoError(t, err)
	for _, f := range faces {
		fn, err := k.FaceNormal(b, f)
		require.NoError(t, err)
		if math.Abs(math.Abs(r3.Dot(fn, n))-1) > 1e-9 {
			continue
		}
		all := true
		for _, vi := range f.VertexIndices {
			if !on(verts[vi].Position) {
				all = false
				break
			}
		}
		if all {
			return f
		}
	}
	t.Fatalf("no face with normal %v", n)
	return kernel.Face{}
}

func TestRemoveInteriorFace(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	_, err := k.PartitionCells(b, plane(r3.Vec{X: 1}))
	require.NoError(t, err)

	capFace := findFace(t, k, b, r3.Vec{X: 1}, func(v r3.Vec) bool { return math.Abs(v.X) < 1e-9 })
	require.NoError(t, k.RemoveFace(b, capFace, false))
	s := stats(t, k, b)
	assert.Equal(t, 10, s.Faces)
	assert.Equal(t, 1, s.RemovedFaces)
	assert.Equal(t, 2, s.Cells)

	// The cap's edges and vertices still bound the side faces.
	removed, err := k.RemoveRedundantEntities(b)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 12, stats(t, k, b).Vertices)
	require.NoError(t, k.ValidateGeometry(b))
}

func TestRemoveFaceDeletingCells(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	_, err := k.PartitionCells(b, plane(r3.Vec{X: 1}))
	require.NoError(t, err)

	end := findFace(t, k, b, r3.Vec{X: 1}, func(v r3.Vec) bool { return v.X > 0.5 })
	require.NoError(t, k.RemoveFace(b, end, true))
	s := stats(t, k, b)
	assert.Equal(t, 1, s.Cells)
	assert.Equal(t, 6, s.Faces)
	assert.Equal(t, 1, s.RemovedFaces)
	// Dangling entities of the deleted cell stay until swept.
	assert.Equal(t, 12, s.Vertices)

	removed, err := k.RemoveRedundantEntities(b)
	require.NoError(t, err)
	assert.Equal(t, 4+8, removed, "four far corners and their eight edges")
	s = stats(t, k, b)
	assert.Equal(t, 8, s.Vertices)
	assert.Equal(t, 12, s.Edges)
	require.NoError(t, k.ValidateGeometry(b))
}

func TestRemovedFlagSurvivesLaterCuts(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	end := findFace(t, k, b, r3.Vec{X: 1}, func(v r3.Vec) bool { return v.X < -0.5 })
	require.NoError(t, k.RemoveFace(b, end, false))
	assert.Equal(t, 5, stats(t, k, b).Faces)

	_, err := k.PartitionCells(b, plane(r3.Vec{Y: 1}))
	require.NoError(t, err)
	s := stats(t, k, b)
	// The cut splits the removed end in two; it is still one removed face.
	assert.Equal(t, 1, s.RemovedFaces)
	assert.Equal(t, 9, s.Faces)
}

func TestValidateEmptyBody(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	faces, err := k.Faces(b)
	require.NoError(t, err)
	require.NoError(t, k.RemoveFace(b, faces[0], true))
	err = k.ValidateGeometry(b)
	assert.ErrorIs(t, err, kernel.ErrInvalidGeometry)
}

func TestHollowSphere(t *testing.T) {
	k := New()
	b, err := k.NewHollowSphere(r3.Vec{}, 1, 2, 0)
	require.NoError(t, err)
	s := stats(t, k, b)
	assert.Equal(t, 8, s.Cells)
	assert.Equal(t, 8+8+12, s.Faces)
	assert.Equal(t, 12, s.Vertices)
	require.NoError(t, k.ValidateGeometry(b))

	verts, err := k.Vertices(b)
	require.NoError(t, err)
	for _, v := range verts {
		r := r3.Norm(v.Position)
		assert.True(t, r == 1 || r == 2, "vertex %v at radius %g", v.Position, r)
	}

	b, err = k.NewHollowSphere(r3.Vec{X: 1}, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 8*16, stats(t, k, b).Cells)
	require.NoError(t, k.ValidateGeometry(b))

	_, err = k.NewHollowSphere(r3.Vec{}, 2, 1, 0)
	assert.ErrorIs(t, err, ErrBadShape)
	_, err = k.NewHollowSphere(r3.Vec{}, 1, 2, MaxSubdivisions+1)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestHollowSphereSurvivesManyCuts(t *testing.T) {
	k := New()
	b, err := k.NewHollowSphere(r3.Vec{}, 1, 2, 1)
	require.NoError(t, err)
	normals := []r3.Vec{
		{Y: 1}, {X: 1, Z: 1}, {X: 1, Z: -1}, {X: 1, Y: -1}, {Y: 1, Z: 1},
		{X: 0.3, Y: 0.2, Z: 0.9}, {X: 1, Y: 1, Z: 1},
	}
	for _, n := range normals {
		_, err := k.PartitionCells(b, plane(n))
		require.NoError(t, err)
	}
	require.NoError(t, k.ValidateGeometry(b))
	s := stats(t, k, b)
	assert.Greater(t, s.Cells, 32)
}

func TestFacesAreDeterministic(t *testing.T) {
	run := func() ([]kernel.Face, []kernel.Vertex) {
		k := New()
		b, err := k.NewHollowSphere(r3.Vec{}, 1, 2, 1)
		require.NoError(t, err)
		for _, n := range []r3.Vec{{X: 1, Z: 1}, {Y: 1, Z: -1}} {
			_, err := k.PartitionCells(b, plane(n))
			require.NoError(t, err)
		}
		faces, err := k.Faces(b)
		require.NoError(t, err)
		verts, err := k.Vertices(b)
		require.NoError(t, err)
		return faces, verts
	}
	f1, v1 := run()
	f2, v2 := run()
	assert.Equal(t, f1, f2)
	assert.Equal(t, v1, v2)
}

func TestFromEnvelope(t *testing.T) {
	center := r3.Vec{X: 2, Y: -1, Z: 0.5}
	env, err := sdfx.HollowSphere(1, 2)
	require.NoError(t, err)
	env = env.Translate(center)

	k := New()
	b, err := k.FromEnvelope(env, center, 1)
	require.NoError(t, err)
	assert.Equal(t, 32, stats(t, k, b).Cells)
	require.NoError(t, k.ValidateGeometry(b))

	verts, err := k.Vertices(b)
	require.NoError(t, err)
	for _, v := range verts {
		r := r3.Norm(r3.Sub(v.Position, center))
		assert.True(t, math.Abs(r-1) < 1e-9 || math.Abs(r-2) < 1e-9, "vertex at radius %g", r)
	}

	extent, err := k.Extent(b)
	require.NoError(t, err)
	assert.InDelta(t, 4*math.Sqrt(3), extent, 1e-6)
}

func TestFromEnvelopeRejectsSolid(t *testing.T) {
	env, err := sdfx.Sphere(1)
	require.NoError(t, err)
	_, err = New().FromEnvelope(env, r3.Vec{}, 0)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestPartitionBySketch(t *testing.T) {
	k := New()
	b := unitBox(t, k)
	res, err := k.PartitionBySketch(b, kernel.Sketch{
		Normal: r3.Vec{Z: 1},
		Start:  r3.Vec{X: -5},
		End:    r3.Vec{X: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.PartitionSplit, res.Outcome)
	// The swept surface is the y = 0 plane.
	capFace := findFace(t, k, b, r3.Vec{Y: 1}, func(v r3.Vec) bool { return math.Abs(v.Y) < 1e-9 })
	assert.Len(t, capFace.VertexIndices, 4)

	_, err = k.PartitionBySketch(b, kernel.Sketch{
		Normal: r3.Vec{Z: 1},
		Start:  r3.Vec{X: -0.5},
		End:    r3.Vec{X: 5},
	})
	assert.True(t, errors.Is(err, ErrSketchTooShort))

	_, err = k.PartitionBySketch(b, kernel.Sketch{
		Normal: r3.Vec{X: 1},
		Start:  r3.Vec{X: -5},
		End:    r3.Vec{X: 5},
	})
	assert.ErrorIs(t, err, kernel.ErrDegenerate)
}

func TestCreateDatums(t *testing.T) {
	k := New()
	a, err := k.CreateAxis(r3.Vec{X: 1}, r3.Vec{X: 1, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Y: 1}, a.Direction)
	p, err := k.CreatePlane(r3.Vec{X: 1}, a)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Y: 1}, p.Normal)

	_, err = k.CreateAxis(r3.Vec{}, r3.Vec{})
	assert.ErrorIs(t, err, kernel.ErrDegenerate)
	_, err = k.CreatePlane(r3.Vec{}, kernel.Axis{})
	assert.ErrorIs(t, err, kernel.ErrDegenerate)
}
