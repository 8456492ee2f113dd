package planes

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func canonical(t *testing.T) geom.Frame {
	t.Helper()
	f, err := geom.NewFrame(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Z: 1})
	require.NoError(t, err)
	return f
}

// cubeCornerPolarDeg is the polar angle of a cube corner seen from the
// center, acos(1/√3).
var cubeCornerPolarDeg = geom.Rad2Deg(math.Acos(1 / math.Sqrt(3)))

func strategies() []Strategy {
	return []Strategy{
		Polar{PolarDeg: 45, AzimuthalDeg: 45},
		Polar{PolarDeg: 30, AzimuthalDeg: 60},
		Polar{PolarDeg: cubeCornerPolarDeg, AzimuthalDeg: 45},
		Legacy{PlaneDeg: 45},
		Legacy{PlaneDeg: 20},
	}
}

func TestGenerateCounts(t *testing.T) {
	f := canonical(t)

	s, err := Polar{PolarDeg: 45, AzimuthalDeg: 45}.Generate(f)
	require.NoError(t, err)
	assert.Len(t, s.Principal, 3)
	assert.Len(t, s.Diagonal, 4)
	assert.Equal(t, 7, s.Len())

	s, err = Legacy{PlaneDeg: 45}.Generate(f)
	require.NoError(t, err)
	assert.Len(t, s.Principal, 3)
	assert.Len(t, s.Diagonal, 6)
	assert.Len(t, s.Normals(), 9)
}

func TestGenerateIsIdempotent(t *testing.T) {
	f, err := geom.NewFrame(r3.Vec{X: 3, Y: -1, Z: 2}, r3.Vec{X: 1, Y: 0.2}, r3.Vec{X: -0.2, Z: 1})
	require.NoError(t, err)
	for _, s := range strategies() {
		t.Run(s.String(), func(t *testing.T) {
			a, err := s.Generate(f)
			require.NoError(t, err)
			b, err := s.Generate(f)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestNormalsAreUnit(t *testing.T) {
	f, err := geom.NewFrame(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: 2, Y: 1}, r3.Vec{X: -1, Y: 2, Z: 5})
	require.NoError(t, err)
	for _, s := range strategies() {
		t.Run(s.String(), func(t *testing.T) {
			set, err := s.Generate(f)
			require.NoError(t, err)
			for i, n := range set.Normals() {
				assert.InDelta(t, 1, r3.Norm(n), 1e-9, "normal %d", i)
			}
			for _, c := range append(set.Principal, set.Diagonal...) {
				assert.Equal(t, f.Center, c.Point)
			}
		})
	}
}

func TestPrincipalXZNormal(t *testing.T) {
	f := canonical(t)
	tests := []struct {
		s     Strategy
		index int
	}{
		{Polar{PolarDeg: 45, AzimuthalDeg: 45}, 0},
		{Legacy{PlaneDeg: 45}, 1},
	}
	for _, tt := range tests {
		set, err := tt.s.Generate(f)
		require.NoError(t, err)
		n := set.Principal[tt.index].Normal
		assert.InDelta(t, 0, n.X, 1e-12, tt.s.String())
		assert.InDelta(t, 1, math.Abs(n.Y), 1e-12, tt.s.String())
		assert.InDelta(t, 0, n.Z, 1e-12, tt.s.String())
	}
}

func TestPolarEquatorialNormalsMirror(t *testing.T) {
	set, err := Polar{PolarDeg: 45, AzimuthalDeg: 30}.Generate(canonical(t))
	require.NoError(t, err)
	a, b := set.Principal[1].Normal, set.Principal[2].Normal
	assert.InDelta(t, 0, a.Y, 1e-12)
	assert.InDelta(t, 0, b.Y, 1e-12)
	assert.InDelta(t, a.X, b.X, 1e-12)
	assert.InDelta(t, a.Z, -b.Z, 1e-12)
	assert.InDelta(t, math.Cos(math.Pi-geom.Deg2Rad(30)), a.X, 1e-12)
}

func TestLegacyPrincipalPlanesOrthogonal(t *testing.T) {
	set, err := Legacy{PlaneDeg: 45}.Generate(canonical(t))
	require.NoError(t, err)
	p := set.Principal
	assert.Equal(t, r3.Vec{X: 1}, p[0].Normal)
	assert.InDelta(t, 0, r3.Dot(p[0].Normal, p[1].Normal), 1e-12)
	assert.InDelta(t, 0, r3.Dot(p[1].Normal, p[2].Normal), 1e-12)
	assert.InDelta(t, 1, math.Abs(p[2].Normal.Z), 1e-12)
}

func TestDiagonalUpMapping(t *testing.T) {
	f := canonical(t)
	set, err := Legacy{PlaneDeg: 45}.Generate(f)
	require.NoError(t, err)
	want := []geom.Axis{geom.AxisY, geom.AxisY, geom.AxisZ, geom.AxisZ, geom.AxisX, geom.AxisX}
	for i, c := range set.Diagonal {
		assert.Equal(t, want[i], c.Up, "diagonal %d", i)
		// The up axis must never be parallel to the cut normal.
		assert.Less(t, math.Abs(r3.Dot(c.Normal, f.Axis(c.Up))), 0.999)
	}

	set, err = Polar{PolarDeg: 45, AzimuthalDeg: 45}.Generate(f)
	require.NoError(t, err)
	for i, c := range set.Diagonal {
		assert.Equal(t, want[i], c.Up, "diagonal %d", i)
	}
}

func TestLegacyDiagonalsContainUpAxis(t *testing.T) {
	f := canonical(t)
	set, err := Legacy{PlaneDeg: 30}.Generate(f)
	require.NoError(t, err)
	theta := geom.Deg2Rad(30)
	for i, c := range set.Diagonal {
		assert.InDelta(t, 0, r3.Dot(c.Normal, f.Axis(c.Up)), 1e-12, "diagonal %d", i)
		// The pass carving about the up axis measures against its
		// reference axis, which must sit at the plane angle.
		ref := f.Axis(c.Up.Reference())
		assert.InDelta(t, math.Cos(theta), math.Abs(r3.Dot(c.Normal, ref)), 1e-12, "diagonal %d", i)
	}
}

func TestAngleRange(t *testing.T) {
	f := canonical(t)
	tests := []struct {
		name string
		s    Strategy
	}{
		{"polar zero", Polar{PolarDeg: 0, AzimuthalDeg: 45}},
		{"polar ninety", Polar{PolarDeg: 90, AzimuthalDeg: 45}},
		{"azimuth negative", Polar{PolarDeg: 45, AzimuthalDeg: -10}},
		{"azimuth nan", Polar{PolarDeg: 45, AzimuthalDeg: math.NaN()}},
		{"legacy zero", Legacy{PlaneDeg: 0}},
		{"legacy over", Legacy{PlaneDeg: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.s.Generate(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAngleRange))
		})
	}
}

// absDots returns the distinct |n_i · n_j| values over all pairs, rounded
// to 1e-9.
func absDots(normals []r3.Vec) []float64 {
	seen := map[int64]bool{}
	var out []float64
	for i := range normals {
		for j := i + 1; j < len(normals); j++ {
			d := math.Abs(r3.Dot(normals[i], normals[j]))
			key := int64(math.Round(d * 1e9))
			if !seen[key] {
				seen[key] = true
				out = append(out, float64(key)/1e9)
			}
		}
	}
	sort.Float64s(out)
	return out
}

func TestLegacyPolarEquivalence(t *testing.T) {
	f := canonical(t)
	legacy, err := Legacy{PlaneDeg: 45}.Generate(f)
	require.NoError(t, err)
	want := absDots(legacy.Normals())
	assert.Equal(t, []float64{0, 0.5, 0.707106781}, want)

	t.Run("cube corner polar angle", func(t *testing.T) {
		polar, err := Polar{PolarDeg: cubeCornerPolarDeg, AzimuthalDeg: 45}.Generate(f)
		require.NoError(t, err)
		assert.Equal(t, want, absDots(polar.Normals()))
	})

	t.Run("polar 45 is not the cube arrangement", func(t *testing.T) {
		polar, err := Polar{PolarDeg: 45, AzimuthalDeg: 45}.Generate(f)
		require.NoError(t, err)
		assert.NotEqual(t, want, absDots(polar.Normals()))
	})
}
