// Package carve removes the partition faces that meet a principal axis at
// the carve angle, turning octant cells into turtle-shell panels.
//
// Each axis pass is a small state machine. While searching, the carver
// finds the vertices aligned with the axis and takes the inner pair; the
// first face touching that pair whose normal makes the carve angle with
// the axis' reference is removed, and the search starts again on fresh
// kernel snapshots. The pass ends when a full scan finds nothing.
package carve

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/logging"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultNormalTolerance is the default slack when comparing a face normal
// against the carve angle.
const DefaultNormalTolerance = 0.001

// ErrNotConverged is returned when an axis pass removes more faces than the
// body had when the pass began. It means the kernel reported a removed
// face again.
var ErrNotConverged = errors.New("carve: face removal did not converge")

// Matcher decides whether a face with the given normal should be removed.
// reference is the unit reference axis for the pass.
type Matcher interface {
	Match(normal, reference r3.Vec) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(normal, reference r3.Vec) bool

// Match calls f.
func (f MatcherFunc) Match(normal, reference r3.Vec) bool { return f(normal, reference) }

// AngleMatcher accepts faces whose unit normal makes AngleDeg with the
// reference axis, either way round:
//
//	| |n·ref| − cos(angle) | <= Tolerance
type AngleMatcher struct {
	AngleDeg  float64
	Tolerance float64
}

// Match implements Matcher.
func (m AngleMatcher) Match(normal, reference r3.Vec) bool {
	n := geom.Normalize(normal)
	if geom.IsZero(n) {
		return false
	}
	want := math.Cos(geom.Deg2Rad(m.AngleDeg))
	return math.Abs(math.Abs(r3.Dot(n, reference))-want) <= m.Tolerance
}

// Carver runs carve passes against a kernel.
type Carver struct {
	Kernel kernel.Kernel
	Frame  geom.Frame
	// AngleDeg is the carve angle used by the default matcher.
	AngleDeg float64
	// AlignTolerance defaults to geom.DefaultAlignTolerance.
	AlignTolerance float64
	// NormalTolerance defaults to DefaultNormalTolerance.
	NormalTolerance float64
	// Matcher overrides the angle test when set.
	Matcher Matcher
	Log     *logrus.Entry
}

// AxisResult reports one axis pass.
type AxisResult struct {
	Axis       geom.Axis `yaml:"axis"`
	Aligned    int       `yaml:"aligned"`
	Removed    int       `yaml:"removed"`
	Iterations int       `yaml:"iterations"`
}

// Result reports a full carve.
type Result struct {
	Axes    []AxisResult `yaml:"axes"`
	Removed int          `yaml:"removed"`
}

type state int

const (
	searching state = iota
	foundMatch
	done
)

func (c *Carver) log() *logrus.Entry {
	if c.Log == nil {
		return logging.Nop()
	}
	return c.Log
}

func (c *Carver) matcher() Matcher {
	if c.Matcher != nil {
		return c.Matcher
	}
	tol := c.NormalTolerance
	if tol == 0 {
		tol = DefaultNormalTolerance
	}
	return AngleMatcher{AngleDeg: c.AngleDeg, Tolerance: tol}
}

func (c *Carver) alignTolerance() float64 {
	if c.AlignTolerance == 0 {
		return geom.DefaultAlignTolerance
	}
	return c.AlignTolerance
}

// Carve runs one pass per axis, in the given order.
func (c *Carver) Carve(b kernel.Body, axes []geom.Axis) (Result, error) {
	var res Result
	for _, a := range axes {
		ar, err := c.CarveAxis(b, a)
		res.Axes = append(res.Axes, ar)
		if err != nil {
			return res, fmt.Errorf("carve %s: %w", a, err)
		}
	}
	res.Removed = lo.SumBy(res.Axes, func(r AxisResult) int { return r.Removed })
	return res, nil
}

// CarveAxis removes every face touching the axis' inner aligned vertex
// pair whose normal the matcher accepts against the reference of axis.
func (c *Carver) CarveAxis(b kernel.Body, axis geom.Axis) (AxisResult, error) {
	res := AxisResult{Axis: axis}
	dir := c.Frame.Axis(axis)
	ref := c.Frame.Axis(axis.Reference())
	match := c.matcher()
	log := c.log().WithField("axis", axis.String())

	faces, err := c.Kernel.Faces(b)
	if err != nil {
		return res, err
	}
	bound := len(faces)

	var pending kernel.Face
	st := searching
	for st != done {
		switch st {
		case searching:
			res.Iterations++
			pair, aligned, err := c.activePair(b, dir)
			if err != nil {
				return res, err
			}
			res.Aligned = aligned
			if pair == nil {
				log.WithField("aligned", aligned).Debug("too few aligned vertices")
				st = done
				continue
			}
			f, found, err := c.firstMatch(b, pair, ref, match)
			if err != nil {
				return res, err
			}
			if !found {
				st = done
				continue
			}
			pending, st = f, foundMatch

		case foundMatch:
			if res.Removed >= bound {
				return res, fmt.Errorf("%d removals on a body of %d faces: %w", res.Removed+1, bound, ErrNotConverged)
			}
			if err := c.Kernel.RemoveFace(b, pending, false); err != nil {
				return res, fmt.Errorf("remove %s: %w", pending, err)
			}
			swept, err := c.Kernel.RemoveRedundantEntities(b)
			if err != nil {
				return res, err
			}
			res.Removed++
			log.WithFields(logrus.Fields{"face": pending.Index, "swept": swept}).Debug("face removed")
			st = searching
		}
	}
	log.WithFields(logrus.Fields{"removed": res.Removed, "iterations": res.Iterations}).Info("axis carved")
	return res, nil
}

// activePair returns the indices of the second and third vertices aligned
// with dir, ordered by signed coordinate along it. pair is nil when fewer
// than three vertices are aligned.
func (c *Carver) activePair(b kernel.Body, dir r3.Vec) (pair []int, aligned int, err error) {
	verts, err := c.Kernel.Vertices(b)
	if err != nil {
		return nil, 0, err
	}
	center, tol := c.Frame.Center, c.alignTolerance()
	on := lo.Filter(verts, func(v kernel.Vertex, _ int) bool {
		return geom.Aligned(v.Position, center, dir, tol)
	})
	sort.SliceStable(on, func(i, j int) bool {
		ci := geom.SignedCoordinate(on[i].Position, center, dir)
		cj := geom.SignedCoordinate(on[j].Position, center, dir)
		if ci != cj {
			return ci < cj
		}
		return on[i].Index < on[j].Index
	})
	if len(on) < 3 {
		return nil, len(on), nil
	}
	return []int{on[1].Index, on[2].Index}, len(on), nil
}

func (c *Carver) firstMatch(b kernel.Body, pair []int, ref r3.Vec, m Matcher) (kernel.Face, bool, error) {
	faces, err := c.Kernel.Faces(b)
	if err != nil {
		return kernel.Face{}, false, err
	}
	for _, f := range faces {
		if !f.HasAny(pair...) {
			continue
		}
		n, err := c.Kernel.FaceNormal(b, f)
		if err != nil {
			return kernel.Face{}, false, err
		}
		if m.Match(n, ref) {
			return f, true, nil
		}
	}
	return kernel.Face{}, false, nil
}
