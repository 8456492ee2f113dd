// Package turtle carries a turtle-shell job from parameters to a carved
// body: it validates the job, lays out the frame and cutting planes,
// partitions the body, carves each axis and checks the result.
package turtle

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/chazu/turtleshell/pkg/partition"
	"github.com/chazu/turtleshell/pkg/planes"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNoStrategy is reported when a job names neither angle variant.
	ErrNoStrategy = errors.New("one of polar or legacy angles is required")
	// ErrTwoStrategies is reported when a job names both angle variants.
	ErrTwoStrategies = errors.New("polar and legacy angles are mutually exclusive")
	// ErrOutOfRange is reported for numeric fields outside their domain.
	ErrOutOfRange = errors.New("value out of range")
)

// PolarAngles selects the polar/azimuthal plane strategy. Degrees.
type PolarAngles struct {
	PolarDeg     float64
	AzimuthalDeg float64
}

// LegacyAngle selects the single-angle plane strategy. Degrees.
type LegacyAngle struct {
	PlaneDeg float64
}

// Job holds every parameter of one turtle-shell run. Zero values of the
// optional fields select the defaults noted on each.
type Job struct {
	Center r3.Vec
	XAxis  r3.Vec
	ZAxis  r3.Vec

	// Exactly one of Polar and Legacy must be set.
	Polar  *PolarAngles
	Legacy *LegacyAngle

	// CarveAngleDeg defaults to the polar angle or the plane angle.
	CarveAngleDeg float64
	// BigNumber is the sketch line half-length. Defaults to twice the
	// body extent when the kernel can report one.
	BigNumber float64
	// Partitions lists extra offset planes per axis name ("x", "y", "z").
	Partitions map[string][]float64
	// Axes is the carve order. Defaults to x, y, z.
	Axes []geom.Axis
	// CutMode is "plane" (default) or "sketch".
	CutMode string

	AlignTolerance  float64 // default geom.DefaultAlignTolerance
	NormalTolerance float64 // default carve.DefaultNormalTolerance
}

// FieldError reports one invalid job field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

func finite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Validate checks the job before any kernel call. Every problem found is
// returned, joined, as *FieldError values.
func (j Job) Validate() error {
	var errs []error
	add := func(field string, err error) {
		errs = append(errs, &FieldError{Field: field, Err: err})
	}
	outOfRange := func(field string, v float64, want string) {
		add(field, fmt.Errorf("%g, want %s: %w", v, want, ErrOutOfRange))
	}

	if !finite(j.Center) {
		add("center", fmt.Errorf("%v: %w", j.Center, ErrOutOfRange))
	}
	xOK, zOK := true, true
	if !finite(j.XAxis) || geom.IsZero(j.XAxis) {
		add("x_axis", geom.ErrZeroVector)
		xOK = false
	}
	if !finite(j.ZAxis) || geom.IsZero(j.ZAxis) {
		add("z_axis", geom.ErrZeroVector)
		zOK = false
	}
	if xOK && zOK {
		if _, err := geom.NewFrame(j.Center, j.XAxis, j.ZAxis); err != nil {
			add("z_axis", err)
		}
	}

	switch {
	case j.Polar == nil && j.Legacy == nil:
		add("angles", ErrNoStrategy)
	case j.Polar != nil && j.Legacy != nil:
		add("angles", ErrTwoStrategies)
	case j.Polar != nil:
		if err := planes.CheckAngle("polar", j.Polar.PolarDeg); err != nil {
			add("polar", err)
		}
		if err := planes.CheckAngle("azimuthal", j.Polar.AzimuthalDeg); err != nil {
			add("azimuthal", err)
		}
	default:
		if err := planes.CheckAngle("plane angle", j.Legacy.PlaneDeg); err != nil {
			add("plane_angle", err)
		}
	}

	if j.CarveAngleDeg != 0 {
		if err := planes.CheckAngle("carve angle", j.CarveAngleDeg); err != nil {
			add("carve_angle", err)
		}
	}
	if j.BigNumber < 0 || math.IsNaN(j.BigNumber) || math.IsInf(j.BigNumber, 0) {
		outOfRange("big_number", j.BigNumber, "a positive length")
	}
	if _, err := partition.ParseMode(j.CutMode); err != nil {
		add("cut", err)
	}
	for _, name := range sortedKeys(j.Partitions) {
		if _, err := geom.ParseAxis(name); err != nil {
			add("partitions."+name, err)
			continue
		}
		for _, d := range j.Partitions[name] {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				outOfRange("partitions."+name, d, "a finite offset")
			}
		}
	}
	for _, a := range j.Axes {
		if a < geom.AxisX || a > geom.AxisZ {
			add("axes", fmt.Errorf("%s: %w", a, ErrOutOfRange))
		}
	}
	if !(j.AlignTolerance >= 0 && j.AlignTolerance < 1) {
		outOfRange("align_tolerance", j.AlignTolerance, "[0, 1)")
	}
	if !(j.NormalTolerance >= 0 && j.NormalTolerance < 1) {
		outOfRange("normal_tolerance", j.NormalTolerance, "[0, 1)")
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strategy returns the plane strategy the job selects, or nil if it
// selects none.
func (j Job) Strategy() planes.Strategy {
	switch {
	case j.Polar != nil:
		return planes.Polar{PolarDeg: j.Polar.PolarDeg, AzimuthalDeg: j.Polar.AzimuthalDeg}
	case j.Legacy != nil:
		return planes.Legacy{PlaneDeg: j.Legacy.PlaneDeg}
	default:
		return nil
	}
}

// Frame returns the job's local frame.
func (j Job) Frame() (geom.Frame, error) {
	return geom.NewFrame(j.Center, j.XAxis, j.ZAxis)
}

// CarveAngle returns the effective carve angle in degrees.
func (j Job) CarveAngle() float64 {
	if j.CarveAngleDeg != 0 {
		return j.CarveAngleDeg
	}
	if s := j.Strategy(); s != nil {
		return s.CarveAngle()
	}
	return 0
}

// CarveAxes returns the effective carve order.
func (j Job) CarveAxes() []geom.Axis {
	if len(j.Axes) == 0 {
		return geom.AllAxes
	}
	return j.Axes
}

// Mode returns the parsed cut mode, CutPlane if invalid.
func (j Job) Mode() partition.Mode {
	m, _ := partition.ParseMode(j.CutMode)
	return m
}

// Offsets returns the offset planes keyed by axis. Unknown keys are
// dropped; Validate reports them.
func (j Job) Offsets() map[geom.Axis][]float64 {
	out := map[geom.Axis][]float64{}
	for _, name := range sortedKeys(j.Partitions) {
		if a, err := geom.ParseAxis(name); err == nil {
			out[a] = append(out[a], j.Partitions[name]...)
		}
	}
	return out
}
