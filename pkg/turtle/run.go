package turtle

import (
	"fmt"

	"github.com/chazu/turtleshell/pkg/carve"
	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/logging"
	"github.com/chazu/turtleshell/pkg/partition"
	"github.com/chazu/turtleshell/pkg/planes"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Extenter is implemented by kernels that can size a body. Run uses it to
// default Job.BigNumber.
type Extenter interface {
	Extent(b kernel.Body) (float64, error)
}

// ValidationFailure wraps a kernel geometry check that failed after the
// body was carved. The body is left as mutated.
type ValidationFailure struct {
	Err error
}

func (e *ValidationFailure) Error() string {
	return "geometry validation failed: " + e.Err.Error()
}

func (e *ValidationFailure) Unwrap() error { return e.Err }

// PlaneReport is one generated cut.
type PlaneReport struct {
	Kind   string     `yaml:"kind"`
	Normal [3]float64 `yaml:"normal,flow"`
}

// PlaneReports lists the principal cuts of set, then the diagonal ones.
func PlaneReports(set planes.Set) []PlaneReport {
	report := func(kind string) func(c planes.Cut, _ int) PlaneReport {
		return func(c planes.Cut, _ int) PlaneReport {
			return PlaneReport{Kind: kind, Normal: [3]float64{c.Normal.X, c.Normal.Y, c.Normal.Z}}
		}
	}
	return append(lo.Map(set.Principal, report("principal")), lo.Map(set.Diagonal, report("diagonal"))...)
}

// Report describes a finished run.
type Report struct {
	Strategy    string            `yaml:"strategy"`
	CarveAngle  float64           `yaml:"carveAngle"`
	BigNumber   float64           `yaml:"bigNumber,omitempty"`
	Planes      []PlaneReport     `yaml:"planes"`
	Partition   partition.Summary `yaml:"partition"`
	Carve       carve.Result      `yaml:"carve"`
	Offsets     partition.Summary `yaml:"offsets"`
	FacesBefore int               `yaml:"facesBefore"`
	// FacesPartitioned is the face count after the principal and diagonal
	// cuts, right before carving.
	FacesPartitioned int `yaml:"facesPartitioned"`
	FacesAfter       int `yaml:"facesAfter"`
	// Validation is set when the carved body failed the kernel's check.
	Validation *ValidationFailure `yaml:"-"`
}

// Valid reports whether the carved body passed validation.
func (r Report) Valid() bool { return r.Validation == nil }

// Run validates the job and carves the body in place: principal and
// diagonal cuts, carve passes, offset planes, then a geometry check. Job
// errors are returned before any kernel call. A failed geometry check is
// reported in Report.Validation, not as an error.
func Run(k kernel.Kernel, b kernel.Body, job Job, log *logrus.Entry) (Report, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := job.Validate(); err != nil {
		return Report{}, err
	}
	frame, err := job.Frame()
	if err != nil {
		return Report{}, err
	}
	strategy := job.Strategy()
	set, err := strategy.Generate(frame)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Strategy: strategy.String(), CarveAngle: job.CarveAngle(), Planes: PlaneReports(set)}

	faces, err := k.Faces(b)
	if err != nil {
		return rep, fmt.Errorf("query faces: %w", err)
	}
	rep.FacesBefore = len(faces)

	mode := job.Mode()
	big := job.BigNumber
	if big == 0 && mode == partition.CutSketch {
		ext, ok := k.(Extenter)
		if !ok {
			return rep, fmt.Errorf("big_number: %w", partition.ErrSketchSize)
		}
		extent, err := ext.Extent(b)
		if err != nil {
			return rep, fmt.Errorf("body extent: %w", err)
		}
		big = 2 * extent
	}
	rep.BigNumber = big

	log.WithFields(logrus.Fields{
		"strategy": rep.Strategy,
		"cuts":     set.Len(),
		"mode":     mode.String(),
		"faces":    rep.FacesBefore,
	}).Info("partitioning")
	orch := &partition.Orchestrator{
		Kernel:    k,
		Frame:     frame,
		Mode:      mode,
		BigNumber: big,
		Log:       log.WithField("stage", "partition"),
	}
	if rep.Partition, err = orch.Apply(b, set); err != nil {
		return rep, err
	}
	if faces, err = k.Faces(b); err != nil {
		return rep, fmt.Errorf("query faces: %w", err)
	}
	rep.FacesPartitioned = len(faces)

	carver := &carve.Carver{
		Kernel:          k,
		Frame:           frame,
		AngleDeg:        rep.CarveAngle,
		AlignTolerance:  job.AlignTolerance,
		NormalTolerance: job.NormalTolerance,
		Log:             log.WithField("stage", "carve"),
	}
	if rep.Carve, err = carver.Carve(b, job.CarveAxes()); err != nil {
		return rep, err
	}

	if offsets := job.Offsets(); len(offsets) > 0 {
		if rep.Offsets, err = orch.ApplyOffsets(b, offsets); err != nil {
			return rep, err
		}
	}

	if faces, err = k.Faces(b); err != nil {
		return rep, fmt.Errorf("query faces: %w", err)
	}
	rep.FacesAfter = len(faces)

	if err := k.ValidateGeometry(b); err != nil {
		rep.Validation = &ValidationFailure{Err: err}
		log.WithError(err).Warn("carved body failed validation")
		return rep, nil
	}
	log.WithFields(logrus.Fields{
		"removed": rep.Carve.Removed,
		"faces":   rep.FacesAfter,
	}).Info("turtle shell carved")
	return rep, nil
}
