// Package partition applies generated cutting planes to a body through the
// kernel interface.
package partition

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/chazu/turtleshell/pkg/kernel"
	"github.com/chazu/turtleshell/pkg/logging"
	"github.com/chazu/turtleshell/pkg/planes"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSketchUnsupported is returned in CutSketch mode when the kernel cannot
// partition by sketch.
var ErrSketchUnsupported = errors.New("partition: kernel does not support sketch cuts")

// ErrSketchSize is returned in CutSketch mode without a positive BigNumber.
var ErrSketchSize = errors.New("partition: sketch cuts need a positive big number")

// Mode selects how diagonal cuts reach the kernel.
type Mode int

const (
	// CutPlane partitions every cut with a datum plane.
	CutPlane Mode = iota
	// CutSketch partitions diagonal cuts with a sketched line swept through
	// the body.
	CutSketch
)

func (m Mode) String() string {
	switch m {
	case CutPlane:
		return "plane"
	case CutSketch:
		return "sketch"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "plane" or "sketch".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plane":
		return CutPlane, nil
	case "sketch":
		return CutSketch, nil
	default:
		return 0, fmt.Errorf("unknown cut mode %q", s)
	}
}

// Summary counts what a pass did.
type Summary struct {
	Applied int `yaml:"applied"`
	Skipped int `yaml:"skipped"`
}

// Add accumulates o into s.
func (s *Summary) Add(o Summary) {
	s.Applied += o.Applied
	s.Skipped += o.Skipped
}

// Orchestrator drives a kernel through a plane set.
type Orchestrator struct {
	Kernel kernel.Kernel
	Frame  geom.Frame
	Mode   Mode
	// BigNumber is the half-length of sketched lines. Only used by
	// CutSketch.
	BigNumber float64
	Log       *logrus.Entry
}

func (o *Orchestrator) log() *logrus.Entry {
	if o.Log == nil {
		return logging.Nop()
	}
	return o.Log
}

// Apply partitions the body with every principal cut, then every diagonal
// cut, in order. Cuts that miss the body are skipped. Any other kernel
// error aborts the pass; cuts applied before it are not undone.
func (o *Orchestrator) Apply(b kernel.Body, set planes.Set) (Summary, error) {
	var sum Summary
	for i, c := range set.Principal {
		res, err := o.cutPlane(b, c.Point, c.Normal)
		if err != nil {
			return sum, fmt.Errorf("principal cut %d: %w", i, err)
		}
		o.record(&sum, "principal", i, c.Normal, res)
	}
	for i, c := range set.Diagonal {
		var (
			res kernel.PartitionResult
			err error
		)
		if o.Mode == CutSketch {
			res, err = o.cutSketch(b, c)
		} else {
			res, err = o.cutPlane(b, c.Point, c.Normal)
		}
		if err != nil {
			return sum, fmt.Errorf("diagonal cut %d: %w", i, err)
		}
		o.record(&sum, "diagonal", i, c.Normal, res)
	}
	return sum, nil
}

// ApplyOffsets partitions the body with planes normal to each frame axis
// at the given signed distances from the center, axes in x, y, z order.
func (o *Orchestrator) ApplyOffsets(b kernel.Body, offsets map[geom.Axis][]float64) (Summary, error) {
	var sum Summary
	for _, a := range geom.AllAxes {
		dir := o.Frame.Axis(a)
		for i, d := range offsets[a] {
			point := r3.Add(o.Frame.Center, r3.Scale(d, dir))
			res, err := o.cutPlane(b, point, dir)
			if err != nil {
				return sum, fmt.Errorf("offset %s=%g: %w", a, d, err)
			}
			o.record(&sum, "offset "+a.String(), i, dir, res)
		}
	}
	return sum, nil
}

func (o *Orchestrator) cutPlane(b kernel.Body, point, normal r3.Vec) (kernel.PartitionResult, error) {
	axis, err := o.Kernel.CreateAxis(point, r3.Add(point, normal))
	if err != nil {
		return kernel.PartitionResult{}, err
	}
	pl, err := o.Kernel.CreatePlane(point, axis)
	if err != nil {
		return kernel.PartitionResult{}, err
	}
	return o.Kernel.PartitionCells(b, pl)
}

func (o *Orchestrator) cutSketch(b kernel.Body, c planes.Cut) (kernel.PartitionResult, error) {
	sp, ok := o.Kernel.(kernel.SketchPartitioner)
	if !ok {
		return kernel.PartitionResult{}, ErrSketchUnsupported
	}
	s, err := SketchFor(o.Frame, c, o.BigNumber)
	if err != nil {
		return kernel.PartitionResult{}, err
	}
	return sp.PartitionBySketch(b, s)
}

// SketchFor lays out the sketch realising cut c: the sketch plane contains
// the cut normal and the cut's up axis, and the line runs across it through
// the center, BigNumber to either side.
func SketchFor(f geom.Frame, c planes.Cut, bigNumber float64) (kernel.Sketch, error) {
	if !(bigNumber > 0) {
		return kernel.Sketch{}, ErrSketchSize
	}
	n := geom.Normalize(c.Normal)
	up := f.Axis(c.Up)
	s := r3.Sub(up, r3.Scale(r3.Dot(up, n), n))
	if r3.Norm(s) < geom.Tolerance {
		return kernel.Sketch{}, fmt.Errorf("up axis %s is parallel to cut normal %v: %w", c.Up, n, geom.ErrParallelAxes)
	}
	s = geom.Normalize(s)
	d := r3.Cross(n, s)

	ends, err := geom.RectilinearCoordinates([]float64{bigNumber, bigNumber}, []float64{0, math.Pi})
	if err != nil {
		return kernel.Sketch{}, err
	}
	at := func(p r2.Vec) r3.Vec {
		return r3.Add(c.Point, r3.Add(r3.Scale(p.X, d), r3.Scale(p.Y, n)))
	}
	return kernel.Sketch{Normal: s, Start: at(ends[1]), End: at(ends[0])}, nil
}

func (o *Orchestrator) record(sum *Summary, kind string, i int, n r3.Vec, res kernel.PartitionResult) {
	fields := logrus.Fields{"cut": kind, "index": i, "normal": n, "cells": res.CellsAfter}
	if res.Outcome == kernel.PartitionNoIntersection {
		sum.Skipped++
		o.log().WithFields(fields).Debug("cut missed the body")
		return
	}
	sum.Applied++
	o.log().WithFields(fields).Debug("cut applied")
}
