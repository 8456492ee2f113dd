// Package config reads turtle-shell job files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/chazu/turtleshell/pkg/turtle"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Default angles used when a job file names no strategy.
const (
	DefaultPolarDeg     = 45
	DefaultAzimuthalDeg = 45
)

// Vec3 is a vector written as a three element YAML sequence.
type Vec3 [3]float64

// R3 converts v to an r3.Vec.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// Frame places the turtle shell. Omitted axes default to world x and z.
type Frame struct {
	Center Vec3  `yaml:"center,flow"`
	XAxis  *Vec3 `yaml:"xAxis,flow,omitempty"`
	ZAxis  *Vec3 `yaml:"zAxis,flow,omitempty"`
}

// Polar selects the polar/azimuthal plane layout.
type Polar struct {
	Polar     float64 `yaml:"polar"`
	Azimuthal float64 `yaml:"azimuthal"`
}

// Legacy selects the single-angle plane layout.
type Legacy struct {
	PlaneAngle float64 `yaml:"planeAngle"`
}

// Body describes the fixture body.
type Body struct {
	Shape        string  `yaml:"shape,omitempty"`
	Center       Vec3    `yaml:"center,flow"`
	Inner        float64 `yaml:"inner,omitempty"`
	Outer        float64 `yaml:"outer,omitempty"`
	Subdivisions int     `yaml:"subdivisions,omitempty"`
	Sampled      bool    `yaml:"sampled,omitempty"`
	Clip         []Vec3  `yaml:"clip,flow,omitempty"`
	Rotation     Vec3    `yaml:"rotation,flow,omitempty"`
	Size         Vec3    `yaml:"size,flow,omitempty"`
}

// Config is one job file.
type Config struct {
	LogLevel string `yaml:"logLevel,omitempty"`
	Body     *Body  `yaml:"body,omitempty"`
	Frame    Frame  `yaml:"frame"`

	Polar  *Polar  `yaml:"polar,omitempty"`
	Legacy *Legacy `yaml:"legacy,omitempty"`

	CarveAngle      float64              `yaml:"carveAngle,omitempty"`
	BigNumber       float64              `yaml:"bigNumber,omitempty"`
	Cut             string               `yaml:"cut,omitempty"`
	Carve           []geom.Axis          `yaml:"carve,flow,omitempty"`
	Partitions      map[string][]float64 `yaml:"partitions,omitempty"`
	AlignTolerance  float64              `yaml:"alignTolerance,omitempty"`
	NormalTolerance float64              `yaml:"normalTolerance,omitempty"`
}

// Flags holds CLI flag values that override config file settings. Zero
// values leave the file's setting alone.
type Flags struct {
	Polar      float64
	Azimuthal  float64
	PlaneAngle float64
	CarveAngle float64
	BigNumber  float64
	Axes       string
	Cut        string
	LogLevel   string
}

// Load reads a YAML job file. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML job document. An empty document is a zero Config.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve applies CLI overrides and fills in the default strategy.
// A polar flag replaces a legacy file setting and the other way round.
func (c *Config) Resolve(flags Flags) error {
	if flags.Polar > 0 || flags.Azimuthal > 0 {
		if c.Polar == nil {
			c.Polar = &Polar{Polar: DefaultPolarDeg, Azimuthal: DefaultAzimuthalDeg}
		}
		if flags.Polar > 0 {
			c.Polar.Polar = flags.Polar
		}
		if flags.Azimuthal > 0 {
			c.Polar.Azimuthal = flags.Azimuthal
		}
		if flags.PlaneAngle == 0 {
			c.Legacy = nil
		}
	}
	if flags.PlaneAngle > 0 {
		c.Legacy = &Legacy{PlaneAngle: flags.PlaneAngle}
		if flags.Polar == 0 && flags.Azimuthal == 0 {
			c.Polar = nil
		}
	}
	if flags.CarveAngle > 0 {
		c.CarveAngle = flags.CarveAngle
	}
	if flags.BigNumber > 0 {
		c.BigNumber = flags.BigNumber
	}
	if flags.Cut != "" {
		c.Cut = flags.Cut
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Axes != "" {
		axes, err := ParseAxes(flags.Axes)
		if err != nil {
			return fmt.Errorf("config: axes: %w", err)
		}
		c.Carve = axes
	}

	if c.Polar == nil && c.Legacy == nil {
		c.Polar = &Polar{Polar: DefaultPolarDeg, Azimuthal: DefaultAzimuthalDeg}
	}
	return nil
}

// ParseAxes reads a carve order such as "xyz", "z,x" or "y z".
func ParseAxes(s string) ([]geom.Axis, error) {
	var out []geom.Axis
	for _, r := range s {
		if r == ',' || r == ' ' {
			continue
		}
		a, err := geom.ParseAxis(string(r))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty carve order %q", s)
	}
	return out, nil
}

// Job converts the config to job parameters.
func (c Config) Job() turtle.Job {
	job := turtle.Job{
		Center:          c.Frame.Center.R3(),
		XAxis:           r3.Vec{X: 1},
		ZAxis:           r3.Vec{Z: 1},
		CarveAngleDeg:   c.CarveAngle,
		BigNumber:       c.BigNumber,
		CutMode:         strings.ToLower(c.Cut),
		Axes:            c.Carve,
		AlignTolerance:  c.AlignTolerance,
		NormalTolerance: c.NormalTolerance,
	}
	if c.Frame.XAxis != nil {
		job.XAxis = c.Frame.XAxis.R3()
	}
	if c.Frame.ZAxis != nil {
		job.ZAxis = c.Frame.ZAxis.R3()
	}
	if c.Polar != nil {
		job.Polar = &turtle.PolarAngles{PolarDeg: c.Polar.Polar, AzimuthalDeg: c.Polar.Azimuthal}
	}
	if c.Legacy != nil {
		job.Legacy = &turtle.LegacyAngle{PlaneDeg: c.Legacy.PlaneAngle}
	}
	if len(c.Partitions) > 0 {
		job.Partitions = lo.Assign(c.Partitions)
	}
	return job
}

// BodySpec returns the fixture body, turtle.DefaultBody when none is
// configured.
func (c Config) BodySpec() turtle.BodySpec {
	if c.Body == nil {
		return turtle.DefaultBody()
	}
	b := c.Body
	return turtle.BodySpec{
		Shape:        b.Shape,
		Center:       b.Center.R3(),
		Inner:        b.Inner,
		Outer:        b.Outer,
		Subdivisions: b.Subdivisions,
		Sampled:      b.Sampled,
		Clip:         lo.Map(b.Clip, func(v Vec3, _ int) r3.Vec { return v.R3() }),
		Rotation:     b.Rotation.R3(),
		Size:         b.Size.R3(),
	}
}
