package main

import (
	"github.com/chazu/turtleshell/pkg/engine"
	"github.com/chazu/turtleshell/pkg/kernel/brep"
	"github.com/chazu/turtleshell/pkg/logging"
	"github.com/chazu/turtleshell/pkg/turtle"
	"github.com/sirupsen/logrus"
)

// App runs turtle-shell jobs against the in-memory B-rep kernel. It is what
// the CLI commands call into.
type App struct {
	engine *engine.Engine
	kernel *brep.Kernel
	log    *logrus.Entry
}

// MessageData is a YAML-serializable script error or warning.
type MessageData struct {
	Line    int    `yaml:"line,omitempty"`
	Message string `yaml:"message"`
}

// RunResult is the full result printed by the CLI.
type RunResult struct {
	Body       string         `yaml:"body,omitempty"`
	Report     *turtle.Report `yaml:"report,omitempty"`
	Stats      *brep.Stats    `yaml:"stats,omitempty"`
	Validation string         `yaml:"validation,omitempty"`
	Errors     []MessageData  `yaml:"errors,omitempty"`
	Warnings   []MessageData  `yaml:"warnings,omitempty"`
}

// OK reports whether the run finished and the carved body is valid.
func (r RunResult) OK() bool {
	return len(r.Errors) == 0 && r.Validation == ""
}

func (r *RunResult) fail(err error) RunResult {
	r.Errors = append(r.Errors, MessageData{Message: err.Error()})
	return *r
}

// NewApp creates an App with a fresh engine and kernel. A nil log
// discards output.
func NewApp(log *logrus.Entry) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		engine: engine.NewEngine(),
		kernel: brep.New(),
		log:    log,
	}
}

// Evaluate runs a job script. A script that declares no body is run
// against turtle.DefaultBody.
func (a *App) Evaluate(source string) RunResult {
	var result RunResult

	p, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.log.WithError(err).Error("script evaluation failed")
		return result.fail(err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, MessageData{Line: e.Line, Message: e.Message})
		}
		return result
	}
	for _, w := range p.Warnings {
		a.log.Warn(w.String())
		result.Warnings = append(result.Warnings, MessageData{Message: w.String()})
	}
	if p.Job == nil {
		return result.fail(errNoJob)
	}

	spec := turtle.DefaultBody()
	if p.Body != nil {
		spec = *p.Body
	}
	run := a.Run(*p.Job, spec)
	run.Warnings = append(result.Warnings, run.Warnings...)
	return run
}

// Run builds the body, carves it and discards it.
func (a *App) Run(job turtle.Job, spec turtle.BodySpec) RunResult {
	result := RunResult{Body: spec.String()}

	b, err := spec.Build(a.kernel)
	if err != nil {
		return result.fail(err)
	}
	defer a.kernel.Discard(b)

	rep, err := turtle.Run(a.kernel, b, job, a.log)
	if err != nil {
		return result.fail(err)
	}
	result.Report = &rep
	if !rep.Valid() {
		result.Validation = rep.Validation.Error()
	}

	st, err := a.kernel.Stats(b)
	if err != nil {
		return result.fail(err)
	}
	result.Stats = &st
	return result
}
