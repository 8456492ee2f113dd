package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/turtleshell/pkg/geom"
	"github.com/chazu/turtleshell/pkg/turtle"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites job script source before it reaches zygomys.
// It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: turtle-shell -> turtle_shell
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpBody wraps a body description returned by hollow-sphere and box.
type sexpBody struct {
	spec turtle.BodySpec
}

func (b *sexpBody) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(body %q)", b.spec.String())
}
func (b *sexpBody) Type() *zygo.RegisteredType { return nil }

// sexpOffsets wraps the per-axis offset lists built by offsets.
type sexpOffsets struct {
	byAxis map[string][]float64
}

func (o *sexpOffsets) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(offsets %d axes)", len(o.byAxis))
}
func (o *sexpOffsets) Type() *zygo.RegisteredType { return nil }

type sexpJob struct {
	job turtle.Job
}

func (j *sexpJob) SexpString(ps *zygo.PrintState) string {
	if s := j.job.Strategy(); s != nil {
		return fmt.Sprintf("(turtle-shell %s)", s)
	}
	return "(turtle-shell)"
}
func (j *sexpJob) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Trailing keyword with no value.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// unknown returns the keywords in a that are not in known, sorted.
func (a kwArgs) unknown(known ...string) []string {
	names := lo.Without(lo.Keys(a.kw), known...)
	sort.Strings(names)
	return names
}

// warnExtra records a warning for every unknown keyword and stray
// positional argument.
func warnExtra(p *Program, builtin string, a kwArgs, known ...string) {
	for _, name := range a.unknown(known...) {
		p.warn(builtin, "ignoring unknown keyword :%s", name)
	}
	if n := len(a.positional); n > 0 {
		p.warn(builtin, "ignoring %d positional argument(s)", n)
	}
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

func toAxis(s zygo.Sexp) (geom.Axis, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected axis keyword (:x, :y, :z): %w", err)
	}
	return geom.ParseAxis(name)
}

func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toBody(s zygo.Sexp) (turtle.BodySpec, error) {
	if b, ok := s.(*sexpBody); ok {
		return b.spec, nil
	}
	return turtle.BodySpec{}, fmt.Errorf("expected hollow-sphere or box, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, err := toFloat64(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func toVec3s(s zygo.Sexp) ([]r3.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]r3.Vec, 0, len(items))
	for i, item := range items {
		v, err := toVec3(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// kwFloat stores the keyword's number in dst when present.
func kwFloat(a kwArgs, name string, dst *float64) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

// kwVec3 stores the keyword's vector in dst when present.
func kwVec3(a kwArgs, name string, dst *r3.Vec) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = vec
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the job script builtins into a zygomys
// environment. The builtins record what the script declares into p.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, p *Program) {

	// -----------------------------------------------------------------------
	// (vec3 x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, label := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", label, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (hollow-sphere :inner 1 :outer 2 :subdivisions 1 :center (vec3 0 0 0)
	//                :sampled true :clip (list (vec3 3 3 3)) :rotate (vec3 0 0 30))
	// -----------------------------------------------------------------------
	env.AddFunction("hollow_sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		spec := turtle.BodySpec{Shape: turtle.ShapeHollowSphere}

		if err := kwVec3(pa, "center", &spec.Center); err != nil {
			return zygo.SexpNull, fmt.Errorf("hollow-sphere: %w", err)
		}
		if err := kwFloat(pa, "inner", &spec.Inner); err != nil {
			return zygo.SexpNull, fmt.Errorf("hollow-sphere: %w", err)
		}
		if err := kwFloat(pa, "outer", &spec.Outer); err != nil {
			return zygo.SexpNull, fmt.Errorf("hollow-sphere: %w", err)
		}
		if v, ok := pa.kw["subdivisions"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("hollow-sphere: subdivisions: %w", err)
			}
			spec.Subdivisions = n
		}
		if v, ok := pa.kw["sampled"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("hollow-sphere: sampled: %w", err)
			}
			spec.Sampled = b
		}
		if v, ok := pa.kw["clip"]; ok {
			clip, err := toVec3s(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("hollow-sphere: clip: %w", err)
			}
			spec.Clip = clip
		}
		if err := kwVec3(pa, "rotate", &spec.Rotation); err != nil {
			return zygo.SexpNull, fmt.Errorf("hollow-sphere: %w", err)
		}
		warnExtra(p, "hollow-sphere", pa, "center", "inner", "outer", "subdivisions", "sampled", "clip", "rotate")
		if err := spec.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("hollow-sphere: %w", err)
		}
		return &sexpBody{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 2 2 2) :center (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		spec := turtle.BodySpec{Shape: turtle.ShapeBox}

		if err := kwVec3(pa, "center", &spec.Center); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		if err := kwVec3(pa, "size", &spec.Size); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		warnExtra(p, "box", pa, "center", "size")
		if err := spec.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpBody{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (offsets :x (list 0.5 -0.5) :z (list 1))
	// -----------------------------------------------------------------------
	env.AddFunction("offsets", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("offsets takes only keyword arguments, got %d positional", len(pa.positional))
		}
		out := &sexpOffsets{byAxis: make(map[string][]float64, len(pa.kw))}
		for axis, v := range pa.kw {
			ds, err := toFloats(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("offsets: %s: %w", axis, err)
			}
			out.byAxis[axis] = ds
		}
		return out, nil
	})

	// -----------------------------------------------------------------------
	// (turtle-shell :center (vec3 0 0 0) :x-axis (vec3 1 0 0) :z-axis (vec3 0 0 1)
	//               :polar 45 :azimuthal 45    ; or :plane-angle 45
	//               :carve-angle 45 :big-number 100 :cut :sketch
	//               :carve (list :x :y :z) :partitions (offsets ...)
	//               :align-tolerance 0.01 :normal-tolerance 0.001
	//               :body (hollow-sphere ...))
	// -----------------------------------------------------------------------
	env.AddFunction("turtle_shell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if p.Job != nil {
			return zygo.SexpNull, fmt.Errorf("turtle-shell may only be declared once")
		}
		pa := parseArgs(args)
		job, err := jobFromArgs(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("turtle-shell: %w", err)
		}
		if v, ok := pa.kw["body"]; ok {
			spec, err := toBody(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("turtle-shell: body: %w", err)
			}
			p.Body = &spec
		}
		warnExtra(p, "turtle-shell", pa, jobKeywords...)
		p.Job = &job
		return &sexpJob{job: job}, nil
	})
}

var jobKeywords = []string{
	"center", "x-axis", "z-axis", "polar", "azimuthal", "plane-angle",
	"carve-angle", "big-number", "cut", "carve", "partitions",
	"align-tolerance", "normal-tolerance", "body",
}

// jobFromArgs converts turtle-shell arguments to a Job. The frame axes
// default to world x and z; range checks are left to Job.Validate.
func jobFromArgs(pa kwArgs) (turtle.Job, error) {
	job := turtle.Job{
		XAxis: r3.Vec{X: 1},
		ZAxis: r3.Vec{Z: 1},
	}
	if err := kwVec3(pa, "center", &job.Center); err != nil {
		return job, err
	}
	if err := kwVec3(pa, "x-axis", &job.XAxis); err != nil {
		return job, err
	}
	if err := kwVec3(pa, "z-axis", &job.ZAxis); err != nil {
		return job, err
	}

	_, hasPolar := pa.kw["polar"]
	_, hasAzimuth := pa.kw["azimuthal"]
	if hasPolar || hasAzimuth {
		job.Polar = &turtle.PolarAngles{}
		if err := kwFloat(pa, "polar", &job.Polar.PolarDeg); err != nil {
			return job, err
		}
		if err := kwFloat(pa, "azimuthal", &job.Polar.AzimuthalDeg); err != nil {
			return job, err
		}
	}
	if _, ok := pa.kw["plane-angle"]; ok {
		job.Legacy = &turtle.LegacyAngle{}
		if err := kwFloat(pa, "plane-angle", &job.Legacy.PlaneDeg); err != nil {
			return job, err
		}
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"carve-angle", &job.CarveAngleDeg},
		{"big-number", &job.BigNumber},
		{"align-tolerance", &job.AlignTolerance},
		{"normal-tolerance", &job.NormalTolerance},
	} {
		if err := kwFloat(pa, f.name, f.dst); err != nil {
			return job, err
		}
	}

	if v, ok := pa.kw["cut"]; ok {
		mode, err := toKeywordString(v)
		if err != nil {
			return job, fmt.Errorf("cut: %w", err)
		}
		job.CutMode = mode
	}
	if v, ok := pa.kw["carve"]; ok {
		items, err := sexpListToSlice(v)
		if err != nil {
			return job, fmt.Errorf("carve: %w", err)
		}
		for _, item := range items {
			a, err := toAxis(item)
			if err != nil {
				return job, fmt.Errorf("carve: %w", err)
			}
			job.Axes = append(job.Axes, a)
		}
	}
	if v, ok := pa.kw["partitions"]; ok {
		o, ok := v.(*sexpOffsets)
		if !ok {
			return job, fmt.Errorf("partitions: expected (offsets ...), got %T (%s)", v, v.SexpString(nil))
		}
		job.Partitions = o.byAxis
	}
	return job, nil
}
