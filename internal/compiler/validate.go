package compiler

import (
	"fmt"
	gotoken "go/token"
	"regexp"
	"strings"

	"github.com/dlaw/fixpoint/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Module-level errors (E101-E109)
	ErrModuleName      = "E101" // missing or invalid module name
	ErrNoFormats       = "E102" // at least one format required
	ErrBadIdent        = "E103" // name is not a usable identifier
	ErrDuplicateName   = "E104" // duplicate declaration name
	ErrUnknownFormat   = "E105" // reference to undeclared format
	ErrBadFormatBounds = "E106" // negative bits or other impossible bounds
	ErrBadPackage      = "E107" // invalid Go package name

	// Pipeline errors (E110-E119)
	ErrUnknownOp       = "E110" // op not in the operation set
	ErrBadArity        = "E111" // wrong number of args for op
	ErrUnknownRef      = "E112" // arg does not name a param or earlier step
	ErrBadAmount       = "E113" // missing or non-positive shift/widen amount
	ErrMissingAttr     = "E114" // op needs const/target and none given
	ErrStrayAttr       = "E115" // amount/const/target set on an op that takes none
	ErrBadResult       = "E116" // pipeline result does not name a step or param
	ErrUnknownConstant = "E117" // mul_const names an undeclared constant
	ErrNoParams        = "E118" // pipeline has no params
)

var (
	// Declared type and constant names become exported Go identifiers.
	// The Fix prefix is reserved for derived intermediate types.
	declNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

	// Params and steps are lower-case identifiers; pipeline names too,
	// capitalized into function names at emission.
	localNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	packagePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// ValidationError represents a declaration schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Pos     string `json:"pos,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// arity describes an op's argument count: exact, or a minimum when
// variadic is set.
type arity struct {
	n        int
	variadic bool
}

var opArity = map[ir.Op]arity{
	ir.OpAdd: {n: 2}, ir.OpSub: {n: 2}, ir.OpMul: {n: 2},
	ir.OpDiv: {n: 2},
	ir.OpEq:  {n: 2}, ir.OpNe: {n: 2},
	ir.OpLt: {n: 2}, ir.OpLe: {n: 2}, ir.OpGt: {n: 2}, ir.OpGe: {n: 2},
	ir.OpMulConst: {n: 1}, ir.OpDivExact: {n: 1},
	ir.OpShl: {n: 1}, ir.OpShr: {n: 1},
	ir.OpRawShl: {n: 1}, ir.OpRawShr: {n: 1},
	ir.OpNeg: {n: 1}, ir.OpWiden: {n: 1},
	ir.OpToSigned: {n: 1}, ir.OpToUnsigned: {n: 1},
	ir.OpSum: {n: 2, variadic: true},
}

// opsWithAmount take a shift distance or widen target in Amount.
var opsWithAmount = map[ir.Op]bool{
	ir.OpShl: true, ir.OpShr: true,
	ir.OpRawShl: true, ir.OpRawShr: true,
	ir.OpWiden: true,
}

// Validate checks a compiled module against the declaration schema.
// Returns all errors found (does not fail-fast). src may be nil; when
// given, errors carry source positions.
//
// Validate owns structure: names, references, arities, attribute
// placement. Whether the referenced arithmetic is derivable is the
// planner's job.
func Validate(m *ir.Module, src *SourceMap) []ValidationError {
	var errs []ValidationError
	add := func(field, code, msg string) {
		errs = append(errs, ValidationError{
			Field: field, Message: msg, Code: code, Pos: src.Lookup(field),
		})
	}

	if strings.TrimSpace(m.Name) == "" {
		add("module.name", ErrModuleName, "module name is required and must be non-empty")
	}
	if !packagePattern.MatchString(m.Package) {
		add("module.package", ErrBadPackage,
			fmt.Sprintf("package %q is not a valid Go package name", m.Package))
	}

	if len(m.Formats) == 0 {
		add("formats", ErrNoFormats, "at least one format is required")
	}

	formatNames := make(map[string]bool)
	for _, f := range m.Formats {
		field := "formats." + f.Name
		if !declNamePattern.MatchString(f.Name) {
			add(field, ErrBadIdent,
				fmt.Sprintf("format name %q must be an exported identifier", f.Name))
		}
		if strings.HasPrefix(f.Name, "Fix") {
			add(field, ErrBadIdent,
				fmt.Sprintf("format name %q collides with the reserved Fix prefix", f.Name))
		}
		if formatNames[f.Name] {
			add(field, ErrDuplicateName,
				fmt.Sprintf("duplicate format name: %q", f.Name))
		}
		formatNames[f.Name] = true

		if f.Bits < 0 {
			add(field, ErrBadFormatBounds,
				fmt.Sprintf("bits must be non-negative, got %d", f.Bits))
		}
	}

	constNames := make(map[string]bool)
	for _, c := range m.Constants {
		field := "constants." + c.Name
		if !declNamePattern.MatchString(c.Name) {
			add(field, ErrBadIdent,
				fmt.Sprintf("constant name %q must be an exported identifier", c.Name))
		}
		if strings.HasPrefix(c.Name, "Fix") {
			add(field, ErrBadIdent,
				fmt.Sprintf("constant name %q collides with the reserved Fix prefix", c.Name))
		}
		if constNames[c.Name] {
			add(field, ErrDuplicateName,
				fmt.Sprintf("duplicate constant name: %q", c.Name))
		}
		constNames[c.Name] = true
		if formatNames[c.Name] {
			add(field, ErrDuplicateName,
				fmt.Sprintf("constant %q shadows a format of the same name", c.Name))
		}

		if !formatNames[c.Format] {
			add(field, ErrUnknownFormat,
				fmt.Sprintf("constant %q references undeclared format %q", c.Name, c.Format))
		}
		if strings.TrimSpace(c.Value) == "" {
			add(field, ErrMissingAttr,
				fmt.Sprintf("constant %q has an empty value", c.Name))
		}
	}

	pipeNames := make(map[string]bool)
	for i := range m.Pipelines {
		p := &m.Pipelines[i]
		field := "pipelines." + p.Name

		if !localNamePattern.MatchString(p.Name) || gotoken.IsKeyword(p.Name) {
			add(field, ErrBadIdent,
				fmt.Sprintf("pipeline name %q must be a lower-case identifier", p.Name))
		}
		if pipeNames[p.Name] {
			add(field, ErrDuplicateName,
				fmt.Sprintf("duplicate pipeline name: %q", p.Name))
		}
		pipeNames[p.Name] = true

		errs = append(errs, validatePipeline(p, field, formatNames, constNames, src)...)
	}

	return errs
}

// validatePipeline checks one pipeline's params, steps and result.
func validatePipeline(p *ir.Pipeline, field string, formats, consts map[string]bool, src *SourceMap) []ValidationError {
	var errs []ValidationError
	add := func(field, code, msg string) {
		errs = append(errs, ValidationError{
			Field: field, Message: msg, Code: code, Pos: src.Lookup(field),
		})
	}

	if len(p.Params) == 0 {
		add(field+".params", ErrNoParams, "pipeline needs at least one param")
	}

	// Local names: params first, then each step in order. Step args may
	// also reference declared constants, checked separately below.
	seen := make(map[string]bool)
	for _, prm := range p.Params {
		pfield := fmt.Sprintf("%s.params.%s", field, prm.Name)
		if !localNamePattern.MatchString(prm.Name) || gotoken.IsKeyword(prm.Name) {
			add(pfield, ErrBadIdent,
				fmt.Sprintf("param name %q must be a lower-case identifier", prm.Name))
		}
		if seen[prm.Name] {
			add(pfield, ErrDuplicateName,
				fmt.Sprintf("duplicate param name: %q", prm.Name))
		}
		seen[prm.Name] = true

		if !formats[prm.Format] {
			add(pfield, ErrUnknownFormat,
				fmt.Sprintf("param %q references undeclared format %q", prm.Name, prm.Format))
		}
	}

	for _, s := range p.Steps {
		sfield := fmt.Sprintf("%s.steps.%s", field, s.Name)

		if !localNamePattern.MatchString(s.Name) || gotoken.IsKeyword(s.Name) {
			add(sfield, ErrBadIdent,
				fmt.Sprintf("step name %q must be a lower-case identifier", s.Name))
		}
		if seen[s.Name] {
			add(sfield, ErrDuplicateName,
				fmt.Sprintf("step %q redeclares a visible name", s.Name))
		}

		if !ir.ValidOps[s.Op] {
			add(sfield, ErrUnknownOp, fmt.Sprintf("unknown op %q", s.Op))
			seen[s.Name] = true
			continue
		}

		ar := opArity[s.Op]
		switch {
		case ar.variadic && len(s.Args) < ar.n:
			add(sfield, ErrBadArity,
				fmt.Sprintf("%s needs at least %d args, got %d", s.Op, ar.n, len(s.Args)))
		case !ar.variadic && len(s.Args) != ar.n:
			add(sfield, ErrBadArity,
				fmt.Sprintf("%s takes %d args, got %d", s.Op, ar.n, len(s.Args)))
		}

		// Steps reference params, earlier steps and declared constants,
		// so the graph is acyclic by construction. Constants are
		// capitalized and locals are not; the scopes cannot collide.
		for _, arg := range s.Args {
			if !seen[arg] && !consts[arg] {
				add(sfield, ErrUnknownRef,
					fmt.Sprintf("%q does not name a param, earlier step, or constant", arg))
			}
		}

		validateStepAttrs(s, sfield, consts, formats, add)
		seen[s.Name] = true
	}

	switch {
	case p.Result == "":
		add(field+".result", ErrBadResult, "result is required")
	case !seen[p.Result]:
		add(field+".result", ErrBadResult,
			fmt.Sprintf("result %q does not name a param or step", p.Result))
	}

	return errs
}

// validateStepAttrs checks amount/const/target placement per op.
func validateStepAttrs(s ir.Step, sfield string, consts, formats map[string]bool, add func(field, code, msg string)) {
	if opsWithAmount[s.Op] {
		if s.Amount < 1 {
			add(sfield, ErrBadAmount,
				fmt.Sprintf("%s needs a positive amount, got %d", s.Op, s.Amount))
		}
	} else if s.Amount != 0 {
		add(sfield, ErrStrayAttr, fmt.Sprintf("%s does not take an amount", s.Op))
	}

	switch s.Op {
	case ir.OpMulConst:
		if s.Const == "" {
			add(sfield, ErrMissingAttr, "mul_const needs const naming a declared constant")
		} else if !consts[s.Const] {
			add(sfield, ErrUnknownConstant,
				fmt.Sprintf("mul_const references undeclared constant %q", s.Const))
		}
	case ir.OpDivExact:
		if s.Const == "" {
			add(sfield, ErrMissingAttr, "div_exact needs const holding the power-of-two divisor literal")
		}
	default:
		if s.Const != "" {
			add(sfield, ErrStrayAttr, fmt.Sprintf("%s does not take a const", s.Op))
		}
	}

	if s.Op == ir.OpDiv {
		if s.Target == "" {
			add(sfield, ErrMissingAttr, "div needs target naming the quotient format")
		} else if !formats[s.Target] {
			add(sfield, ErrUnknownFormat,
				fmt.Sprintf("div references undeclared target format %q", s.Target))
		}
	} else if s.Target != "" {
		add(sfield, ErrStrayAttr, fmt.Sprintf("%s does not take a target", s.Op))
	}
}
