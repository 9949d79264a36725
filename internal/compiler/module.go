package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/dlaw/fixpoint/internal/ir"
)

// CompileModule parses a built CUE value into a declaration Module.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The value is the root of a declaration unit:
//
//	module: {name: "imu", package: "imupipe"}
//	formats: {Accel: {shift: -3, bits: 5}}
//	constants: {Gravity: {format: "Accel", value: "2.375"}}
//	pipelines: {fuse: {params: [...], steps: [...], result: "sum"}}
//
// Constant values are literal text, never CUE numbers: the literal parser
// owns exactness, and keeping floats out of declarations keeps them out
// of the identity hash.
//
// CompileModule is a parser; structural rules live in Validate. The
// returned SourceMap carries declaration positions for diagnostics.
func CompileModule(v cue.Value) (*ir.Module, *SourceMap, error) {
	if err := v.Err(); err != nil {
		return nil, nil, formatCUEError(err)
	}

	m := &ir.Module{}
	src := NewSourceMap()

	moduleVal := v.LookupPath(cue.ParsePath("module"))
	if !moduleVal.Exists() {
		return nil, nil, &CompileError{
			Field:   "module",
			Message: "module stanza is required",
			Pos:     v.Pos(),
		}
	}
	nameVal := moduleVal.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, nil, &CompileError{
			Field:   "module.name",
			Message: "module name is required",
			Pos:     moduleVal.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}
	m.Name = name

	// Package defaults to the module name.
	m.Package = name
	if pkgVal := moduleVal.LookupPath(cue.ParsePath("package")); pkgVal.Exists() {
		pkg, err := pkgVal.String()
		if err != nil {
			return nil, nil, formatCUEError(err)
		}
		m.Package = pkg
	}

	if m.Formats, err = parseFormats(v, src); err != nil {
		return nil, nil, err
	}
	if m.Constants, err = parseConstants(v, src); err != nil {
		return nil, nil, err
	}
	if m.Pipelines, err = parsePipelines(v, src); err != nil {
		return nil, nil, err
	}

	return m, src, nil
}

// parseFormats extracts format declarations in declaration order.
func parseFormats(v cue.Value, src *SourceMap) ([]ir.Format, error) {
	var formats []ir.Format

	formatsVal := v.LookupPath(cue.ParsePath("formats"))
	if !formatsVal.Exists() {
		return formats, nil
	}

	iter, err := formatsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		fname := iter.Label()
		fval := iter.Value()
		field := "formats." + fname
		src.Record(field, fval.Pos())

		f := ir.Format{Name: fname}

		shiftVal := fval.LookupPath(cue.ParsePath("shift"))
		if !shiftVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".shift",
				Message: "shift is required",
				Pos:     fval.Pos(),
			}
		}
		if f.Shift, err = shiftVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}

		bitsVal := fval.LookupPath(cue.ParsePath("bits"))
		if !bitsVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".bits",
				Message: "bits is required",
				Pos:     fval.Pos(),
			}
		}
		if f.Bits, err = bitsVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}

		if signedVal := fval.LookupPath(cue.ParsePath("signed")); signedVal.Exists() {
			if f.Signed, err = signedVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		formats = append(formats, f)
	}

	return formats, nil
}

// parseConstants extracts constant declarations in declaration order.
func parseConstants(v cue.Value, src *SourceMap) ([]ir.Constant, error) {
	var constants []ir.Constant

	constsVal := v.LookupPath(cue.ParsePath("constants"))
	if !constsVal.Exists() {
		return constants, nil
	}

	iter, err := constsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		cname := iter.Label()
		cval := iter.Value()
		field := "constants." + cname
		src.Record(field, cval.Pos())

		c := ir.Constant{Name: cname}

		formatVal := cval.LookupPath(cue.ParsePath("format"))
		if !formatVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".format",
				Message: "format is required",
				Pos:     cval.Pos(),
			}
		}
		if c.Format, err = formatVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		valueVal := cval.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".value",
				Message: "value is required",
				Pos:     cval.Pos(),
			}
		}
		if c.Value, err = valueVal.String(); err != nil {
			if valueVal.IncompleteKind()&cue.NumberKind != 0 {
				return nil, &CompileError{
					Field:   field + ".value",
					Message: "value must be quoted literal text, not a CUE number",
					Pos:     valueVal.Pos(),
				}
			}
			return nil, formatCUEError(err)
		}

		constants = append(constants, c)
	}

	return constants, nil
}

// parsePipelines extracts pipeline declarations in declaration order.
func parsePipelines(v cue.Value, src *SourceMap) ([]ir.Pipeline, error) {
	var pipelines []ir.Pipeline

	pipesVal := v.LookupPath(cue.ParsePath("pipelines"))
	if !pipesVal.Exists() {
		return pipelines, nil
	}

	iter, err := pipesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		pname := iter.Label()
		pval := iter.Value()
		field := "pipelines." + pname
		src.Record(field, pval.Pos())

		p := ir.Pipeline{Name: pname}

		if p.Params, err = parseParams(pval, field, src); err != nil {
			return nil, err
		}
		if p.Steps, err = parseSteps(pval, field, src); err != nil {
			return nil, err
		}

		resultVal := pval.LookupPath(cue.ParsePath("result"))
		if !resultVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".result",
				Message: "result is required",
				Pos:     pval.Pos(),
			}
		}
		if p.Result, err = resultVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		pipelines = append(pipelines, p)
	}

	return pipelines, nil
}

func parseParams(pval cue.Value, field string, src *SourceMap) ([]ir.Param, error) {
	var params []ir.Param

	paramsVal := pval.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return params, nil
	}

	iter, err := paramsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		pv := iter.Value()
		var p ir.Param

		nameVal := pv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".params",
				Message: "param name is required",
				Pos:     pv.Pos(),
			}
		}
		if p.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		formatVal := pv.LookupPath(cue.ParsePath("format"))
		if !formatVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.params.%s", field, p.Name),
				Message: "param format is required",
				Pos:     pv.Pos(),
			}
		}
		if p.Format, err = formatVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		src.Record(fmt.Sprintf("%s.params.%s", field, p.Name), pv.Pos())
		params = append(params, p)
	}

	return params, nil
}

func parseSteps(pval cue.Value, field string, src *SourceMap) ([]ir.Step, error) {
	var steps []ir.Step

	stepsVal := pval.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return steps, nil
	}

	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		sv := iter.Value()
		var s ir.Step

		nameVal := sv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".steps",
				Message: "step name is required",
				Pos:     sv.Pos(),
			}
		}
		if s.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		stepField := fmt.Sprintf("%s.steps.%s", field, s.Name)
		src.Record(stepField, sv.Pos())

		opVal := sv.LookupPath(cue.ParsePath("op"))
		if !opVal.Exists() {
			return nil, &CompileError{
				Field:   stepField,
				Message: "step op is required",
				Pos:     sv.Pos(),
			}
		}
		opStr, err := opVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		s.Op = ir.Op(opStr)

		if argsVal := sv.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			argIter, err := argsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for argIter.Next() {
				arg, err := argIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				s.Args = append(s.Args, arg)
			}
		}

		if amountVal := sv.LookupPath(cue.ParsePath("amount")); amountVal.Exists() {
			if s.Amount, err = amountVal.Int64(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if constVal := sv.LookupPath(cue.ParsePath("const")); constVal.Exists() {
			if s.Const, err = constVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if targetVal := sv.LookupPath(cue.ParsePath("target")); targetVal.Exists() {
			if s.Target, err = targetVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		steps = append(steps, s)
	}

	return steps, nil
}

// CompileError represents a declaration compile error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
