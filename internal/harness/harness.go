package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlaw/fixpoint/fixed"
	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/planner"
)

// Harness executes conformance scenarios against the reference
// evaluator. It never touches generated code: the trace it produces is
// the semantics generated code is measured against.
type Harness struct {
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario compiles its own spec files in a fresh staging
// directory, so scenarios are isolated from each other and from the
// working tree.
//
// Execution flow:
//  1. Stage the scenario's CUE files into a temporary unit directory
//  2. Load, compile and validate the unit
//  3. Derive the plan
//  4. Rejection scenario: match expected diagnostics
//  5. Evaluation scenario: run the pipeline and check the expect clause
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		// Findings flow through Result; the inner log stays quiet.
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h.run(scenario)
}

func (h *Harness) run(scenario *Scenario) (*Result, error) {
	dir, err := stageSpecs(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("stage specs: %w", err)
	}
	defer os.RemoveAll(dir)

	v, count, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load specs: %w", err)
	}
	h.logger.Info("specs loaded", "scenario", scenario.Name, "files", count)

	m, src, err := compiler.CompileModule(v)
	if err != nil {
		return nil, fmt.Errorf("compile specs: %w", err)
	}
	if verrs := compiler.Validate(m, src); len(verrs) > 0 {
		// Structural errors mean the scenario's specs are broken.
		// Rejection scenarios target plan diagnostics, never these.
		return nil, fmt.Errorf("invalid specs: %s", verrs[0].Error())
	}

	plan, diags := planner.BuildPlan(m, src)

	result := NewResult()
	result.Diagnostics = diags

	if len(scenario.Diagnostics) > 0 {
		h.checkDiagnostics(scenario, diags, result)
		return result, nil
	}

	if plan == nil {
		for _, d := range diags {
			result.AddError(fmt.Sprintf("unexpected diagnostic: %s", d.Error()))
		}
		return result, nil
	}

	h.evaluate(scenario, plan, result)
	return result, nil
}

// stageSpecs copies the scenario's spec files into a fresh directory
// forming one declaration unit. The caller removes the directory.
func stageSpecs(specs []string) (string, error) {
	dir, err := os.MkdirTemp("", "fixpoint-harness-*")
	if err != nil {
		return "", err
	}
	for _, spec := range specs {
		data, err := os.ReadFile(spec)
		if err != nil {
			os.RemoveAll(dir)
			return "", err
		}
		dst := filepath.Join(dir, filepath.Base(spec))
		if _, err := os.Stat(dst); err == nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("duplicate spec file name %q", filepath.Base(spec))
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// checkDiagnostics validates a rejection scenario: every expected
// diagnostic must match at least one actual diagnostic. Matching is a
// subset check; extra actual diagnostics are allowed.
func (h *Harness) checkDiagnostics(scenario *Scenario, diags []planner.Diagnostic, result *Result) {
	if len(diags) == 0 {
		result.AddError("expected diagnostics, but the unit planned cleanly")
		return
	}
	for _, want := range scenario.Diagnostics {
		if !matchesAny(want, diags) {
			result.AddError(fmt.Sprintf("no diagnostic matched kind=%s path=%q contains=%q; got %s",
				want.Kind, want.Path, want.Contains, renderDiagnostics(diags)))
		}
	}
}

func matchesAny(want ExpectDiagnostic, diags []planner.Diagnostic) bool {
	for i := range diags {
		if matchDiagnostic(want, &diags[i]) {
			return true
		}
	}
	return false
}

// matchDiagnostic compares one expectation against one diagnostic.
// Kind matching is case-insensitive so scenarios can use the lowercase
// spelling from the YAML format.
func matchDiagnostic(want ExpectDiagnostic, d *planner.Diagnostic) bool {
	if !strings.EqualFold(want.Kind, string(d.Kind)) {
		return false
	}
	if want.Path != "" && want.Path != d.Path {
		return false
	}
	if want.Contains != "" {
		msg := d.Message
		if d.Demand != nil {
			msg = fmt.Sprintf("%s (computed %s)", msg, d.Demand)
		}
		if !strings.Contains(msg, want.Contains) {
			return false
		}
	}
	return true
}

func renderDiagnostics(diags []planner.Diagnostic) string {
	parts := make([]string, len(diags))
	for i := range diags {
		parts[i] = diags[i].Error()
	}
	return strings.Join(parts, "; ")
}

// evaluate runs an evaluation scenario through the reference evaluator
// and checks the expect clause against the trace.
func (h *Harness) evaluate(scenario *Scenario, plan *planner.Plan, result *Result) {
	pp, ok := plan.Pipeline(scenario.Pipeline)
	if !ok {
		result.AddError(fmt.Sprintf("unknown pipeline %q", scenario.Pipeline))
		return
	}

	inputs, err := planner.ParseInputs(pp, scenario.Inputs)
	if err == nil {
		var trace *planner.Trace
		trace, err = planner.EvaluatePipeline(plan, scenario.Pipeline, inputs)
		result.Trace = trace
	}

	if scenario.Expect.Error != "" {
		h.checkExpectedError(scenario, err, result)
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("evaluation failed: %v", err))
		return
	}

	h.checkTrace(scenario, result.Trace, result)
}

// checkExpectedError validates a scenario whose expect clause names an
// evaluator error code.
func (h *Harness) checkExpectedError(scenario *Scenario, err error, result *Result) {
	if err == nil {
		result.AddError(fmt.Sprintf("expected error %s, but evaluation succeeded", scenario.Expect.Error))
		return
	}
	var ee *planner.EvalError
	if !errors.As(err, &ee) {
		result.AddError(fmt.Sprintf("expected error %s, got unclassified error: %v", scenario.Expect.Error, err))
		return
	}
	if !strings.EqualFold(scenario.Expect.Error, string(ee.Code)) {
		result.AddError(fmt.Sprintf("expected error %s, got %s: %v", scenario.Expect.Error, ee.Code, err))
	}
}

// checkTrace compares the expect clause against the evaluation trace.
func (h *Harness) checkTrace(scenario *Scenario, trace *planner.Trace, result *Result) {
	expect := scenario.Expect

	res, ok := resultEvent(trace)
	if !ok {
		result.AddError("trace has no result event")
		return
	}

	if expect.Result != "" {
		if res.Raw == nil {
			result.AddError("result is boolean; use the bool field")
		} else if got := fixed.FormatRawBig(res.Raw, res.Desc.Shift); got != expect.Result {
			result.AddError(fmt.Sprintf("result: expected %s, got %s", expect.Result, got))
		}
	}
	if expect.Raw != "" {
		if res.Raw == nil {
			result.AddError("result is boolean; use the bool field")
		} else if got := res.Raw.String(); got != expect.Raw {
			result.AddError(fmt.Sprintf("result raw: expected %s, got %s", expect.Raw, got))
		}
	}
	if expect.Format != "" {
		if got := res.Desc.String(); got != expect.Format {
			result.AddError(fmt.Sprintf("result format: expected %s, got %s", expect.Format, got))
		}
	}
	if expect.Bool != nil {
		switch {
		case res.Bool == nil:
			result.AddError("result is numeric; use the result or raw field")
		case *res.Bool != *expect.Bool:
			result.AddError(fmt.Sprintf("result bool: expected %t, got %t", *expect.Bool, *res.Bool))
		}
	}

	for _, step := range expect.Steps {
		h.checkStep(step, trace, result)
	}
}

func (h *Harness) checkStep(step ExpectStep, trace *planner.Trace, result *Result) {
	ev, ok := stepEvent(trace, step.Name)
	if !ok {
		result.AddError(fmt.Sprintf("step %q: no trace event", step.Name))
		return
	}
	if step.Raw != "" {
		if ev.Raw == nil {
			result.AddError(fmt.Sprintf("step %q is boolean, has no raw", step.Name))
		} else if got := ev.Raw.String(); got != step.Raw {
			result.AddError(fmt.Sprintf("step %q raw: expected %s, got %s", step.Name, step.Raw, got))
		}
	}
	if step.Format != "" {
		if got := ev.Desc.String(); got != step.Format {
			result.AddError(fmt.Sprintf("step %q format: expected %s, got %s", step.Name, step.Format, got))
		}
	}
}

// resultEvent returns the trace's result event. The evaluator emits it
// last, but scanning keeps this robust to trailing additions.
func resultEvent(trace *planner.Trace) (*planner.TraceEvent, bool) {
	for i := len(trace.Events) - 1; i >= 0; i-- {
		if trace.Events[i].Kind == planner.EventResult {
			return &trace.Events[i], true
		}
	}
	return nil, false
}

func stepEvent(trace *planner.Trace, name string) (*planner.TraceEvent, bool) {
	for i := range trace.Events {
		ev := &trace.Events[i]
		if ev.Kind == planner.EventStep && ev.Name == name {
			return ev, true
		}
	}
	return nil, false
}
