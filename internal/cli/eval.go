package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/dlaw/fixpoint/fixed"
	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/planner"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Inputs []string // name=value pairs
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <specs-dir> <pipeline>",
		Short: "Evaluate a pipeline on exact values",
		Long: `Evaluate a declared pipeline with the reference evaluator.

Inputs are exact decimal strings; the evaluation follows the derived
plan step by step and reports the result with its raw integer and
descriptor. Use -v to see the full step trace.

Examples:
  fixpoint eval ./specs fuse --input a=2.375 --input b=1.5
  fixpoint eval ./specs fuse --input a=2.375 --input b=1.5 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "pipeline input as name=value (repeatable)")

	return cmd
}

func runEval(opts *EvalOptions, specsDir, pipeline string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	texts, err := parseInputFlags(opts.Inputs)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}

	res, err := LoadUnit(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	if verrs := compiler.Validate(res.Module, res.Source); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	plan, diags := planner.BuildPlan(res.Module, res.Source)
	if len(diags) > 0 {
		return outputDiagnostics(formatter, diags)
	}

	pp, ok := plan.Pipeline(pipeline)
	if !ok {
		_ = formatter.Error(string(planner.ErrCodeUnknownPipeline), fmt.Sprintf("pipeline %q is not declared", pipeline), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("pipeline %q is not declared", pipeline))
	}

	formatter.VerboseLog("pipeline plan:\n%s", spew.Sdump(pp))

	raws, err := planner.ParseInputs(pp, texts)
	if err != nil {
		return outputEvalError(formatter, err)
	}

	trace, err := planner.EvaluatePipeline(plan, pipeline, raws)
	if err != nil {
		return outputEvalError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(trace.Canonical())
	}

	return outputEvalText(formatter, trace)
}

// parseInputFlags splits repeated --input name=value pairs.
func parseInputFlags(pairs []string) (map[string]string, error) {
	texts := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --input %q: expected name=value", pair)
		}
		texts[name] = value
	}
	return texts, nil
}

// outputEvalError reports an evaluation failure and maps it to exit
// code 1.
func outputEvalError(formatter *OutputFormatter, err error) error {
	var evalErr *planner.EvalError
	if errors.As(err, &evalErr) {
		_ = formatter.Error(string(evalErr.Code), evalErr.Message, nil)
		return NewExitError(ExitFailure, evalErr.Error())
	}
	_ = formatter.Error(ErrCodeEval, err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}

// outputEvalText renders the evaluation for humans: the step trace in
// verbose mode, then the result line.
func outputEvalText(formatter *OutputFormatter, trace *planner.Trace) error {
	w := formatter.Writer

	if formatter.Verbose {
		fmt.Fprintln(w, "=== Trace ===")
		for i := range trace.Events {
			formatTraceEvent(w, &trace.Events[i])
		}
		fmt.Fprintln(w)
	}

	for i := len(trace.Events) - 1; i >= 0; i-- {
		ev := &trace.Events[i]
		if ev.Kind != planner.EventResult {
			continue
		}
		if ev.Bool != nil {
			fmt.Fprintf(w, "✓ %s = %t\n", trace.Pipeline, *ev.Bool)
		} else {
			fmt.Fprintf(w, "✓ %s = %s (raw %s, %s, %s)\n",
				trace.Pipeline,
				fixed.FormatRawBig(ev.Raw, ev.Desc.Shift),
				ev.Raw, ev.Desc, ev.Storage.GoType())
		}
		return nil
	}

	return nil
}

// formatTraceEvent formats a single trace event for text output.
func formatTraceEvent(w io.Writer, ev *planner.TraceEvent) {
	label := ev.Kind
	if ev.Op != "" {
		label = string(ev.Op)
	}

	if ev.Bool != nil {
		fmt.Fprintf(w, "  [%d] %s %s = %t\n", ev.Seq, label, ev.Name, *ev.Bool)
		return
	}
	fmt.Fprintf(w, "  [%d] %s %s = %s (raw %s, %s)\n",
		ev.Seq, label, ev.Name,
		fixed.FormatRawBig(ev.Raw, ev.Desc.Shift),
		ev.Raw, ev.Desc)
}
