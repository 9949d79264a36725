package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/planner"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // derived plan output path
}

// PipelineSummary describes one derived pipeline.
type PipelineSummary struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Result  string   `json:"result"`            // derived descriptor, or "bool"
	Storage string   `json:"storage,omitempty"` // resolved Go type
	Checked bool     `json:"checked,omitempty"` // generated function returns an error
}

// CompileSummary holds the derived unit summary for compile output.
type CompileSummary struct {
	Unit      string            `json:"unit"`
	Package   string            `json:"package"`
	DeclHash  string            `json:"decl_hash"`
	PlanHash  string            `json:"plan_hash"`
	Formats   int               `json:"formats"`
	Constants int               `json:"constants"`
	Pipelines []PipelineSummary `json:"pipelines"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile declarations and derive their plan",
		Long: `Compile CUE fixed-point declarations and derive every descriptor.

The compiler parses CUE files, validates them against the declaration
schema, and runs descriptor derivation. Nothing is written unless
--output is given; compile is the fast feedback loop for declaration
work.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the derived plan as JSON to this path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	res, err := LoadUnit(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, specsDir)
	for _, f := range res.Module.Formats {
		formatter.VerboseLog("Compiling format: %s", f.Name)
	}
	for _, p := range res.Module.Pipelines {
		formatter.VerboseLog("Compiling pipeline: %s", p.Name)
	}

	if verrs := compiler.Validate(res.Module, res.Source); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	plan, diags := planner.BuildPlan(res.Module, res.Source)
	if len(diags) > 0 {
		return outputDiagnostics(formatter, diags)
	}

	summary, err := buildSummary(plan)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing plan: %v", err))
	}

	formatter.VerboseLog("decl hash: %s", summary.DeclHash)
	formatter.VerboseLog("plan hash: %s", summary.PlanHash)

	if opts.Output != "" {
		if err := writePlanToFile(plan, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, summary, opts.Output)
}

// buildSummary derives the compile summary from a plan.
func buildSummary(plan *planner.Plan) (CompileSummary, error) {
	planHash, err := plan.Hash()
	if err != nil {
		return CompileSummary{}, err
	}

	summary := CompileSummary{
		Unit:      plan.Module.Name,
		Package:   plan.Module.Package,
		DeclHash:  plan.DeclHash,
		PlanHash:  planHash,
		Formats:   len(plan.Formats),
		Constants: len(plan.Constants),
		Pipelines: make([]PipelineSummary, 0, len(plan.Pipelines)),
	}

	for i := range plan.Pipelines {
		pp := &plan.Pipelines[i]
		ps := PipelineSummary{Name: pp.Name, Checked: pp.Checked}
		for _, param := range pp.Params {
			ps.Params = append(ps.Params, param.Name)
		}
		if binding, ok := plan.Binding(pp, pp.Result); ok {
			if binding.IsBool {
				ps.Result = "bool"
			} else {
				ps.Result = binding.Desc.String()
				ps.Storage = binding.Storage.GoType()
			}
		}
		summary.Pipelines = append(summary.Pipelines, ps)
	}

	return summary, nil
}

// outputCompileSuccess outputs the derived unit summary.
func outputCompileSuccess(formatter *OutputFormatter, summary CompileSummary, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled unit %s: %d format(s), %d constant(s), %d pipeline(s)\n\n",
		summary.Unit, summary.Formats, summary.Constants, len(summary.Pipelines))

	if len(summary.Pipelines) > 0 {
		fmt.Fprintln(formatter.Writer, "Pipelines:")
		for _, ps := range summary.Pipelines {
			line := fmt.Sprintf("  %s(%s) -> %s", ps.Name, strings.Join(ps.Params, ", "), ps.Result)
			if ps.Storage != "" {
				line += fmt.Sprintf(" (%s)", ps.Storage)
			}
			if ps.Checked {
				line += " [checked]"
			}
			fmt.Fprintln(formatter.Writer, line)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote derived plan to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single command-level error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs declaration schema violations.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   map[string]any{"errors": errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Pos != "" {
			fmt.Fprintln(formatter.Writer, err.Pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// outputDiagnostics outputs planning rejections: the declarations whose
// derived descriptors cannot be represented or stored.
func outputDiagnostics(formatter *OutputFormatter, diags []planner.Diagnostic) error {
	if formatter.Format == "json" {
		entries := make([]map[string]any, len(diags))
		for i := range diags {
			entries[i] = diagnosticJSON(&diags[i])
		}

		response := CLIResponse{
			Status: "error",
			Data:   map[string]any{"diagnostics": entries},
			Error: &CLIError{
				Code:    ErrCodeRejected,
				Message: fmt.Sprintf("%d declaration(s) rejected", len(diags)),
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("generation rejected with %d diagnostic(s)", len(diags)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Generation rejected")
	fmt.Fprintln(formatter.Writer)

	for i := range diags {
		fmt.Fprintf(formatter.Writer, "  %s\n", diags[i].Error())
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("generation rejected with %d diagnostic(s)", len(diags)))
}

// diagnosticJSON flattens one diagnostic for JSON output.
func diagnosticJSON(d *planner.Diagnostic) map[string]any {
	entry := map[string]any{
		"kind":    string(d.Kind),
		"path":    d.Path,
		"message": d.Message,
	}
	if d.Pos != "" {
		entry["pos"] = d.Pos
	}
	if d.Demand != nil {
		entry["demand"] = d.Demand.String()
	}
	return entry
}

// writePlanToFile writes the derived plan to a file as indented JSON.
func writePlanToFile(plan *planner.Plan, filename string) error {
	// Indented standard JSON for readability; the compact canonical
	// form is only for hashing.
	data, err := json.MarshalIndent(plan.Canonical(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
