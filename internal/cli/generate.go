package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/emit"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/ledger"
	"github.com/dlaw/fixpoint/internal/planner"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Manifest string
	Output   string
	Lock     string
	Ledger   string
	NoLedger bool
}

// GenerateSummary holds the result of a successful generation.
type GenerateSummary struct {
	Unit         string `json:"unit"`
	Artifact     string `json:"artifact"`
	ArtifactHash string `json:"artifact_hash"`
	DeclHash     string `json:"decl_hash"`
	PlanHash     string `json:"plan_hash"`
	Lock         string `json:"lock"`
	RunID        string `json:"run_id,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [specs-dir]",
		Short: "Generate fixed-point Go source from declarations",
		Long: `Generate Go source, the lock file and a ledger entry from a
declaration unit.

The unit is compiled, validated and derived; if any declaration is
rejected nothing is written and the rejection is recorded in the
ledger. On success the artifact, the lock file pinning its hashes,
and an audit run are all written.

Paths come from flags, then fixpoint.toml, then defaults.

Exit codes:
  0 - Generation succeeded
  1 - Declarations rejected or invalid
  2 - Command error (invalid paths, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest path (default fixpoint.toml when present)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "generated source path")
	cmd.Flags().StringVar(&opts.Lock, "lock", "", "lock file path")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "audit ledger path")
	cmd.Flags().BoolVar(&opts.NoLedger, "no-ledger", false, "skip the audit ledger")

	return cmd
}

func runGenerate(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	manifest, err := ResolveManifest(opts.Manifest)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}

	specsDir := manifest.Specs
	if len(args) > 0 {
		specsDir = args[0]
	}
	output := firstOf(opts.Output, manifest.Output)
	lockPath := firstOf(opts.Lock, manifest.Lock)
	ledgerPath := firstOf(opts.Ledger, manifest.Ledger)

	res, err := LoadUnit(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, specsDir)

	if verrs := compiler.Validate(res.Module, res.Source); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	plan, diags := planner.BuildPlan(res.Module, res.Source)
	if len(diags) > 0 {
		// A rejected run is still an auditable run.
		if !opts.NoLedger {
			run := newRun("generate")
			run.Outcome = ledger.OutcomeFailed
			run.Diagnostics = ledgerDiagnostics(res.Module.Name, diags)
			if err := recordRun(ledgerPath, run); err != nil {
				fmt.Fprintf(formatter.GetErrWriter(), "warning: ledger: %v\n", err)
			}
		}
		return outputDiagnostics(formatter, diags)
	}

	src, err := emit.Generate(plan)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("emitting source: %v", err))
	}

	if dir := filepath.Dir(output); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("creating output directory: %v", err))
		}
	}
	if err := os.WriteFile(output, src, 0644); err != nil {
		return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing artifact: %v", err))
	}

	lf := emit.NewLockFile()
	if err := lf.Add(plan, output, src); err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("locking unit: %v", err))
	}
	if err := emit.WriteLockFile(lockPath, lf); err != nil {
		return outputCompileError(formatter, ErrCodeWriteFailed, err.Error())
	}

	pinned, _ := lf.Unit(plan.Module.Name)
	summary := GenerateSummary{
		Unit:         pinned.Name,
		Artifact:     pinned.Artifact,
		ArtifactHash: pinned.ArtifactHash,
		DeclHash:     pinned.DeclHash,
		PlanHash:     pinned.PlanHash,
		Lock:         lockPath,
	}

	if !opts.NoLedger {
		run := newRun("generate")
		run.Outcome = ledger.OutcomeOK
		run.Units = []ledger.Unit{{
			UnitID:       pinned.ID,
			Name:         pinned.Name,
			DeclHash:     pinned.DeclHash,
			PlanHash:     pinned.PlanHash,
			Artifact:     pinned.Artifact,
			ArtifactHash: pinned.ArtifactHash,
		}}
		if err := recordRun(ledgerPath, run); err != nil {
			fmt.Fprintf(formatter.GetErrWriter(), "warning: ledger: %v\n", err)
		} else {
			summary.RunID = run.ID
		}
	}

	formatter.VerboseLog("decl hash: %s", summary.DeclHash)
	formatter.VerboseLog("plan hash: %s", summary.PlanHash)
	formatter.VerboseLog("artifact hash: %s", summary.ArtifactHash)

	return outputGenerateSuccess(formatter, summary)
}

// outputGenerateSuccess outputs the generation summary.
func outputGenerateSuccess(formatter *OutputFormatter, summary GenerateSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	fmt.Fprintf(formatter.Writer, "✓ Generated %s from unit %s\n", summary.Artifact, summary.Unit)
	fmt.Fprintf(formatter.Writer, "Lock written to %s\n", summary.Lock)
	return nil
}

// firstOf returns the first non-empty string.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newRun starts a ledger run row for the current invocation.
func newRun(command string) ledger.Run {
	return ledger.Run{
		ID:          uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		ToolVersion: ir.ToolVersion,
		Command:     command,
	}
}

// recordRun appends one run to the audit ledger, creating the ledger
// and its parent directory on first use.
func recordRun(path string, run ledger.Run) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}

	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	return l.RecordRun(context.Background(), run)
}

// ledgerDiagnostics flattens planner diagnostics for ledger storage.
func ledgerDiagnostics(unit string, diags []planner.Diagnostic) []ledger.Diagnostic {
	rows := make([]ledger.Diagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		row := ledger.Diagnostic{
			Unit:    unit,
			Kind:    string(d.Kind),
			Path:    d.Path,
			Pos:     d.Pos,
			Message: d.Message,
		}
		if d.Demand != nil {
			shift := int64(d.Demand.Shift)
			bits := int64(d.Demand.Bits)
			row.Shift = &shift
			row.Bits = &bits
		}
		rows = append(rows, row)
	}
	return rows
}
