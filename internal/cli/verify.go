package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/emit"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/ledger"
	"github.com/dlaw/fixpoint/internal/planner"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Manifest string
	Lock     string
	Ledger   string
	NoLedger bool
}

// VerifySummary holds the verification result.
type VerifySummary struct {
	Unit  string   `json:"unit"`
	Lock  string   `json:"lock"`
	Clean bool     `json:"clean"`
	Drift []string `json:"drift,omitempty"` // drifted lock fields
	RunID string   `json:"run_id,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [specs-dir]",
		Short: "Verify the lock file against declarations and artifact",
		Long: `Verify that the lock file still matches reality.

Recomputes the declaration, plan and artifact hashes and compares
them against the pinned values. Any disagreement is drift: the
declarations changed without regeneration, the artifact was edited
by hand, or the tool version derives differently.

Exit codes:
  0 - Lock matches
  1 - Drift detected or declarations rejected
  2 - Command error (missing lock file, invalid paths, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest path (default fixpoint.toml when present)")
	cmd.Flags().StringVar(&opts.Lock, "lock", "", "lock file path")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "audit ledger path")
	cmd.Flags().BoolVar(&opts.NoLedger, "no-ledger", false, "skip the audit ledger")

	return cmd
}

func runVerify(opts *VerifyOptions, args []string, cmd *cobra.Command) error {
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
	lockPath := firstOf(opts.Lock, manifest.Lock)
	ledgerPath := firstOf(opts.Ledger, manifest.Ledger)

	lf, err := emit.ReadLockFile(lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return outputCompileError(formatter, ErrCodeLockMissing,
				fmt.Sprintf("lock file not found at %s (run fixpoint generate first)", lockPath))
		}
		return outputCompileError(formatter, ErrCodeLockMissing, err.Error())
	}

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
		if !opts.NoLedger {
			run := newRun("verify")
			run.Outcome = ledger.OutcomeFailed
			run.Diagnostics = ledgerDiagnostics(res.Module.Name, diags)
			if err := recordRun(ledgerPath, run); err != nil {
				fmt.Fprintf(formatter.GetErrWriter(), "warning: ledger: %v\n", err)
			}
		}
		return outputDiagnostics(formatter, diags)
	}

	pinned, ok := lf.Unit(plan.Module.Name)
	if !ok {
		return outputVerifyFailure(formatter, opts, ledgerPath, VerifySummary{
			Unit:  plan.Module.Name,
			Lock:  lockPath,
			Drift: []string{fmt.Sprintf("unit %q is not pinned in %s", plan.Module.Name, lockPath)},
		}, nil)
	}

	planHash, err := plan.Hash()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing plan: %v", err))
	}

	current := emit.UnitLock{
		ID:       ir.UnitID(plan.Module.Name),
		Name:     plan.Module.Name,
		DeclHash: plan.DeclHash,
		PlanHash: planHash,
		Artifact: pinned.Artifact,
	}

	var drift []string
	artifact, err := os.ReadFile(pinned.Artifact)
	if err != nil {
		drift = append(drift, fmt.Sprintf("artifact %s is unreadable: %v", pinned.Artifact, err))
		current.ArtifactHash = pinned.ArtifactHash // compare the rest anyway
	} else {
		current.ArtifactHash = ir.ArtifactHash(artifact)
	}

	for _, field := range pinned.Diff(current) {
		drift = append(drift, driftDetail(field, pinned, current))
	}

	summary := VerifySummary{
		Unit:  plan.Module.Name,
		Lock:  lockPath,
		Clean: len(drift) == 0,
		Drift: drift,
	}

	unitRow := ledger.Unit{
		UnitID:       current.ID,
		Name:         current.Name,
		DeclHash:     current.DeclHash,
		PlanHash:     current.PlanHash,
		Artifact:     current.Artifact,
		ArtifactHash: current.ArtifactHash,
	}

	if !summary.Clean {
		return outputVerifyFailure(formatter, opts, ledgerPath, summary, &unitRow)
	}

	if !opts.NoLedger {
		run := newRun("verify")
		run.Outcome = ledger.OutcomeOK
		run.Units = []ledger.Unit{unitRow}
		if err := recordRun(ledgerPath, run); err != nil {
			fmt.Fprintf(formatter.GetErrWriter(), "warning: ledger: %v\n", err)
		} else {
			summary.RunID = run.ID
		}
	}

	return outputVerifySuccess(formatter, summary)
}

// outputVerifySuccess reports a clean verification.
func outputVerifySuccess(formatter *OutputFormatter, summary VerifySummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	fmt.Fprintf(formatter.Writer, "✓ Lock verified: unit %s matches %s\n", summary.Unit, summary.Lock)
	return nil
}

// outputVerifyFailure reports drift, records the mismatch run, and maps
// to exit code 1.
func outputVerifyFailure(formatter *OutputFormatter, opts *VerifyOptions, ledgerPath string, summary VerifySummary, unitRow *ledger.Unit) error {
	if !opts.NoLedger {
		run := newRun("verify")
		run.Outcome = ledger.OutcomeMismatch
		if unitRow != nil {
			run.Units = []ledger.Unit{*unitRow}
		}
		if err := recordRun(ledgerPath, run); err != nil {
			fmt.Fprintf(formatter.GetErrWriter(), "warning: ledger: %v\n", err)
		} else {
			summary.RunID = run.ID
		}
	}

	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeDrift, fmt.Sprintf("%d field(s) drifted", len(summary.Drift)), summary)
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d field(s) drifted", len(summary.Drift)))
	}

	fmt.Fprintf(formatter.Writer, "✗ Lock drift detected for unit %s\n\n", summary.Unit)
	for _, d := range summary.Drift {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, "Run fixpoint generate to regenerate and re-pin.")

	return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d field(s) drifted", len(summary.Drift)))
}

// driftDetail renders one drifted lock field with both values.
func driftDetail(field string, pinned, current emit.UnitLock) string {
	switch field {
	case "decl_hash":
		return fmt.Sprintf("decl_hash: locked %s, computed %s", shortHash(pinned.DeclHash), shortHash(current.DeclHash))
	case "plan_hash":
		return fmt.Sprintf("plan_hash: locked %s, computed %s", shortHash(pinned.PlanHash), shortHash(current.PlanHash))
	case "artifact":
		return fmt.Sprintf("artifact: locked %s, found %s", pinned.Artifact, current.Artifact)
	case "artifact_hash":
		return fmt.Sprintf("artifact_hash: locked %s, computed %s", shortHash(pinned.ArtifactHash), shortHash(current.ArtifactHash))
	default:
		return field
	}
}

// shortHash truncates a hash for display.
func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
