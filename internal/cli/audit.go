package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlaw/fixpoint/internal/ledger"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Manifest string
	Database string
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit [run-id]",
		Short: "Inspect the generation ledger",
		Long: `Inspect the audit ledger of generate and verify runs.

Without arguments, lists all recorded runs newest first. With a
run id, shows the run's pinned units and any diagnostics it
recorded.

Examples:
  fixpoint audit
  fixpoint audit 6e9f6f6e-8f33-4a3b-9f6e-aaaaaaaaaaaa
  fixpoint audit --db .fixpoint/ledger.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest path (default fixpoint.toml when present)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "ledger path (default from manifest)")

	return cmd
}

func runAudit(opts *AuditOptions, args []string, cmd *cobra.Command) error {
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

	dbPath := firstOf(opts.Database, manifest.Ledger)

	// Opening would create an empty ledger; stat first so a missing
	// one reads as "nothing recorded yet" instead.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return outputCompileError(formatter, ErrCodeLedger,
			fmt.Sprintf("no ledger found at %s (run fixpoint generate first)", dbPath))
	}

	l, err := ledger.Open(dbPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("opening ledger: %v", err))
	}
	defer l.Close()

	ctx := context.Background()

	if len(args) == 1 {
		return auditRunDetail(ctx, formatter, l, args[0])
	}
	return auditListRuns(ctx, formatter, l)
}

// auditListRuns lists every recorded run.
func auditListRuns(ctx context.Context, formatter *OutputFormatter, l *ledger.Ledger) error {
	runs, err := l.ListRuns(ctx)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("listing runs: %v", err))
	}

	if formatter.Format == "json" {
		entries := make([]map[string]any, len(runs))
		for i, r := range runs {
			entries[i] = runSummaryJSON(r)
		}
		return formatter.Success(map[string]any{"runs": entries})
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "Runs: %d\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-20s  %-9s  %-9s  %5s  %5s\n", "ID", "STARTED", "COMMAND", "OUTCOME", "UNITS", "DIAGS")
	for _, r := range runs {
		fmt.Fprintf(w, "  %-36s  %-20s  %-9s  %-9s  %5d  %5d\n",
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Command,
			r.Outcome,
			r.Units,
			r.Diagnostics)
	}
	return nil
}

// auditRunDetail shows one run with its units and diagnostics.
func auditRunDetail(ctx context.Context, formatter *OutputFormatter, l *ledger.Ledger, id string) error {
	run, err := l.RunDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("run %s not found", id))
		}
		return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("reading run: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(runDetailJSON(run))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Tool: %s\n", run.ToolVersion)
	fmt.Fprintf(w, "Command: %s\n", run.Command)
	fmt.Fprintf(w, "Outcome: %s\n", run.Outcome)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Units ===")
	if len(run.Units) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, u := range run.Units {
			fmt.Fprintf(w, "  %s: decl %s, plan %s, artifact %s\n",
				u.Name, shortHash(u.DeclHash), shortHash(u.PlanHash), u.Artifact)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Diagnostics ===")
	if len(run.Diagnostics) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, d := range run.Diagnostics {
			line := fmt.Sprintf("  %s %s: %s", d.Kind, d.Path, d.Message)
			if d.Bits != nil && d.Shift != nil {
				line += fmt.Sprintf(" (bits %d, shift %d)", *d.Bits, *d.Shift)
			}
			fmt.Fprintln(w, line)
		}
	}

	return nil
}

// runSummaryJSON flattens one run listing row for JSON output.
func runSummaryJSON(r ledger.RunSummary) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"started_at":   r.StartedAt.UTC().Format(time.RFC3339),
		"tool_version": r.ToolVersion,
		"command":      r.Command,
		"outcome":      r.Outcome,
		"units":        r.Units,
		"diagnostics":  r.Diagnostics,
	}
}

// runDetailJSON flattens one run with rows for JSON output.
func runDetailJSON(run ledger.Run) map[string]any {
	units := make([]map[string]any, len(run.Units))
	for i, u := range run.Units {
		units[i] = map[string]any{
			"unit_id":       u.UnitID,
			"name":          u.Name,
			"decl_hash":     u.DeclHash,
			"plan_hash":     u.PlanHash,
			"artifact":      u.Artifact,
			"artifact_hash": u.ArtifactHash,
		}
	}

	diags := make([]map[string]any, len(run.Diagnostics))
	for i, d := range run.Diagnostics {
		entry := map[string]any{
			"unit":    d.Unit,
			"kind":    d.Kind,
			"path":    d.Path,
			"message": d.Message,
		}
		if d.Pos != "" {
			entry["pos"] = d.Pos
		}
		if d.Shift != nil {
			entry["shift"] = *d.Shift
		}
		if d.Bits != nil {
			entry["bits"] = *d.Bits
		}
		diags[i] = entry
	}

	return map[string]any{
		"id":           run.ID,
		"started_at":   run.StartedAt.UTC().Format(time.RFC3339),
		"tool_version": run.ToolVersion,
		"command":      run.Command,
		"outcome":      run.Outcome,
		"units":        units,
		"diagnostics":  diags,
	}
}
