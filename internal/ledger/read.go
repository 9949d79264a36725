package ledger

import (
	"context"
	"fmt"
	"time"
)

// RunSummary is one row of the audit listing.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	ToolVersion string
	Command     string
	Outcome     string
	Units       int
	Diagnostics int
}

// ListRuns returns all runs, newest first. Ties on start time order by
// id so the listing is deterministic.
//
// Returns an empty slice (not nil) if the ledger has no runs.
func (l *Ledger) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.tool_version, r.command, r.outcome,
		       (SELECT COUNT(*) FROM units u WHERE u.run_id = r.id),
		       (SELECT COUNT(*) FROM diagnostics d WHERE d.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started string
		if err := rows.Scan(&s.ID, &started, &s.ToolVersion, &s.Command, &s.Outcome, &s.Units, &s.Diagnostics); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", s.ID, err)
		}
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []RunSummary{}
	}
	return runs, nil
}

// RunDetail retrieves a single run with its unit and diagnostic rows.
// Returns sql.ErrNoRows if the run does not exist.
func (l *Ledger) RunDetail(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, tool_version, command, outcome
		FROM runs
		WHERE id = ?
	`, id)

	var run Run
	var started string
	if err := row.Scan(&run.ID, &started, &run.ToolVersion, &run.Command, &run.Outcome); err != nil {
		return Run{}, err
	}
	var err error
	run.StartedAt, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at for run %s: %w", id, err)
	}

	run.Units, err = l.readRunUnits(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Diagnostics, err = l.readRunDiagnostics(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (l *Ledger) readRunUnits(ctx context.Context, runID string) ([]Unit, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT unit_id, name, decl_hash, plan_hash, artifact, artifact_hash
		FROM units
		WHERE run_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.UnitID, &u.Name, &u.DeclHash, &u.PlanHash, &u.Artifact, &u.ArtifactHash); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}

	if units == nil {
		units = []Unit{}
	}
	return units, nil
}

func (l *Ledger) readRunDiagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT unit, kind, path, pos, message, shift, bits
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY unit COLLATE BINARY ASC, path COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Unit, &d.Kind, &d.Path, &d.Pos, &d.Message, &d.Shift, &d.Bits); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}

	if diags == nil {
		diags = []Diagnostic{}
	}
	return diags, nil
}
