package ledger

import (
	"context"
	"fmt"
	"time"
)

// RecordRun appends one run with all its unit and diagnostic rows in a
// single transaction. The run row and its children either all land or
// none do, so the ledger never shows a partial run.
func (l *Ledger) RecordRun(ctx context.Context, run Run) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, tool_version, command, outcome)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.ToolVersion,
		run.Command,
		run.Outcome,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	for _, u := range run.Units {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO units
			(run_id, unit_id, name, decl_hash, plan_hash, artifact, artifact_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, u.UnitID, u.Name, u.DeclHash, u.PlanHash, u.Artifact, u.ArtifactHash,
		)
		if err != nil {
			return fmt.Errorf("record unit %s: %w", u.Name, err)
		}
	}

	for _, d := range run.Diagnostics {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diagnostics
			(run_id, unit, kind, path, pos, message, shift, bits)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, d.Unit, d.Kind, d.Path, d.Pos, d.Message, d.Shift, d.Bits,
		)
		if err != nil {
			return fmt.Errorf("record diagnostic for %s: %w", d.Unit, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}
