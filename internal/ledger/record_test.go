package ledger

import (
	"context"
	"testing"
	"time"
)

func TestRecordRun_Basic(t *testing.T) {
	l := createTestLedger(t)
	run := sampleRun("run-1", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))

	if err := l.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	var outcome, started string
	err := l.db.QueryRow(`
		SELECT outcome, started_at FROM runs WHERE id = ?
	`, run.ID).Scan(&outcome, &started)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %q, expected %q", outcome, OutcomeFailed)
	}
	if started != "2026-03-14T09:30:00Z" {
		t.Errorf("started_at = %q, expected UTC RFC3339", started)
	}

	var units, diags int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM units WHERE run_id = ?", run.ID).Scan(&units); err != nil {
		t.Fatalf("count units: %v", err)
	}
	if err := l.db.QueryRow("SELECT COUNT(*) FROM diagnostics WHERE run_id = ?", run.ID).Scan(&diags); err != nil {
		t.Fatalf("count diagnostics: %v", err)
	}
	if units != 1 || diags != 1 {
		t.Errorf("got %d units, %d diagnostics, expected 1 and 1", units, diags)
	}
}

func TestRecordRun_DuplicateIDFails(t *testing.T) {
	l := createTestLedger(t)
	run := sampleRun("run-1", time.Now())

	if err := l.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("first RecordRun() failed: %v", err)
	}
	if err := l.RecordRun(context.Background(), run); err == nil {
		t.Error("second RecordRun() with same id succeeded, expected PRIMARY KEY error")
	}
}

func TestRecordRun_Atomic(t *testing.T) {
	l := createTestLedger(t)
	run := sampleRun("run-1", time.Now())
	// Duplicate unit ids violate the units primary key mid-transaction.
	run.Units = append(run.Units, run.Units[0])

	if err := l.RecordRun(context.Background(), run); err == nil {
		t.Fatal("RecordRun() with duplicate unit succeeded, expected error")
	}

	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if count != 0 {
		t.Errorf("runs count = %d after failed RecordRun, expected rollback to 0", count)
	}
}

func TestRecordRun_NullableDemand(t *testing.T) {
	l := createTestLedger(t)
	run := sampleRun("run-1", time.Now())
	run.Diagnostics[0].Shift = nil
	run.Diagnostics[0].Bits = nil

	if err := l.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	var shift, bits any
	err := l.db.QueryRow(`
		SELECT shift, bits FROM diagnostics WHERE run_id = ?
	`, run.ID).Scan(&shift, &bits)
	if err != nil {
		t.Fatalf("query diagnostic: %v", err)
	}
	if shift != nil || bits != nil {
		t.Errorf("shift = %v, bits = %v, expected NULLs", shift, bits)
	}
}
