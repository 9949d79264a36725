package ledger

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestLedger creates a ledger in a temp file for testing.
func createTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// sampleRun builds a run with one unit and one diagnostic.
func sampleRun(id string, at time.Time) Run {
	shift := int64(-5)
	bits := int64(140)
	return Run{
		ID:          id,
		StartedAt:   at,
		ToolVersion: "0.1.0",
		Command:     "generate",
		Outcome:     OutcomeFailed,
		Units: []Unit{{
			UnitID:       "unit-uuid-" + id,
			Name:         "imu",
			DeclHash:     "decl-" + id,
			PlanHash:     "plan-" + id,
			Artifact:     "imu_fixpoint.go",
			ArtifactHash: "artifact-" + id,
		}},
		Diagnostics: []Diagnostic{{
			Unit:    "imu",
			Kind:    "CAPACITY",
			Path:    "pipelines.fuse.steps.prod",
			Pos:     "specs/imu.cue:14:9",
			Message: "product needs 140 bits",
			Shift:   &shift,
			Bits:    &bits,
		}},
	}
}
