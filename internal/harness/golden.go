package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/planner"
)

// TraceSnapshot captures the evaluation trace of one scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        *planner.Trace
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for
// canonical JSON serialization. Raw values render as decimal strings
// and fixed-point values as exact decimal text, so snapshots stay
// byte-stable across platforms.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         s.Trace.Canonical(),
	}
}

// MarshalCanonical renders the snapshot as canonical JSON, the exact
// bytes golden files hold.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace
// behavior: a semantics change in the evaluator shows up as a golden
// diff even when every expect clause still passes.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// Useful when a scenario has already run and only the comparison is
// needed.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	if result.Trace == nil {
		t.Fatalf("scenario %s produced no trace", scenarioName)
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
