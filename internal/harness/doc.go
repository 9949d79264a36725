// Package harness provides conformance testing for fixpoint declaration
// units.
//
// The harness compiles CUE declarations, derives plans, runs the exact
// evaluator, and checks scenario expectations as executable contract
// tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - path/to/unit.cue
//	pipeline: fuse
//	inputs:
//	  a: "2.375"
//	  b: "1.5"
//	expect:
//	  result: "3.875"
//	  raw: "31"
//	  format: "s6@-3"
//	  steps:
//	    - name: sum
//	      raw: "31"
//
// A rejection scenario replaces pipeline/inputs/expect with the
// diagnostics the unit must fail generation with:
//
//	diagnostics:
//	  - kind: representation
//	    path: constants.Tenth
//	    contains: "not representable"
//
// # Expectation Fields
//
// All raw and result values are decimal strings, parsed exactly; no
// floats appear anywhere in a scenario. Within expect:
//
//   - result: the exact decimal value of the pipeline result
//   - raw: the result's raw integer
//   - format: the derived descriptor, e.g. "s6@-3"
//   - bool: expected outcome for comparison pipelines
//   - error: expected evaluator error code (e.g. DIVIDE_BY_ZERO)
//   - steps: per-step raw/format checks, matched by step name
//
// # Deterministic Testing
//
// A scenario run is fully deterministic: exact big.Int arithmetic, a
// fresh logical clock per evaluator, and canonical JSON traces. Golden
// files under testdata/golden pin the full event stream for comparison.
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/imu_fuse.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Execute it:
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range result.Failures {
//	    log.Println(f)
//	}
package harness
