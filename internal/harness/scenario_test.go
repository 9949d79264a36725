package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlaw/fixpoint/internal/testutil"
)

// createTestSpec creates a minimal valid CUE declaration file.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	decls := `module: {name: "demo", package: "demopipe"}
formats: Level: {shift: -1, bits: 4}
`
	testutil.WriteTree(t, dir, map[string]string{"specs/" + name: decls})
	return filepath.Join(dir, "specs", name)
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	testutil.WriteTree(t, dir, map[string]string{"test.yaml": content})
	return filepath.Join(dir, "test.yaml")
}

func TestLoadScenario_EvaluationFile(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: demo_double
description: "Doubling preserves the raw value"
specs:
  - `+specPath+`
pipeline: double
inputs:
  x: "1.5"
expect:
  result: "3"
  raw: "6"
  steps:
    - name: twice
      raw: "6"
`)

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "demo_double", scenario.Name)
	assert.Equal(t, "Doubling preserves the raw value", scenario.Description)
	assert.Len(t, scenario.Specs, 1)
	assert.Equal(t, "double", scenario.Pipeline)
	assert.Equal(t, "1.5", scenario.Inputs["x"])
	require.NotNil(t, scenario.Expect)
	assert.Equal(t, "3", scenario.Expect.Result)
	assert.Equal(t, "6", scenario.Expect.Raw)
	require.Len(t, scenario.Expect.Steps, 1)
	assert.Equal(t, "twice", scenario.Expect.Steps[0].Name)
	assert.Empty(t, scenario.Diagnostics)
}

func TestLoadScenario_RejectionFile(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: demo_rejected
description: "Inexact constant fails generation"
specs:
  - `+specPath+`
diagnostics:
  - kind: representation
    path: constants.Tenth
    contains: "not exactly representable"
`)

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Empty(t, scenario.Pipeline)
	assert.Nil(t, scenario.Expect)
	require.Len(t, scenario.Diagnostics, 1)
	assert.Equal(t, "representation", scenario.Diagnostics[0].Kind)
	assert.Equal(t, "constants.Tenth", scenario.Diagnostics[0].Path)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	// "expects" is a typo for "expect"; strict decoding must reject it.
	scenarioPath := writeScenario(t, dir, `
name: typo
description: "Typo in expect"
specs:
  - `+specPath+`
pipeline: double
inputs:
  x: "1"
expects:
  result: "2"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "expects")
}

func TestLoadScenario_MissingName(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
description: "Missing name"
specs:
  - `+specPath+`
pipeline: double
inputs:
  x: "1"
expect:
  raw: "2"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_MissingDescription(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
specs:
  - `+specPath+`
pipeline: double
expect:
  raw: "2"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestLoadScenario_MissingSpecs(t *testing.T) {
	dir := t.TempDir()

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Test"
specs: []
pipeline: double
expect:
  raw: "2"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs list is required")
}

func TestLoadScenario_EvaluationAndRejectionConflict(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Both branches set"
specs:
  - `+specPath+`
pipeline: double
expect:
  raw: "2"
diagnostics:
  - kind: capacity
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadScenario_NeitherBranch(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "No expectations at all"
specs:
  - `+specPath+`
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either a pipeline with expect or a diagnostics list is required")
}

func TestLoadScenario_EmptyExpect(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Expect checks nothing"
specs:
  - `+specPath+`
pipeline: double
inputs:
  x: "1"
expect: {}
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect must check at least one")
}

func TestLoadScenario_StepWithoutName(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Step expectation missing its name"
specs:
  - `+specPath+`
pipeline: double
expect:
  steps:
    - raw: "6"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect.steps[0]: name is required")
}

func TestLoadScenario_DiagnosticWithoutKind(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Diagnostic expectation missing its kind"
specs:
  - `+specPath+`
diagnostics:
  - contains: "anything"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagnostics[0]: kind is required")
}

func TestLoadScenario_SpecNotFound(t *testing.T) {
	dir := t.TempDir()

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Spec path is dangling"
specs:
  - /nonexistent/decls.cue
pipeline: double
expect:
  raw: "2"
`)

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestLoadScenarioWithBasePath_ResolvesRelativeSpecs(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	scenarioPath := writeScenario(t, dir, `
name: test
description: "Relative spec path"
specs:
  - specs/demo.cue
pipeline: double
inputs:
  x: "1"
expect:
  raw: "2"
`)

	scenario, err := LoadScenarioWithBasePath(scenarioPath, dir)
	require.NoError(t, err)
	require.Len(t, scenario.Specs, 1)
	assert.Equal(t, specPath, scenario.Specs[0])
}

func TestLoadScenario_TestdataScenariosAreValid(t *testing.T) {
	entries, err := os.ReadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		path := filepath.Join("testdata/scenarios", entry.Name())
		_, err := LoadScenarioWithBasePath(path, "testdata/scenarios")
		assert.NoError(t, err, "scenario %s", entry.Name())
	}
}
