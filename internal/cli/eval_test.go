package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalAddPipeline(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level=2.5",
		"--input", "delta=-1.5",
	})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ adjust = 1 (raw 2, s5@-1, int8)")
}

func TestEvalJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level=2.5",
		"--input", "delta=-1.5",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "adjust", data["pipeline"])

	events, ok := data["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, events, 4)

	last, ok := events[3].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "result", last["kind"])
	assert.Equal(t, "2", last["raw"])
	assert.Equal(t, "1", last["value"])
	assert.Equal(t, "s5@-1", last["desc"])
}

func TestEvalVerboseTrace(t *testing.T) {
	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level=2.5",
		"--input", "delta=-1.5",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	output := stdoutBuf.String()
	assert.Contains(t, output, "=== Trace ===")
	assert.Contains(t, output, "[1] param level = 2.5 (raw 5, u4@-1)")
	assert.Contains(t, output, "[2] param delta = -1.5 (raw -3, s3@-1)")
	assert.Contains(t, output, "[3] add sum = 1 (raw 2, s5@-1)")
}

func TestEvalComparisonResult(t *testing.T) {
	tmpDir := t.TempDir()
	spec := `
module: {
	name:    "cmp"
	package: "cmppipe"
}

formats: {
	Reading: {shift: -1, bits: 6}
}

pipelines: {
	exceeds: {
		params: [
			{name: "a", format: "Reading"},
			{name: "b", format: "Reading"},
		]
		steps: [
			{name: "over", op: "gt", args: ["a", "b"]},
		]
		result: "over"
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "cmp.cue"), []byte(spec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir, "exceeds", "--input", "a=3.5", "--input", "b=1"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ exceeds = true")
}

func TestEvalMissingInput(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level=2.5",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_INPUT")
	assert.Contains(t, err.Error(), "missing input")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [BAD_INPUT]")
}

func TestEvalOutOfRangeInput(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level=200",
		"--input", "delta=-1.5",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_INPUT")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestEvalDivideByZero(t *testing.T) {
	tmpDir := t.TempDir()
	spec := `
module: {
	name:    "flow"
	package: "flowpipe"
}

formats: {
	Flow:  {shift: -2, bits: 10}
	Scale: {shift: 0, bits: 4}
}

pipelines: {
	ratio: {
		params: [
			{name: "n", format: "Flow"},
			{name: "d", format: "Scale"},
		]
		steps: [
			{name: "q", op: "div", args: ["n", "d"], target: "Flow"},
		]
		result: "q"
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "flow.cue"), []byte(spec), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir, "ratio", "--input", "n=12.5", "--input", "d=0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DIVIDE_BY_ZERO")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [DIVIDE_BY_ZERO]")
}

func TestEvalUnknownPipeline(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "specs", "demo"), "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pipeline "nope" is not declared`)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [UNKNOWN_PIPELINE]")
}

func TestEvalMalformedInputFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewEvalCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join("testdata", "specs", "demo"), "adjust",
		"--input", "level2.5",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected name=value")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseInputFlags(t *testing.T) {
	texts, err := parseInputFlags([]string{"a=2.375", "b=-1.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2.375", "b": "-1.5"}, texts)
}

func TestParseInputFlagsValueWithEquals(t *testing.T) {
	// Only the first = separates name from value
	texts, err := parseInputFlags([]string{"a=b=c"})
	require.NoError(t, err)
	assert.Equal(t, "b=c", texts["a"])
}

func TestParseInputFlagsInvalid(t *testing.T) {
	_, err := parseInputFlags([]string{"novalue"})
	require.Error(t, err)

	_, err = parseInputFlags([]string{"=3"})
	require.Error(t, err)
}
