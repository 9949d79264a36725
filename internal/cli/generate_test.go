package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlaw/fixpoint/internal/emit"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/ledger"
)

// generateArgs builds generate arguments writing into dir.
func generateArgs(specsDir, dir string) []string {
	return []string{
		specsDir,
		"--output", filepath.Join(dir, "fixpoint.gen.go"),
		"--lock", filepath.Join(dir, "fixpoint.lock.json"),
		"--ledger", filepath.Join(dir, "ledger.db"),
	}
}

func TestGenerateWritesArtifactAndLock(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "demo")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs(specsDir, tmpDir))

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Generated")
	assert.Contains(t, output, "from unit demo")
	assert.Contains(t, output, "Lock written to")

	// The artifact is a Go source file in the declared package
	src, err := os.ReadFile(filepath.Join(tmpDir, "fixpoint.gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "package demopipe")

	// The lock pins the unit with the artifact hash
	lf, err := emit.ReadLockFile(filepath.Join(tmpDir, "fixpoint.lock.json"))
	require.NoError(t, err)
	pinned, ok := lf.Unit("demo")
	require.True(t, ok)
	assert.Equal(t, ir.UnitID("demo"), pinned.ID)
	assert.Equal(t, ir.ArtifactHash(src), pinned.ArtifactHash)
	assert.NotEmpty(t, pinned.DeclHash)
	assert.NotEmpty(t, pinned.PlanHash)
}

func TestGenerateRecordsRun(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "demo")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs(specsDir, tmpDir))

	require.NoError(t, cmd.Execute())

	l, err := ledger.Open(filepath.Join(tmpDir, "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "generate", runs[0].Command)
	assert.Equal(t, ledger.OutcomeOK, runs[0].Outcome)
	assert.Equal(t, ir.ToolVersion, runs[0].ToolVersion)
	assert.Equal(t, 1, runs[0].Units)
	assert.Equal(t, 0, runs[0].Diagnostics)
}

func TestGenerateJSON(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "demo")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs(specsDir, tmpDir))

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "demo", data["unit"])
	assert.NotEmpty(t, data["artifact_hash"])
	assert.NotEmpty(t, data["run_id"])
}

func TestGenerateNoLedger(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "demo")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(append(generateArgs(specsDir, tmpDir), "--no-ledger"))

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(tmpDir, "ledger.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRejectionRecordsFailedRun(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "wide")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs(specsDir, tmpDir))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation rejected")
	assert.Contains(t, buf.String(), "no storage width holds 140")

	// Nothing was emitted
	_, err = os.Stat(filepath.Join(tmpDir, "fixpoint.gen.go"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tmpDir, "fixpoint.lock.json"))
	assert.True(t, os.IsNotExist(err))

	// The rejection is still an auditable run
	l, err := ledger.Open(filepath.Join(tmpDir, "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.OutcomeFailed, runs[0].Outcome)
	assert.Equal(t, 0, runs[0].Units)
	assert.Equal(t, 1, runs[0].Diagnostics)

	run, err := l.RunDetail(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, run.Diagnostics, 1)
	assert.Equal(t, "wide", run.Diagnostics[0].Unit)
	assert.Equal(t, "CAPACITY", run.Diagnostics[0].Kind)
	assert.Equal(t, "pipelines.square.steps.prod", run.Diagnostics[0].Path)
	require.NotNil(t, run.Diagnostics[0].Bits)
	assert.Equal(t, int64(140), *run.Diagnostics[0].Bits)
}

func TestGenerateValidationAbortsBeforeLedger(t *testing.T) {
	tmpDir := t.TempDir()
	specsDir := filepath.Join("testdata", "specs", "invalid")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs(specsDir, tmpDir))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	// Schema violations fail before generation starts, so no run exists
	_, err = os.Stat(filepath.Join(tmpDir, "ledger.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateMissingSpecsDir(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(generateArgs("/nonexistent/specs", tmpDir))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGenerateManifestPaths(t *testing.T) {
	tmpDir := t.TempDir()

	// Absolute paths in the manifest keep the test out of the
	// working directory.
	manifest := filepath.Join(tmpDir, "fixpoint.toml")
	contents := `
specs = "` + filepath.Join("testdata", "specs", "demo") + `"
output = "` + filepath.Join(tmpDir, "out.gen.go") + `"
lock = "` + filepath.Join(tmpDir, "out.lock.json") + `"
ledger = "` + filepath.Join(tmpDir, "out-ledger.db") + `"
`
	require.NoError(t, os.WriteFile(manifest, []byte(contents), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--manifest", manifest})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(tmpDir, "out.gen.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "out.lock.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "out-ledger.db"))
	assert.NoError(t, err)
}

func TestGenerateFlagsOverrideManifest(t *testing.T) {
	tmpDir := t.TempDir()

	manifest := filepath.Join(tmpDir, "fixpoint.toml")
	contents := `
specs = "` + filepath.Join("testdata", "specs", "demo") + `"
output = "` + filepath.Join(tmpDir, "manifest.gen.go") + `"
lock = "` + filepath.Join(tmpDir, "manifest.lock.json") + `"
ledger = "` + filepath.Join(tmpDir, "manifest-ledger.db") + `"
`
	require.NoError(t, os.WriteFile(manifest, []byte(contents), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGenerateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--manifest", manifest,
		"--output", filepath.Join(tmpDir, "flag.gen.go"),
	})

	require.NoError(t, cmd.Execute())

	// The flag wins over the manifest path
	_, err := os.Stat(filepath.Join(tmpDir, "flag.gen.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "manifest.gen.go"))
	assert.True(t, os.IsNotExist(err))
}
