// Package testutil provides shared helpers for staging declaration
// and scenario trees on disk during tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree writes files under dir, creating parent directories as
// needed. Keys are slash-separated paths relative to dir.
func WriteTree(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// WriteSpecs stages files in a fresh temporary directory and returns
// its path. The directory is removed when the test completes.
func WriteSpecs(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, files)
	return dir
}

// CopyFile copies src into dstDir, creating the directory as needed,
// and returns the destination path.
func CopyFile(t testing.TB, src, dstDir string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dstDir, 0o755))

	dst := filepath.Join(dstDir, filepath.Base(src))
	require.NoError(t, os.WriteFile(dst, data, 0o644))
	return dst
}
