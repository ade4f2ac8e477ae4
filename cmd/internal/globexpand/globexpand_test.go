package globexpand_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunglabmit/blockfs/cmd/internal/globexpand"
)

func TestOneLiteralPatternUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol-000.dir")
	require.Equal(t, []string{path}, globexpand.One(path))
}

func TestOneExpandsMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"vol-000.dir", "vol-001.dir", "other.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	got := globexpand.One(filepath.Join(dir, "vol-*.dir"))
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "vol-000.dir"),
		filepath.Join(dir, "vol-001.dir"),
	}, got)
}

func TestOneNoMatchFallsBackToPattern(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "vol-*.dir")
	require.Equal(t, []string{pattern}, globexpand.One(pattern))
}

func TestAllUnionsMultiplePatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.dir", "b.dir"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	got := globexpand.All([]string{
		filepath.Join(dir, "a.dir"),
		filepath.Join(dir, "b.dir"),
	})
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "a.dir"),
		filepath.Join(dir, "b.dir"),
	}, got)
}
