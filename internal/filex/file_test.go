package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()

	want := filepath.Join(tmp, "scratch", "consents")
	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")
}

func TestEnsureDir_ExistingDirectoryIsFine(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(tmp)
	require.NoError(t, err)
	require.Equal(t, tmp, got)
}
