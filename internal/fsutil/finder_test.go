package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		return p
	}
	b := write("b.hcl")
	a := write("nested/a.hcl")
	write("notes.txt")
	single := write("other/single.hcl")

	// --- Act ---
	files, err := CollectFiles(".hcl", dir, single, filepath.Join(dir, "missing"))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{b, a, single}, files)
}

func TestCollectFiles_SkipsFileWithOtherExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	files, err := CollectFiles(".hcl", p)

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollectFiles_EmptyExtension(t *testing.T) {
	_, err := CollectFiles("")
	require.Error(t, err)
}
