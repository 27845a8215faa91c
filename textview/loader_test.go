package textview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskLoader_GetText_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.md"), []byte("# Hi"), 0o644))

	loader := NewDiskLoader(dir, "fallback")
	text, err := loader.GetText("welcome")
	require.NoError(t, err)
	assert.Equal(t, "# Hi", text)
}

func TestDiskLoader_GetText_MissingFallsBackToDefault(t *testing.T) {
	loader := NewDiskLoader(t.TempDir(), "fallback")
	text, err := loader.GetText("missing")
	require.NoError(t, err)
	assert.Equal(t, "fallback", text)
}

func TestDiskLoader_Reload_PicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "welcome.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	loader := NewDiskLoader(dir, "fallback")
	text, err := loader.GetText("welcome")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	text, err = loader.GetText("welcome")
	require.NoError(t, err)
	assert.Equal(t, "v1", text, "cached until Reload")

	loader.Reload()
	text, err = loader.GetText("welcome")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
}
