package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManagerLazyDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "spill")
	om := NewOutputManager(base)

	_, err := os.Stat(base)
	assert.True(t, os.IsNotExist(err))

	path, err := om.GetOutputFilePath("../nested/file.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "file.json"), path)

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))
	size, err := om.GetFileSize(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)

	removed, err := om.RemoveIfEmpty()
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, os.Remove(path))
	removed, err = om.RemoveIfEmpty()
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = om.RemoveIfEmpty()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOutputManagerDefaultDir(t *testing.T) {
	om := NewOutputManager("")
	assert.Equal(t, DefaultSpilloverDirName, filepath.Base(om.BaseOutputDir))
}
