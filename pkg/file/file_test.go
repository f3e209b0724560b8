package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func TestFileService_ReadYamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: dome\ncount: 3\n"), 0600))

	fs := NewFileService()
	var s sample
	require.NoError(t, fs.ReadYamlFile(path, &s))
	assert.Equal(t, sample{Name: "dome", Count: 3}, s)
}

func TestFileService_ReadYamlFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	s := sample{Name: "kept"}
	require.NoError(t, NewFileService().ReadYamlFile(path, &s))
	assert.Equal(t, "kept", s.Name)
}

func TestFileService_ReadYamlFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nme: dome\n"), 0600))

	var s sample
	assert.Error(t, NewFileService().ReadYamlFile(path, &s))
}

func TestFileService_IsFileExists(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	ok, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.IsFileExists(path + ".missing")
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := fs.ReadFileRaw(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)
}
