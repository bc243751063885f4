package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sub", "config.yaml")

	x := &struct {
		Message string `yaml:"message"`
	}{
		Message: "hello world",
	}

	data, err := MarshalYAML(x)
	require.NoError(t, err)
	require.NoError(t, WriteFileAtomic(name, data, 0o600))

	st, err := os.Stat(name)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	got := &struct {
		Message string `yaml:"message"`
	}{}
	require.NoError(t, ReadYAMLFile(name, got))
	require.Equal(t, x, got)

	entries, err := os.ReadDir(filepath.Dir(name))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file should be renamed")
}
