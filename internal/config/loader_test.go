package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeEnvFile(t, dir, ".env", "PORT=8080\nDEBUG=true\n")

	env, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", env["PORT"])
	assert.Equal(t, "true", env["DEBUG"])
}

func TestLoadEnvFile_Empty(t *testing.T) {
	env, err := LoadEnvFile("")
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestLoadEnvFile_NotFound(t *testing.T) {
	_, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMergeEnv_Precedence(t *testing.T) {
	merged := MergeEnv(
		map[string]string{"A": "1", "B": "1"},
		map[string]string{"B": "2", "C": "2"},
		map[string]string{"C": "3"},
	)

	assert.Equal(t, "1", merged["A"])
	assert.Equal(t, "2", merged["B"])
	assert.Equal(t, "3", merged["C"])
}

func TestLoadServiceEnv_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, "global.env", "SHARED=global\nGLOBAL_ONLY=yes\n")
	writeEnvFile(t, dir, "service.env", "SHARED=service\nFILE_ONLY=yes\n")

	env, err := LoadServiceEnv("global.env", "service.env",
		map[string]string{"SHARED": "inline"}, dir)
	require.NoError(t, err)

	// Inline service env beats the service env file, which beats global
	assert.Equal(t, "inline", env["SHARED"])
	assert.Equal(t, "yes", env["GLOBAL_ONLY"])
	assert.Equal(t, "yes", env["FILE_ONLY"])
}

func TestLoadServiceEnv_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := writeEnvFile(t, dir, "abs.env", "KEY=value\n")

	env, err := LoadServiceEnv("", path, nil, "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "value", env["KEY"])
}
