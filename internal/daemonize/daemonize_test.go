package daemonize_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kodflow/daemon/internal/daemonize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesPIDFileInForeground(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "getupd.pid")

	err := daemonize.Run(daemonize.Options{PIDFile: pidPath})
	require.NoError(t, err)

	data, err := os.ReadFile(pidPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n")
}

func TestRunChangesWorkDir(t *testing.T) {
	original, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(original) })

	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	require.NoError(t, daemonize.Run(daemonize.Options{WorkDir: dir}))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, resolved, wd)
}

func TestRemovePIDFileIgnoresMissing(t *testing.T) {
	assert.NoError(t, daemonize.RemovePIDFile(filepath.Join(t.TempDir(), "missing.pid")))
}
