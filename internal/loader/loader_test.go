package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kodflow/daemon/internal/loader"
	"github.com/kodflow/daemon/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webService = `[Unit]
Description=Example web server
Documentation=https://example.invalid/docs
After=network.service

[Service]
Type=simple
ExecStart=/bin/sleep 3600
Restart=Always

[Install]
WantedBy=multi-user.target
`

func writeUnitFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAllRegistersUnits(t *testing.T) {
	dir := t.TempDir()
	writeUnitFile(t, dir, "web.service", webService)
	writeUnitFile(t, dir, "notes.txt", "ignored")

	reg := unit.NewRegistry()
	l := loader.New(dir, reg, "")

	n, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, ok := reg.GetByName("web.service")
	require.True(t, ok)
	assert.Equal(t, "Example web server", u.Description)
	assert.Equal(t, []string{"network.service"}, u.After)
}

func TestLoadAllIsAppendOnlyOnReload(t *testing.T) {
	dir := t.TempDir()
	writeUnitFile(t, dir, "web.service", webService)

	reg := unit.NewRegistry()
	l := loader.New(dir, reg, "")
	n1, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	writeUnitFile(t, dir, "worker.service", webService)
	n2, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n2)
	assert.Len(t, reg.All(), 2)
}

func TestLoadAllRejectsMissingExecStart(t *testing.T) {
	dir := t.TempDir()
	writeUnitFile(t, dir, "bad.service", "[Unit]\nDescription=x\n\n[Service]\nType=simple\n")

	reg := unit.NewRegistry()
	l := loader.New(dir, reg, "")
	_, err := l.LoadAll()
	assert.Error(t, err)
}

func TestLoadAllRejectsNonexistentDir(t *testing.T) {
	reg := unit.NewRegistry()
	l := loader.New("/no/such/dir", reg, "")
	_, err := l.LoadAll()
	assert.Error(t, err)
}
