package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kodflow/daemon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/etc/getup/services", s.ServicesPath)
	assert.Equal(t, 3000, s.Port)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "getupd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
services_path = "/srv/services"
port = 9090
`), 0o644))

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/services", s.ServicesPath)
	assert.Equal(t, 9090, s.Port)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("GETUP_PORT", "1234")
	s, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 1234, s.Port)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load("/no/such/getupd.toml")
	assert.Error(t, err)
}

func TestValidateRejectsEmptyServicesPath(t *testing.T) {
	s := &config.Settings{ServicesPath: "", Port: 80}
	assert.Error(t, config.Validate(s))
}

func TestValidateRejectsBadPort(t *testing.T) {
	s := &config.Settings{ServicesPath: "/x", Port: 0}
	assert.Error(t, config.Validate(s))
}
