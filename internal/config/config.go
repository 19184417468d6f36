// Package config provides the daemon's Settings type and TOML parsing with
// GETUP_* environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the daemon's top-level configuration, loaded from a TOML file
// and then overridden field-by-field by GETUP_* environment variables.
type Settings struct {
	// ServicesPath is the directory the Loader scans for *.service files.
	ServicesPath string `toml:"services_path"`
	// Stdout is the base directory service stdout capture files are
	// written under, one file per unit.
	Stdout string `toml:"stdout"`
	// Stderr is unused: stderr is always inherited from the daemon
	// (spec.md §4.2) and never captured to a file. Kept for forward
	// compatibility with config files that set it.
	Stderr string `toml:"stderr"`
	// PIDFile is where the daemon writes its own pid, per spec.md §6.
	PIDFile string `toml:"pidfile"`
	// WorkDir is the daemon's working directory.
	WorkDir string `toml:"workdir"`
	// Port is the TCP port the control HTTP API listens on.
	Port int `toml:"port"`
}

// defaults mirror the original implementation's hardcoded paths, now
// expressed as TOML defaults instead (see SPEC_FULL.md's DOMAIN STACK
// section for why TOML rather than the teacher's own YAML).
func defaults() Settings {
	return Settings{
		ServicesPath: "/etc/getup/services",
		Stdout:       "/var/log/getup",
		PIDFile:      "/run/getupd.pid",
		WorkDir:      "/",
		Port:         3000,
	}
}

// Load reads and parses a TOML settings file, falling back to built-in
// defaults for any field the file doesn't set, then applies GETUP_*
// environment variable overrides.
func Load(path string) (*Settings, error) {
	s := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	}

	applyEnvOverrides(&s)

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &s, nil
}

// applyEnvOverrides lets the environment win over both the file and the
// built-in defaults, per SPEC_FULL.md's ambient configuration section.
func applyEnvOverrides(s *Settings) {
	if v, ok := os.LookupEnv("GETUP_SERVICES_PATH"); ok {
		s.ServicesPath = v
	}
	if v, ok := os.LookupEnv("GETUP_STDOUT"); ok {
		s.Stdout = v
	}
	if v, ok := os.LookupEnv("GETUP_PIDFILE"); ok {
		s.PIDFile = v
	}
	if v, ok := os.LookupEnv("GETUP_WORKDIR"); ok {
		s.WorkDir = v
	}
	if v, ok := os.LookupEnv("GETUP_PORT"); ok {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			s.Port = port
		}
	}
}
