// Package loader scans a services directory for *.service unit files and
// parses them into unit.Unit values, grounded on the original
// Unit::from_unitfile logic (original_source/src/units.rs) but using
// gopkg.in/ini.v1 in place of the Rust ini crate.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/kodflow/daemon/internal/logging"
	"github.com/kodflow/daemon/internal/service"
	"github.com/kodflow/daemon/internal/unit"
)

// Loader walks a directory for *.service files and loads them into a
// Registry. It is also the Watcher's reload target: a repeated LoadAll is append-only,
// skipping any path the Registry already knows about (spec.md DESIGN NOTES
// open question: removed files are not reconciled).
type Loader struct {
	dir        string
	registry   *unit.Registry
	outputRoot string
}

// New creates a Loader scanning dir, registering units into registry, and
// (if outputRoot is non-empty) wiring each service's stdout through a
// logging.Writer rooted there.
func New(dir string, registry *unit.Registry, outputRoot string) *Loader {
	return &Loader{dir: dir, registry: registry, outputRoot: outputRoot}
}

// LoadAll scans the directory once, registering every *.service file not
// already present in the Registry. Returns the number of units newly
// loaded.
func (l *Loader) LoadAll() (int, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return 0, fmt.Errorf("services path %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("services path %s is not a directory", l.dir)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("reading services directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".service" {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		if l.registry.Has(path) {
			continue
		}

		u, err := loadUnitFile(path)
		if err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		if l.outputRoot != "" {
			capturePath := filepath.Join(l.outputRoot, u.Service.Name()+".out.log")
			w, err := logging.NewWriter(capturePath)
			if err != nil {
				return loaded, fmt.Errorf("opening capture file for %s: %w", u.Service.Name(), err)
			}
			u.Service.SetStdout(w)
		}
		l.registry.Add(u)
		loaded++
	}
	return loaded, nil
}

// loadUnitFile parses a single unit file. Required keys mirror
// Unit::from_unitfile: [Unit].Description and [Service].ExecStart. Every
// other key is optional and defaults the way the original Rust
// implementation's Service struct literal does.
func loadUnitFile(path string) (*unit.Unit, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parsing ini: %w", err)
	}

	unitSec := cfg.Section("Unit")
	serviceSec := cfg.Section("Service")
	installSec := cfg.Section("Install")

	description := unitSec.Key("Description").String()
	if description == "" {
		return nil, fmt.Errorf("missing Description in [Unit]")
	}

	execStart := serviceSec.Key("ExecStart").String()
	if execStart == "" {
		return nil, fmt.Errorf("missing ExecStart in [Service]")
	}

	restartPolicy := service.RestartOnFailure
	switch serviceSec.Key("Restart").String() {
	case "Always":
		restartPolicy = service.RestartAlways
	case "Never":
		restartPolicy = service.RestartNever
	case "OnFailure", "":
	default:
		return nil, fmt.Errorf("unknown Restart value %q", serviceSec.Key("Restart").String())
	}

	cfgSvc := service.Config{
		Name:                  filepath.Base(path),
		ServiceType:           serviceSec.Key("Type").String(),
		ExecStart:             execStart,
		ExecReload:            serviceSec.Key("ExecReload").String(),
		CapabilityBoundingSet: serviceSec.Key("CapabilityBoundingSet").String(),
		NoNewPrivs:            serviceSec.Key("NoNewPrivs").MustBool(false),
		RestartPolicy:         restartPolicy,
	}

	u := &unit.Unit{
		Path:          path,
		Description:   description,
		Documentation: unitSec.Key("Documentation").String(),
		Install: unit.Install{
			WantedBy: installSec.Key("WantedBy").String(),
			Alias:    installSec.Key("Alias").String(),
		},
		Service: service.New(cfgSvc),
		After:   splitNames(unitSec.Key("After").String()),
		Before:  splitNames(unitSec.Key("Before").String()),
		Wants:   splitNames(unitSec.Key("Wants").String()),
	}
	return u, nil
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
