// Package unit defines the loaded service description (Unit) and the
// Unit Registry that holds the set of units known to the daemon.
package unit

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/kodflow/daemon/internal/service"
)

// Install carries the [Install] section of a unit file. Neither field is
// acted on by the supervisor; they are parsed and surfaced for inspection
// only (see spec.md Non-goals: enable/disable persistence).
type Install struct {
	WantedBy string `json:"wanted_by,omitempty"`
	Alias    string `json:"alias,omitempty"`
}

// Unit is a loaded service description: the pairing of descriptive
// metadata with a Service Runtime. A Unit is created once at load time
// and lives until process exit; it is never destroyed while the
// supervisor is running.
type Unit struct {
	// Path is the absolute path of the source unit file and is the Unit's
	// identity. Name lookup matches any unit whose Path ends with the
	// given suffix.
	Path          string
	Description   string
	Documentation string
	Install       Install
	Service       *service.Runtime

	// After, Before and Wants are weak references to other units, stored
	// as names and resolved through the Registry on demand rather than as
	// direct pointers, so the Unit graph cannot contain a reference cycle.
	// The core does not enforce ordering; these are parse-time data only.
	After  []string
	Before []string
	Wants  []string
}

// unitJSON is the wire shape for a single Unit, matching the registry
// serialization contract in spec.md §4.1: path, description,
// documentation, install, and an embedded service object. child and
// exit_status are never serialized.
type unitJSON struct {
	Path          string       `json:"path"`
	Description   string       `json:"description"`
	Documentation string       `json:"documentation"`
	Install       Install      `json:"install"`
	Service       serviceJSON  `json:"service"`
}

type serviceJSON struct {
	ServiceType           string                `json:"service_type"`
	ExecStart             string                `json:"exec_start"`
	ExecReload            string                `json:"exec_reload,omitempty"`
	Restart               *service.RestartPolicy `json:"restart,omitempty"`
	CapabilityBoundingSet string                `json:"capability_bounding_set,omitempty"`
	NoNewPrivs            bool                  `json:"no_new_privs"`
	CurrentState          string                `json:"current_state"`
	RestartPolicy         service.RestartPolicy `json:"restart_policy"`
}

// MarshalJSON renders the Unit per the registry serialization contract.
func (u *Unit) MarshalJSON() ([]byte, error) {
	snap := u.Service.Snapshot()
	return json.Marshal(unitJSON{
		Path:          u.Path,
		Description:   u.Description,
		Documentation: u.Documentation,
		Install:       u.Install,
		Service: serviceJSON{
			ServiceType:           snap.ServiceType,
			ExecStart:             snap.ExecStart,
			ExecReload:            snap.ExecReload,
			Restart:               snap.Restart,
			CapabilityBoundingSet: snap.CapabilityBoundingSet,
			NoNewPrivs:            snap.NoNewPrivs,
			CurrentState:          snap.CurrentState.String(),
			RestartPolicy:         snap.RestartPolicy,
		},
	})
}

// Registry is an ordered set of Units with a suffix-based name lookup.
// Mutated only by the Loader: Add appends at startup and on reload; reads
// (GetByName, Serialize) see a consistent snapshot via an RWMutex.
type Registry struct {
	mu    sync.RWMutex
	units []*Unit
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a unit to the registry.
func (r *Registry) Add(u *Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, u)
}

// Has reports whether a unit with the given path is already loaded, used
// by the Loader to make reload an append-only operation.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.units {
		if u.Path == path {
			return true
		}
	}
	return false
}

// GetByName returns the first unit whose Path ends with name. No fuzzy
// matching, no escaping, case-sensitive.
func (r *Registry) GetByName(name string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.units {
		if strings.HasSuffix(u.Path, name) {
			return u, true
		}
	}
	return nil, false
}

// All returns a snapshot slice of every loaded unit.
func (r *Registry) All() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Unit, len(r.units))
	copy(out, r.units)
	return out
}

// registrySnapshot is the wire shape of Serialize's output.
type registrySnapshot struct {
	Units []*Unit `json:"units"`
}

// Serialize produces the JSON document {"units":[...]} described in
// spec.md §4.1. It never fails for a consistent registry state.
func (r *Registry) Serialize() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(registrySnapshot{Units: r.units})
}
