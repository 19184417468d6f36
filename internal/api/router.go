// Package api implements the daemon's HTTP control surface: reads of the
// Unit Registry happen directly, and every mutation is submitted as a
// fire-and-forget Control Message (spec.md §4.6).
package api

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kodflow/daemon/internal/control"
	"github.com/kodflow/daemon/internal/unit"
)

// Handler holds the collaborators the HTTP surface needs: read access to
// the Registry and a way to post Control Messages.
type Handler struct {
	registry *unit.Registry
	channel  *control.Channel
	ready    *atomic.Bool
}

// NewRouter builds the full chi route table described in SPEC_FULL.md §6.
func NewRouter(registry *unit.Registry, channel *control.Channel, ready *atomic.Bool) http.Handler {
	h := &Handler{registry: registry, channel: channel, ready: ready}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/", h.root)
	r.Get("/healthz", h.healthz)
	r.Get("/units", h.listUnits)
	r.Get("/unit/{name}", h.getUnit)
	r.Post("/unit/{name}/start", h.startUnit)
	r.Post("/unit/{name}/stop", h.stopUnit)
	r.Post("/unit/{name}/restart", h.restartUnit)
	r.Post("/reload", h.reload)
	r.Post("/shutdown", h.shutdown)

	r.NotFound(h.notFound)

	return r
}
