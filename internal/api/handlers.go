package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kodflow/daemon/internal/control"
)

// errorBody is the shape of every non-2xx JSON response (spec.md S8).
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// root matches the original implementation's plain-text landing response.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "Try GET to /units")
}

// healthz reports liveness once the Supervisor Loop is consuming messages.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "supervisor not ready")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	data, err := h.registry.Serialize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, data)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	u, ok := h.registry.GetByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown unit %q", name))
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, data)
}

// postControl validates the named unit exists, then posts a Control
// Message and returns immediately without waiting for dispatch, per
// spec.md §4.6's fire-and-forget contract.
func (h *Handler) postControl(w http.ResponseWriter, r *http.Request, kind control.Kind) {
	name := chi.URLParam(r, "name")
	if _, ok := h.registry.GetByName(name); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown unit %q", name))
		return
	}
	h.channel.Post(control.Message{Kind: kind, Name: name})
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (h *Handler) startUnit(w http.ResponseWriter, r *http.Request) {
	h.postControl(w, r, control.Start)
}

func (h *Handler) stopUnit(w http.ResponseWriter, r *http.Request) {
	h.postControl(w, r, control.Stop)
}

func (h *Handler) restartUnit(w http.ResponseWriter, r *http.Request) {
	h.postControl(w, r, control.Restart)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	h.channel.Post(control.Message{Kind: control.Reload})
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	h.channel.Post(control.Message{Kind: control.Shutdown})
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
