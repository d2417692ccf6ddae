package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/wsmaster/internal/domain"
)

// StartMachine добавляет машину в работающий runtime.
// POST /api/v1/workspaces/{id}/machines
func (h *Handler) StartMachine(w http.ResponseWriter, r *http.Request) {
	var cfg domain.MachineConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if cfg.Name == "" {
		BadRequest(w, "machine name is required")
		return
	}

	m, err := h.runtimes.StartMachine(r.Context(), r.PathValue("id"), cfg)
	if HandleError(w, h.log(r), err) {
		return
	}

	Created(w, MachineFromDomain(m))
}

// GetMachine возвращает машину runtime.
// GET /api/v1/workspaces/{id}/machines/{mid}
func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	m, err := h.runtimes.GetMachine(r.Context(), r.PathValue("id"), r.PathValue("mid"))
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, MachineFromDomain(m))
}

// StopMachine останавливает машину runtime.
// DELETE /api/v1/workspaces/{id}/machines/{mid}
func (h *Handler) StopMachine(w http.ResponseWriter, r *http.Request) {
	err := h.runtimes.StopMachine(r.Context(), r.PathValue("id"), r.PathValue("mid"))
	if HandleError(w, h.log(r), err) {
		return
	}

	NoContent(w)
}
