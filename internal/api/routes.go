package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Logging(h.logger),
		Recovery(h.logger),
	)

	// Runtimes
	mux.Handle("GET /api/v1/workspaces", chain(http.HandlerFunc(h.ListWorkspaces)))
	mux.Handle("POST /api/v1/workspaces/{id}/runtime", chain(http.HandlerFunc(h.StartRuntime)))
	mux.Handle("GET /api/v1/workspaces/{id}/runtime", chain(http.HandlerFunc(h.GetRuntime)))
	mux.Handle("DELETE /api/v1/workspaces/{id}/runtime", chain(http.HandlerFunc(h.StopRuntime)))

	// Machines
	mux.Handle("POST /api/v1/workspaces/{id}/machines", chain(http.HandlerFunc(h.StartMachine)))
	mux.Handle("GET /api/v1/workspaces/{id}/machines/{mid}", chain(http.HandlerFunc(h.GetMachine)))
	mux.Handle("DELETE /api/v1/workspaces/{id}/machines/{mid}", chain(http.HandlerFunc(h.StopMachine)))
	mux.Handle("POST /api/v1/workspaces/{id}/machines/{mid}/snapshot", chain(http.HandlerFunc(h.SaveSnapshot)))

	// Snapshots
	mux.Handle("GET /api/v1/workspaces/{id}/snapshots", chain(http.HandlerFunc(h.ListSnapshots)))
	mux.Handle("DELETE /api/v1/snapshots/{sid}", chain(http.HandlerFunc(h.RemoveSnapshot)))

	// Events
	mux.Handle("GET /api/v1/workspaces/{id}/events", chain(http.HandlerFunc(h.ListEvents)))
}
