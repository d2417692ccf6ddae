package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

// SaveSnapshot сохраняет snapshot машины и записывает его метаданные.
// POST /api/v1/workspaces/{id}/machines/{mid}/snapshot
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SaveSnapshotRequest
	if err := decodeOptional(r, &req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		if ws, ok := h.workspaces[id]; ok {
			namespace = ws.Namespace
		}
	}

	snap, err := h.runtimes.SaveMachine(r.Context(), namespace, id, r.PathValue("mid"))
	if HandleError(w, h.log(r), err) {
		return
	}

	if err := h.snapshots.Create(r.Context(), &snap); err != nil {
		// Образ без записи в БД никто не удалит
		if rmErr := h.runtimes.RemoveSnapshot(context.WithoutCancel(r.Context()), snap); rmErr != nil {
			h.log(r).Warn("failed to remove orphaned snapshot image",
				"snapshot_id", snap.ID,
				"image", snap.ImageID,
				"error", rmErr,
			)
		}
		InternalError(w, h.log(r), err)
		return
	}

	Created(w, SnapshotFromDomain(snap))
}

// ListSnapshots возвращает snapshots workspace.
// GET /api/v1/workspaces/{id}/snapshots
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.snapshots.ListByWorkspace(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]SnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		result[i] = SnapshotFromDomain(s)
	}

	List(w, result, len(result))
}

// RemoveSnapshot удаляет образ snapshot и его запись.
// DELETE /api/v1/snapshots/{sid}
func (h *Handler) RemoveSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		BadRequest(w, "invalid snapshot id")
		return
	}

	snap, err := h.snapshots.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "snapshot not found") {
		return
	}

	if err := h.runtimes.RemoveSnapshot(r.Context(), *snap); HandleError(w, h.log(r), err) {
		return
	}

	if err := h.snapshots.Delete(r.Context(), id); HandleRepoError(w, h.log(r), err, "snapshot not found") {
		return
	}

	NoContent(w)
}

// ListEvents возвращает последние события workspace.
// GET /api/v1/workspaces/{id}/events?limit=...
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := h.events.ListByWorkspace(r.Context(), r.PathValue("id"), limit)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}

	List(w, result, len(result))
}
