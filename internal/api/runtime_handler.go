package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/wsmaster/internal/domain"
)

// ListWorkspaces возвращает workspace, у которых есть runtime.
// GET /api/v1/workspaces?status=RUNNING
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	states := h.runtimes.GetWorkspaces()

	// Фильтр ?status=RUNNING
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.ParseRuntimeStatus(strings.ToUpper(v))
		if !strings.EqualFold(status.String(), v) {
			BadRequest(w, "invalid status: "+v)
			return
		}
		for id, s := range states {
			if s.Status != status {
				delete(states, id)
			}
		}
	}

	result := WorkspaceStatesFromDomain(states)
	List(w, result, len(result))
}

// StartRuntime запускает runtime workspace.
// POST /api/v1/workspaces/{id}/runtime
func (h *Handler) StartRuntime(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req StartRuntimeRequest
	if err := decodeOptional(r, &req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	ws, err := h.resolveWorkspace(id, req.Workspace)
	if err != nil {
		if errors.Is(err, errWorkspaceMismatch) {
			BadRequest(w, err.Error())
		} else {
			NotFound(w, err.Error())
		}
		return
	}

	desc, err := h.runtimes.Start(r.Context(), ws, req.Env, req.Recover)
	if HandleError(w, h.log(r), err) {
		return
	}

	Created(w, RuntimeFromDomain(desc))
}

// GetRuntime возвращает runtime workspace.
// GET /api/v1/workspaces/{id}/runtime
func (h *Handler) GetRuntime(w http.ResponseWriter, r *http.Request) {
	desc, err := h.runtimes.Get(r.Context(), r.PathValue("id"))
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, RuntimeFromDomain(desc))
}

// StopRuntime останавливает runtime workspace.
// DELETE /api/v1/workspaces/{id}/runtime
func (h *Handler) StopRuntime(w http.ResponseWriter, r *http.Request) {
	err := h.runtimes.Stop(r.Context(), r.PathValue("id"))
	if HandleError(w, h.log(r), err) {
		return
	}

	NoContent(w)
}

var errWorkspaceMismatch = errors.New("workspace id in body does not match path")

// resolveWorkspace берёт workspace из тела запроса или из каталога.
func (h *Handler) resolveWorkspace(id string, fromBody *domain.Workspace) (*domain.Workspace, error) {
	if fromBody != nil {
		ws := *fromBody
		if ws.ID == "" {
			ws.ID = id
		}
		if ws.ID != id {
			return nil, fmt.Errorf("%w: %s != %s", errWorkspaceMismatch, ws.ID, id)
		}
		return &ws, nil
	}

	ws, ok := h.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace '%s' is not defined", id)
	}
	return ws, nil
}

// decodeOptional декодирует JSON тело, пустое тело не ошибка.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
