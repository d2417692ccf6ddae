package events

import (
	"context"
	"sync"

	"github.com/shaiso/wsmaster/internal/domain"
)

// defaultHistorySize — сколько последних событий хранится на workspace.
const defaultHistorySize = 100

// History хранит последние события каждого workspace в памяти.
// Используется API, когда журнал событий в БД не подключён.
type History struct {
	mu     sync.RWMutex
	size   int
	events map[string][]domain.WorkspaceEvent
}

// NewHistory создаёт History на size событий на workspace (default: 100).
func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{
		size:   size,
		events: make(map[string][]domain.WorkspaceEvent),
	}
}

// Record — Subscriber, сохраняющий событие.
func (h *History) Record(_ context.Context, event domain.WorkspaceEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.events[event.WorkspaceID], event)
	if len(list) > h.size {
		list = list[len(list)-h.size:]
	}
	h.events[event.WorkspaceID] = list
	return nil
}

// List возвращает события workspace от старых к новым.
func (h *History) List(workspaceID string) []domain.WorkspaceEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := h.events[workspaceID]
	out := make([]domain.WorkspaceEvent, len(list))
	copy(out, list)
	return out
}

// ListByWorkspace возвращает последние limit событий workspace от старых к новым.
func (h *History) ListByWorkspace(_ context.Context, workspaceID string, limit int) ([]domain.WorkspaceEvent, error) {
	list := h.List(workspaceID)
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}
