package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Registry — потокобезопасное отображение workspaceID → RuntimeDescriptor.
//
// Descriptor'ы хранятся как неизменяемые значения: каждая запись кладёт
// новую копию, каждое чтение возвращает копию. Мьютекс удерживается только
// на время операций с map и никогда на время вызовов движка.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*domain.RuntimeDescriptor
}

// NewRegistry создаёт пустой Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*domain.RuntimeDescriptor),
	}
}

// PutIfAbsent атомарно добавляет descriptor, если для workspace ещё нет записи.
// Если запись есть, возвращает её копию и false.
func (r *Registry) PutIfAbsent(desc *domain.RuntimeDescriptor) (*domain.RuntimeDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.entries[desc.WorkspaceID]; exists {
		return existing.Clone(), false
	}

	r.entries[desc.WorkspaceID] = desc.Clone()
	return nil, true
}

// Transition заменяет descriptor, проверяя допустимость перехода статуса.
// Смена состава машин без смены статуса тоже допустима.
func (r *Registry) Transition(next *domain.RuntimeDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.entries[next.WorkspaceID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuntimeNotRegistered, next.WorkspaceID)
	}

	if current.Status != next.Status && !current.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, next.Status)
	}

	r.entries[next.WorkspaceID] = next.Clone()
	return nil
}

// Get возвращает копию descriptor.
func (r *Registry) Get(workspaceID string) (*domain.RuntimeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.entries[workspaceID]
	if !exists {
		return nil, false
	}
	return desc.Clone(), true
}

// Has проверяет наличие записи.
func (r *Registry) Has(workspaceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[workspaceID]
	return exists
}

// Remove удаляет запись. Возвращает false, если записи не было.
func (r *Registry) Remove(workspaceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[workspaceID]; !exists {
		return false
	}
	delete(r.entries, workspaceID)
	return true
}

// States возвращает согласованный снимок статусов всех workspace.
func (r *Registry) States() map[string]domain.WorkspaceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]domain.WorkspaceState, len(r.entries))
	for id, desc := range r.entries {
		states[id] = desc.State()
	}
	return states
}

// IDs возвращает отсортированный список workspace с записями.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len возвращает количество записей.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear удаляет все записи и возвращает их количество.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[string]*domain.RuntimeDescriptor)
	return n
}
