package api

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Runtime DTOs

// StartRuntimeRequest — запрос на запуск runtime.
//
// Workspace можно не передавать, если он описан в файле workspace.
type StartRuntimeRequest struct {
	Workspace *domain.Workspace `json:"workspace,omitempty"`
	Env       string            `json:"env,omitempty"`
	Recover   bool              `json:"recover,omitempty"`
}

// RuntimeResponse — ответ с runtime.
type RuntimeResponse struct {
	WorkspaceID string            `json:"workspace_id"`
	Status      string            `json:"status"`
	EnvName     string            `json:"env_name"`
	DevMachine  *MachineResponse  `json:"dev_machine,omitempty"`
	Machines    []MachineResponse `json:"machines"`
	StartedAt   time.Time         `json:"started_at"`
}

// RuntimeFromDomain конвертирует domain.RuntimeDescriptor в RuntimeResponse.
func RuntimeFromDomain(d *domain.RuntimeDescriptor) RuntimeResponse {
	if d == nil {
		return RuntimeResponse{}
	}

	resp := RuntimeResponse{
		WorkspaceID: d.WorkspaceID,
		Status:      d.Status.String(),
		EnvName:     d.EnvName,
		Machines:    make([]MachineResponse, len(d.Machines)),
		StartedAt:   d.StartedAt,
	}
	for i, m := range d.Machines {
		resp.Machines[i] = MachineFromDomain(m)
	}
	if d.DevMachine != nil {
		dev := MachineFromDomain(*d.DevMachine)
		resp.DevMachine = &dev
	}
	return resp
}

// WorkspaceStateResponse — элемент списка workspace с runtime.
type WorkspaceStateResponse struct {
	WorkspaceID string `json:"workspace_id"`
	Status      string `json:"status"`
	EnvName     string `json:"env_name"`
}

// WorkspaceStatesFromDomain конвертирует карту состояний в список, отсортированный по id.
func WorkspaceStatesFromDomain(states map[string]domain.WorkspaceState) []WorkspaceStateResponse {
	result := make([]WorkspaceStateResponse, 0, len(states))
	for id, s := range states {
		result = append(result, WorkspaceStateResponse{
			WorkspaceID: id,
			Status:      s.Status.String(),
			EnvName:     s.EnvName,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkspaceID < result[j].WorkspaceID })
	return result
}

// Machine DTOs

// MachineResponse — ответ с машиной.
type MachineResponse struct {
	ID          string               `json:"id"`
	WorkspaceID string               `json:"workspace_id"`
	EnvName     string               `json:"env_name"`
	Name        string               `json:"name"`
	Dev         bool                 `json:"dev"`
	Config      domain.MachineConfig `json:"config"`
	Address     string               `json:"address,omitempty"`
	Ports       map[string]string    `json:"ports,omitempty"`
	Ready       bool                 `json:"ready"`
}

// MachineFromDomain конвертирует domain.Machine в MachineResponse.
func MachineFromDomain(m domain.Machine) MachineResponse {
	return MachineResponse{
		ID:          m.ID,
		WorkspaceID: m.WorkspaceID,
		EnvName:     m.EnvName,
		Name:        m.Config.Name,
		Dev:         m.Config.Dev,
		Config:      m.Config,
		Address:     m.Runtime.Address,
		Ports:       m.Runtime.Ports,
		Ready:       m.Runtime.Ready,
	}
}

// Snapshot DTOs

// SaveSnapshotRequest — запрос на сохранение snapshot.
type SaveSnapshotRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// SnapshotResponse — ответ со snapshot.
type SnapshotResponse struct {
	ID          uuid.UUID `json:"id"`
	ImageID     string    `json:"image_id"`
	Namespace   string    `json:"namespace"`
	WorkspaceID string    `json:"workspace_id"`
	EnvName     string    `json:"env_name"`
	MachineName string    `json:"machine_name"`
	Type        string    `json:"type"`
	Dev         bool      `json:"dev"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnapshotFromDomain конвертирует domain.Snapshot в SnapshotResponse.
func SnapshotFromDomain(s domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:          s.ID,
		ImageID:     s.ImageID,
		Namespace:   s.Namespace,
		WorkspaceID: s.WorkspaceID,
		EnvName:     s.EnvName,
		MachineName: s.MachineName,
		Type:        s.Type,
		Dev:         s.Dev,
		CreatedAt:   s.CreatedAt,
	}
}

// Event DTOs

// EventResponse — событие жизненного цикла.
type EventResponse struct {
	Type        string    `json:"type"`
	WorkspaceID string    `json:"workspace_id"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventFromDomain конвертирует domain.WorkspaceEvent в EventResponse.
func EventFromDomain(e domain.WorkspaceEvent) EventResponse {
	return EventResponse{
		Type:        string(e.Type),
		WorkspaceID: e.WorkspaceID,
		Error:       e.Error,
		Timestamp:   e.Timestamp,
	}
}
