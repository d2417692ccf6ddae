package domain

import "time"

// EventType — тип события жизненного цикла workspace.
type EventType string

// Типы событий.
const (
	EventStarting EventType = "STARTING"
	EventRunning  EventType = "RUNNING"
	EventStopping EventType = "STOPPING"
	EventStopped  EventType = "STOPPED"
	EventError    EventType = "ERROR"
)

// WorkspaceEvent — событие жизненного цикла runtime.
//
// Для одного workspace события публикуются строго в порядке:
// STARTING → RUNNING|ERROR при запуске и STOPPING → STOPPED|ERROR при остановке.
type WorkspaceEvent struct {
	// Type — тип события.
	Type EventType `json:"type"`

	// WorkspaceID — workspace, к которому относится событие.
	WorkspaceID string `json:"workspace_id"`

	// Error — сообщение об ошибке (только для ERROR).
	Error string `json:"error,omitempty"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// NewWorkspaceEvent создаёт событие с текущим временем.
func NewWorkspaceEvent(t EventType, workspaceID, errMsg string) WorkspaceEvent {
	return WorkspaceEvent{
		Type:        t,
		WorkspaceID: workspaceID,
		Error:       errMsg,
		Timestamp:   time.Now(),
	}
}
