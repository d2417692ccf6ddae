package domain

// RuntimeStatus — статус runtime workspace.
//
// Жизненный цикл:
//
//	STOPPED → STARTING → RUNNING → STOPPING → STOPPED
//	          STARTING|RUNNING ↘ ERROR (сразу удаляется из реестра)
type RuntimeStatus string

const (
	// RuntimeStatusStopped — runtime отсутствует.
	RuntimeStatusStopped RuntimeStatus = "STOPPED"

	// RuntimeStatusStarting — запуск принят, машины провизионируются.
	RuntimeStatusStarting RuntimeStatus = "STARTING"

	// RuntimeStatusRunning — все машины запущены, dev-машина на месте.
	RuntimeStatusRunning RuntimeStatus = "RUNNING"

	// RuntimeStatusStopping — машины останавливаются.
	RuntimeStatusStopping RuntimeStatus = "STOPPING"

	// RuntimeStatusError — запуск или остановка упали.
	RuntimeStatusError RuntimeStatus = "ERROR"
)

// String возвращает строковое представление RuntimeStatus.
func (s RuntimeStatus) String() string {
	return string(s)
}

// IsTransient возвращает true для промежуточных статусов.
func (s RuntimeStatus) IsTransient() bool {
	return s == RuntimeStatusStarting || s == RuntimeStatusStopping
}

// CanTransitionTo проверяет, допустим ли переход из s в next.
func (s RuntimeStatus) CanTransitionTo(next RuntimeStatus) bool {
	switch s {
	case RuntimeStatusStopped:
		return next == RuntimeStatusStarting
	case RuntimeStatusStarting:
		return next == RuntimeStatusRunning || next == RuntimeStatusError
	case RuntimeStatusRunning:
		return next == RuntimeStatusStopping || next == RuntimeStatusError
	case RuntimeStatusStopping:
		return next == RuntimeStatusStopped || next == RuntimeStatusError
	default:
		return false
	}
}

// ParseRuntimeStatus парсит строку в RuntimeStatus.
func ParseRuntimeStatus(s string) RuntimeStatus {
	switch s {
	case "STARTING":
		return RuntimeStatusStarting
	case "RUNNING":
		return RuntimeStatusRunning
	case "STOPPING":
		return RuntimeStatusStopping
	case "ERROR":
		return RuntimeStatusError
	default:
		return RuntimeStatusStopped
	}
}
