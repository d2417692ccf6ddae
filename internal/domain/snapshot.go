package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot — сохранённый образ состояния машины.
//
// Snapshot создаётся через SaveMachine и переживает runtime:
// его можно использовать для восстановления (recover) после остановки.
type Snapshot struct {
	// ID — уникальный идентификатор snapshot.
	ID uuid.UUID `json:"id"`

	// ImageID — идентификатор образа в движке.
	ImageID string `json:"image_id"`

	// Namespace — владелец workspace.
	Namespace string `json:"namespace"`

	// WorkspaceID — workspace, машина которого сохранена.
	WorkspaceID string `json:"workspace_id"`

	// EnvName — окружение машины.
	EnvName string `json:"env_name"`

	// MachineName — имя машины из MachineConfig.
	MachineName string `json:"machine_name"`

	// Type — тип машины.
	Type string `json:"type"`

	// Dev — snapshot dev-машины.
	Dev bool `json:"dev"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Age возвращает возраст snapshot относительно now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
