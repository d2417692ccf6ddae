package domain

// Environment — именованный набор машин, образующих один runtime workspace.
type Environment struct {
	// Name — имя окружения ("default", "ci").
	Name string `json:"name" yaml:"name"`

	// Machines — конфигурации машин окружения.
	Machines []MachineConfig `json:"machines" yaml:"machines"`
}

// DevMachineConfig возвращает конфигурацию dev-машины окружения.
func (e Environment) DevMachineConfig() (MachineConfig, bool) {
	for _, m := range e.Machines {
		if m.Dev {
			return m, true
		}
	}
	return MachineConfig{}, false
}

// Workspace — описание workspace, передаваемое вызывающей стороной.
//
// Конфигурация workspace здесь не хранится: оркестратор получает её
// при каждом запуске.
type Workspace struct {
	// ID — уникальный идентификатор workspace.
	ID string `json:"id" yaml:"id"`

	// Namespace — владелец workspace (используется для имён snapshot'ов).
	Namespace string `json:"namespace" yaml:"namespace"`

	// DefaultEnv — окружение по умолчанию.
	DefaultEnv string `json:"default_env" yaml:"default_env"`

	// Environments — доступные окружения.
	Environments []Environment `json:"environments" yaml:"environments"`
}

// Environment возвращает окружение по имени.
// Пустое имя означает окружение по умолчанию.
func (w *Workspace) Environment(name string) (Environment, bool) {
	if name == "" {
		name = w.DefaultEnv
	}
	for _, env := range w.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return Environment{}, false
}
