package domain

// Типы источников машины.
const (
	// MachineSourceImage — машина создаётся из готового образа (Location = image ref).
	MachineSourceImage = "image"

	// MachineSourceDockerfile — сборка образа, движком не поддерживается.
	MachineSourceDockerfile = "dockerfile"
)

// MachineSource — откуда берётся образ машины.
type MachineSource struct {
	Type     string `json:"type" yaml:"type"`
	Location string `json:"location" yaml:"location"`
}

// MachineLimits — ограничения ресурсов машины.
type MachineLimits struct {
	// RAMMB — лимит памяти в мегабайтах (0 — без лимита).
	RAMMB int `json:"ram_mb,omitempty" yaml:"ram_mb,omitempty"`
}

// MachineConfig — неизменяемое описание машины в окружении.
type MachineConfig struct {
	// Name — имя машины, уникальное в пределах окружения.
	Name string `json:"name" yaml:"name"`

	// Type — тип машины ("docker").
	Type string `json:"type" yaml:"type"`

	// Source — источник образа.
	Source MachineSource `json:"source" yaml:"source"`

	// Limits — ограничения ресурсов.
	Limits MachineLimits `json:"limits" yaml:"limits"`

	// Dev — признак dev-машины. В окружении ровно одна такая машина.
	Dev bool `json:"dev" yaml:"dev"`

	// Ports — порты для публикации, например "4401/tcp".
	Ports []string `json:"ports,omitempty" yaml:"ports,omitempty"`

	// Env — переменные окружения контейнера.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// MachineRuntime — изменяемая информация о запущенной машине.
type MachineRuntime struct {
	// Address — адрес машины в сети движка.
	Address string `json:"address,omitempty"`

	// Ports — опубликованные порты: "4401/tcp" → "32768".
	Ports map[string]string `json:"ports,omitempty"`

	// Ready — машина запущена и готова.
	Ready bool `json:"ready"`
}

// Machine — запущенная машина workspace.
type Machine struct {
	// ID — идентификатор машины, назначается движком.
	ID string `json:"id"`

	// WorkspaceID — workspace, которому принадлежит машина.
	WorkspaceID string `json:"workspace_id"`

	// EnvName — окружение, в котором запущена машина.
	EnvName string `json:"env_name"`

	// Config — конфигурация, из которой создана машина.
	Config MachineConfig `json:"config"`

	// Runtime — сетевая информация и готовность.
	Runtime MachineRuntime `json:"runtime"`
}

// IsDev возвращает true для dev-машины.
func (m Machine) IsDev() bool {
	return m.Config.Dev
}

// Clone возвращает копию машины, не разделяющую maps и slices с оригиналом.
func (m Machine) Clone() Machine {
	c := m
	c.Config = m.Config.Clone()
	if m.Runtime.Ports != nil {
		c.Runtime.Ports = make(map[string]string, len(m.Runtime.Ports))
		for k, v := range m.Runtime.Ports {
			c.Runtime.Ports[k] = v
		}
	}
	return c
}

// Clone возвращает глубокую копию конфигурации.
func (c MachineConfig) Clone() MachineConfig {
	out := c
	if c.Ports != nil {
		out.Ports = append([]string(nil), c.Ports...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}
