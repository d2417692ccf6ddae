package domain

import "time"

// RuntimeDescriptor — текущая запись оркестратора о runtime одного workspace.
//
// Descriptor создаётся в момент принятия Start (статус STARTING),
// заменяется на RUNNING после успешной провизии и удаляется при остановке
// или любой ошибке запуска.
//
// Реестр хранит descriptor как неизменяемое значение: каждый переход
// статуса кладёт в реестр новую копию.
type RuntimeDescriptor struct {
	// WorkspaceID — workspace, которому принадлежит runtime.
	WorkspaceID string `json:"workspace_id"`

	// Status — текущий статус runtime.
	Status RuntimeStatus `json:"status"`

	// EnvName — активное окружение.
	EnvName string `json:"env_name"`

	// DevMachine — dev-машина. Nil, пока runtime не в RUNNING.
	DevMachine *Machine `json:"dev_machine,omitempty"`

	// Machines — все машины окружения.
	Machines []Machine `json:"machines"`

	// StartedAt — время принятия запуска.
	StartedAt time.Time `json:"started_at"`
}

// Clone возвращает глубокую копию descriptor.
func (d *RuntimeDescriptor) Clone() *RuntimeDescriptor {
	if d == nil {
		return nil
	}

	c := *d
	if d.Machines != nil {
		c.Machines = make([]Machine, len(d.Machines))
		for i, m := range d.Machines {
			c.Machines[i] = m.Clone()
		}
	}
	if d.DevMachine != nil {
		dev := d.DevMachine.Clone()
		c.DevMachine = &dev
	}
	return &c
}

// State возвращает облегчённое представление для списков.
func (d *RuntimeDescriptor) State() WorkspaceState {
	return WorkspaceState{Status: d.Status, EnvName: d.EnvName}
}

// Machine возвращает машину по ID.
func (d *RuntimeDescriptor) Machine(machineID string) (Machine, bool) {
	for _, m := range d.Machines {
		if m.ID == machineID {
			return m, true
		}
	}
	return Machine{}, false
}

// WorkspaceState — снимок статуса и активного окружения workspace.
type WorkspaceState struct {
	Status  RuntimeStatus `json:"status"`
	EnvName string        `json:"env_name"`
}

// FindDevMachines возвращает все dev-машины из списка.
func FindDevMachines(machines []Machine) []Machine {
	var devs []Machine
	for _, m := range machines {
		if m.IsDev() {
			devs = append(devs, m)
		}
	}
	return devs
}
