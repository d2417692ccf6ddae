package orchestrator

import (
	"context"

	"github.com/shaiso/wsmaster/internal/domain"
)

// withRunning выполняет fn под блокировкой workspace, если его runtime в RUNNING.
func (o *Orchestrator) withRunning(workspaceID string, fn func(desc *domain.RuntimeDescriptor) error) error {
	unlock := o.locks.Lock(workspaceID)
	defer unlock()

	desc, ok := o.registry.Get(workspaceID)
	if !ok || desc.Status != domain.RuntimeStatusRunning {
		return errEnvNotRunning(workspaceID)
	}
	return fn(desc)
}

// StartMachine запускает дополнительную машину в работающем окружении.
// Dev-машина в окружении уже есть, поэтому конфигурация с Dev=true отклоняется.
func (o *Orchestrator) StartMachine(ctx context.Context, workspaceID string, cfg domain.MachineConfig) (domain.Machine, error) {
	var machine domain.Machine

	err := o.withRunning(workspaceID, func(desc *domain.RuntimeDescriptor) error {
		if cfg.Dev {
			return domain.Conflictf("Could not start machine '%s' in workspace '%s' because environment already has a dev machine", cfg.Name, workspaceID)
		}

		m, err := o.engine.StartMachine(ctx, workspaceID, cfg)
		if err != nil {
			return domain.WrapServer(err)
		}

		desc.Machines = append(desc.Machines, m)
		if err := o.registry.Transition(desc); err != nil {
			return domain.WrapServer(err)
		}

		o.metrics.MachineStarted()
		o.logger.Info("machine started",
			"workspace_id", workspaceID,
			"machine_id", m.ID,
			"machine", m.Config.Name,
		)

		machine = m
		return nil
	})
	if err != nil {
		return domain.Machine{}, err
	}
	return machine, nil
}

// StopMachine останавливает машину работающего окружения.
// Dev-машину остановить нельзя: для этого останавливается весь workspace.
func (o *Orchestrator) StopMachine(ctx context.Context, workspaceID, machineID string) error {
	return o.withRunning(workspaceID, func(desc *domain.RuntimeDescriptor) error {
		if m, ok := desc.Machine(machineID); ok && m.IsDev() {
			return domain.Conflictf("Stop of dev machine is not allowed. Stop workspace '%s' instead", workspaceID)
		}

		if err := o.engine.StopMachine(ctx, workspaceID, machineID); err != nil {
			return domain.WrapServer(err)
		}

		machines := make([]domain.Machine, 0, len(desc.Machines))
		for _, m := range desc.Machines {
			if m.ID != machineID {
				machines = append(machines, m)
			}
		}
		desc.Machines = machines
		if err := o.registry.Transition(desc); err != nil {
			return domain.WrapServer(err)
		}

		o.logger.Info("machine stopped",
			"workspace_id", workspaceID,
			"machine_id", machineID,
		)
		return nil
	})
}

// SaveMachine сохраняет snapshot машины работающего окружения.
func (o *Orchestrator) SaveMachine(ctx context.Context, namespace, workspaceID, machineID string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	err := o.withRunning(workspaceID, func(*domain.RuntimeDescriptor) error {
		s, err := o.engine.SaveSnapshot(ctx, namespace, workspaceID, machineID)
		if err != nil {
			return domain.WrapServer(err)
		}

		o.logger.Info("machine snapshot saved",
			"workspace_id", workspaceID,
			"machine_id", machineID,
			"snapshot_id", s.ID,
		)

		snapshot = s
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snapshot, nil
}

// RemoveSnapshot удаляет snapshot. Snapshot переживает runtime,
// поэтому работающее окружение не требуется.
func (o *Orchestrator) RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	if err := o.engine.RemoveSnapshot(ctx, snapshot); err != nil {
		return domain.WrapServer(err)
	}

	o.logger.Info("snapshot removed",
		"workspace_id", snapshot.WorkspaceID,
		"snapshot_id", snapshot.ID,
	)
	return nil
}

// GetMachine возвращает машину работающего окружения.
func (o *Orchestrator) GetMachine(ctx context.Context, workspaceID, machineID string) (domain.Machine, error) {
	var machine domain.Machine

	err := o.withRunning(workspaceID, func(*domain.RuntimeDescriptor) error {
		m, err := o.engine.GetMachine(ctx, workspaceID, machineID)
		if err != nil {
			return domain.WrapServer(err)
		}
		machine = m
		return nil
	})
	if err != nil {
		return domain.Machine{}, err
	}
	return machine, nil
}
