package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Default configuration values.
const (
	defaultCleanupConcurrency = 4
)

// Orchestrator управляет runtime'ами workspace.
//
// Orchestrator — центральный компонент системы, который:
//   - Резервирует workspace в реестре до начала провизии
//   - Вызывает EnvironmentEngine для запуска и остановки машин
//   - Публикует события жизненного цикла в строгом порядке
//   - Удаляет запись из реестра при любой ошибке запуска
//   - Отказывает в новых запусках после Cleanup
type Orchestrator struct {
	// Collaborators
	engine    EnvironmentEngine
	publisher EventPublisher
	launcher  AgentLauncher
	metrics   Metrics

	// Runtime state
	registry *Registry
	locks    *keyedLocker

	// Configuration
	cleanupConcurrency int

	// Lifecycle
	logger     *slog.Logger
	stoppingMu sync.RWMutex
	stopping   bool
	inflight   sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Collaborators
	Engine        EnvironmentEngine
	Publisher     EventPublisher
	AgentLauncher AgentLauncher // optional
	Metrics       Metrics       // optional

	// CleanupConcurrency — сколько runtime останавливать параллельно в Cleanup (default: 4).
	CleanupConcurrency int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	cleanupConcurrency := cfg.CleanupConcurrency
	if cleanupConcurrency <= 0 {
		cleanupConcurrency = defaultCleanupConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var launcher AgentLauncher = noopLauncher{}
	if cfg.AgentLauncher != nil {
		launcher = cfg.AgentLauncher
	}

	var metrics Metrics = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	return &Orchestrator{
		engine:             cfg.Engine,
		publisher:          cfg.Publisher,
		launcher:           launcher,
		metrics:            metrics,
		registry:           NewRegistry(),
		locks:              newKeyedLocker(),
		cleanupConcurrency: cleanupConcurrency,
		logger:             logger,
	}
}

// Start запускает runtime workspace в окружении envName.
//
// Алгоритм:
//  1. Атомарно резервирует workspace записью STARTING
//  2. Публикует STARTING
//  3. Вызывает EnvironmentEngine.Start
//  4. Проверяет, что dev-машина ровно одна
//  5. При ошибке удаляет запись, публикует ERROR и возвращает ошибку
//  6. При успехе переводит запись в RUNNING и публикует RUNNING
func (o *Orchestrator) Start(ctx context.Context, ws *domain.Workspace, envName string, recoverState bool) (*domain.RuntimeDescriptor, error) {
	if ws == nil || ws.ID == "" {
		return nil, domain.ServerErrorf("workspace id is required")
	}

	if !o.beginStart() {
		return nil, errAppStopping()
	}
	defer o.inflight.Done()

	// Отключение клиента не прерывает провизию и публикацию ERROR
	ctx = context.WithoutCancel(ctx)

	env, ok := ws.Environment(envName)
	if !ok {
		if envName == "" {
			envName = ws.DefaultEnv
		}
		return nil, errEnvNotFound(ws.ID, envName)
	}

	// 1. Резервируем workspace
	placeholder := &domain.RuntimeDescriptor{
		WorkspaceID: ws.ID,
		Status:      domain.RuntimeStatusStarting,
		EnvName:     env.Name,
		Machines:    []domain.Machine{},
		StartedAt:   time.Now(),
	}
	if existing, inserted := o.registry.PutIfAbsent(placeholder); !inserted {
		return nil, errAlreadyHasRuntime(ws.ID, existing.Status)
	}
	o.metrics.SetActiveRuntimes(o.registry.Len())

	unlock := o.locks.Lock(ws.ID)
	defer unlock()

	logger := o.logger.With("workspace_id", ws.ID, "env", env.Name)
	logger.Info("starting workspace runtime", "recover", recoverState, "machines", len(env.Machines))

	// 2. STARTING до любого вызова движка
	o.publish(ctx, domain.EventStarting, ws.ID, "")

	// 3. Провизия
	machines, err := o.engine.Start(ctx, ws.ID, env, recoverState, func(m domain.Machine) {
		o.metrics.MachineStarted()
		logger.Debug("machine started",
			"machine_id", m.ID,
			"machine", m.Config.Name,
			"dev", m.Config.Dev,
		)
	})

	// 4. Проверка инварианта dev-машины
	var dev domain.Machine
	if err == nil {
		dev, err = resolveDevMachine(ws.ID, machines)
		if err != nil {
			o.teardownAfterFailure(ctx, ws.ID, logger)
		}
	}

	// 5. Ошибка: запись удаляется, публикуется ERROR
	if err != nil {
		o.registry.Remove(ws.ID)
		o.metrics.SetActiveRuntimes(o.registry.Len())
		o.publish(ctx, domain.EventError, ws.ID, err.Error())
		o.metrics.RuntimeStarted(resultError, time.Since(placeholder.StartedAt))

		logger.Error("workspace runtime failed to start", "error", err)
		return nil, domain.WrapServer(err)
	}

	// 6. RUNNING
	running := &domain.RuntimeDescriptor{
		WorkspaceID: ws.ID,
		Status:      domain.RuntimeStatusRunning,
		EnvName:     env.Name,
		DevMachine:  &dev,
		Machines:    machines,
		StartedAt:   placeholder.StartedAt,
	}
	if err := o.registry.Transition(running); err != nil {
		// Запись STARTING принадлежит этому вызову, сюда попасть нельзя.
		o.registry.Remove(ws.ID)
		o.publish(ctx, domain.EventError, ws.ID, err.Error())
		return nil, domain.WrapServer(err)
	}
	o.publish(ctx, domain.EventRunning, ws.ID, "")
	o.metrics.RuntimeStarted(resultSuccess, time.Since(placeholder.StartedAt))

	logger.Info("workspace runtime started",
		"dev_machine", dev.ID,
		"machines", len(machines),
		"duration", time.Since(placeholder.StartedAt),
	)

	unlock()

	// Агент — best effort, runtime не откатывается
	o.launchAgent(ctx, ws.ID, dev, logger)

	return running.Clone(), nil
}

// Stop останавливает runtime workspace.
//
// Запись никогда не остаётся в STOPPING: при ошибке движка публикуется
// ERROR и запись всё равно удаляется.
func (o *Orchestrator) Stop(ctx context.Context, workspaceID string) error {
	unlock := o.locks.Lock(workspaceID)
	defer unlock()

	return o.stopLocked(context.WithoutCancel(ctx), workspaceID)
}

// stopLocked выполняет остановку. Вызывается под блокировкой workspace.
func (o *Orchestrator) stopLocked(ctx context.Context, workspaceID string) error {
	desc, ok := o.registry.Get(workspaceID)
	if !ok {
		return errNotRunning(workspaceID)
	}
	if desc.Status != domain.RuntimeStatusRunning {
		return errCannotStop(workspaceID, desc.Status)
	}

	logger := o.logger.With("workspace_id", workspaceID, "env", desc.EnvName)

	desc.Status = domain.RuntimeStatusStopping
	if err := o.registry.Transition(desc); err != nil {
		return domain.WrapServer(err)
	}
	o.publish(ctx, domain.EventStopping, workspaceID, "")

	logger.Info("stopping workspace runtime", "machines", len(desc.Machines))

	if err := o.engine.Stop(ctx, workspaceID); err != nil {
		o.registry.Remove(workspaceID)
		o.metrics.SetActiveRuntimes(o.registry.Len())
		o.publish(ctx, domain.EventError, workspaceID, err.Error())
		o.metrics.RuntimeStopped(resultError)

		logger.Error("workspace runtime failed to stop", "error", err)
		return domain.WrapServer(err)
	}

	o.registry.Remove(workspaceID)
	o.metrics.SetActiveRuntimes(o.registry.Len())
	o.publish(ctx, domain.EventStopped, workspaceID, "")
	o.metrics.RuntimeStopped(resultSuccess)

	logger.Info("workspace runtime stopped")
	return nil
}

// Get возвращает descriptor runtime.
//
// Для RUNNING список машин перечитывается из движка под блокировкой
// workspace, поэтому статус и машины относятся к одному моменту времени.
func (o *Orchestrator) Get(ctx context.Context, workspaceID string) (*domain.RuntimeDescriptor, error) {
	desc, ok := o.registry.Get(workspaceID)
	if !ok {
		return nil, errNotRunning(workspaceID)
	}
	// STARTING и STOPPING отдаются без блокировки: её держит Start или Stop
	if desc.Status.IsTransient() {
		return desc, nil
	}

	unlock := o.locks.Lock(workspaceID)
	defer unlock()

	// Пока ждали блокировку, runtime могли остановить
	desc, ok = o.registry.Get(workspaceID)
	if !ok {
		return nil, errNotRunning(workspaceID)
	}
	if desc.Status != domain.RuntimeStatusRunning {
		return desc, nil
	}

	machines, err := o.engine.GetMachines(ctx, workspaceID)
	if err != nil {
		return nil, domain.WrapServer(err)
	}

	dev, err := resolveDevMachine(workspaceID, machines)
	if err != nil {
		return nil, err
	}

	desc.Machines = machines
	desc.DevMachine = &dev
	return desc.Clone(), nil
}

// HasRuntime проверяет, есть ли у workspace запись в реестре.
func (o *Orchestrator) HasRuntime(workspaceID string) bool {
	return o.registry.Has(workspaceID)
}

// GetWorkspaces возвращает снимок статусов всех runtime.
func (o *Orchestrator) GetWorkspaces() map[string]domain.WorkspaceState {
	return o.registry.States()
}

// Cleanup переводит оркестратор в режим остановки приложения.
//
// После вызова Start всегда возвращает ServerError. Cleanup ждёт
// завершения уже начатых запусков, останавливает оставшиеся RUNNING
// runtime и очищает реестр. Повторный вызов безопасен.
//
// ctx ограничивает только ожидание: начатые остановки не прерываются.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	o.stoppingMu.Lock()
	o.stopping = true
	o.stoppingMu.Unlock()

	o.logger.Info("cleaning up workspace runtimes...")

	// Ждём завершения начатых запусков
	o.inflight.Wait()

	ids := o.registry.IDs()
	p := pool.New().WithMaxGoroutines(o.cleanupConcurrency)
	for _, id := range ids {
		p.Go(func() {
			unlock := o.locks.Lock(id)
			defer unlock()

			desc, ok := o.registry.Get(id)
			if !ok || desc.Status != domain.RuntimeStatusRunning {
				return
			}
			if err := o.stopLocked(context.WithoutCancel(ctx), id); err != nil {
				o.logger.Warn("failed to stop runtime during cleanup",
					"workspace_id", id,
					"error", err,
				)
			}
		})
	}
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("cleanup deadline exceeded, runtimes are still stopping", "error", ctx.Err())
	}

	cleared := o.registry.Clear()
	o.metrics.SetActiveRuntimes(0)

	o.logger.Info("workspace runtimes cleaned up",
		"runtimes", len(ids),
		"cleared", cleared,
	)
}

// IsStopping проверяет, вызван ли Cleanup.
func (o *Orchestrator) IsStopping() bool {
	o.stoppingMu.RLock()
	defer o.stoppingMu.RUnlock()
	return o.stopping
}

// beginStart регистрирует начатый запуск. Возвращает false после Cleanup.
func (o *Orchestrator) beginStart() bool {
	o.stoppingMu.RLock()
	defer o.stoppingMu.RUnlock()

	if o.stopping {
		return false
	}
	o.inflight.Add(1)
	return true
}

// publish публикует событие. Ошибки публикации логируются и не прерывают операцию.
func (o *Orchestrator) publish(ctx context.Context, eventType domain.EventType, workspaceID, errMsg string) {
	event := domain.NewWorkspaceEvent(eventType, workspaceID, errMsg)
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish workspace event",
			"workspace_id", workspaceID,
			"type", eventType,
			"error", err,
		)
		return
	}
	o.metrics.EventPublished(eventType)
}

// teardownAfterFailure останавливает машины, поднятые до обнаружения ошибки.
func (o *Orchestrator) teardownAfterFailure(ctx context.Context, workspaceID string, logger *slog.Logger) {
	if err := o.engine.Stop(ctx, workspaceID); err != nil {
		logger.Warn("failed to tear down machines after start failure", "error", err)
	}
}

// launchAgent запускает агента на dev-машине.
func (o *Orchestrator) launchAgent(ctx context.Context, workspaceID string, dev domain.Machine, logger *slog.Logger) {
	if err := o.launcher.Launch(ctx, workspaceID, dev); err != nil {
		o.metrics.AgentLaunchFailed()
		logger.Warn("failed to launch agent on dev machine",
			"machine_id", dev.ID,
			"error", err,
		)
	}
}

// resolveDevMachine возвращает единственную dev-машину из списка.
func resolveDevMachine(workspaceID string, machines []domain.Machine) (domain.Machine, error) {
	devs := domain.FindDevMachines(machines)
	switch len(devs) {
	case 0:
		return domain.Machine{}, errDevMachineMissing(workspaceID)
	case 1:
		return devs[0], nil
	default:
		return domain.Machine{}, errTooManyDevMachines(workspaceID)
	}
}
