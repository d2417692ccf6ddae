package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sourcegraph/conc/pool"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Default configuration values.
const (
	defaultStopTimeout     = 10 * time.Second
	defaultStopConcurrency = 4
)

// DockerClient — используемое подмножество Docker API.
// *client.Client реализует его.
type DockerClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerCommit(ctx context.Context, containerID string, options container.CommitOptions) (types.IDResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	Close() error
}

// SnapshotLookup находит последний snapshot машины для восстановления.
// Отсутствие snapshot — (nil, nil).
type SnapshotLookup interface {
	Latest(ctx context.Context, workspaceID, envName, machineName string) (*domain.Snapshot, error)
}

// SnapshotLookupFunc — функция как SnapshotLookup.
type SnapshotLookupFunc func(ctx context.Context, workspaceID, envName, machineName string) (*domain.Snapshot, error)

// Latest вызывает f.
func (f SnapshotLookupFunc) Latest(ctx context.Context, workspaceID, envName, machineName string) (*domain.Snapshot, error) {
	return f(ctx, workspaceID, envName, machineName)
}

// Config — конфигурация Engine.
type Config struct {
	// Client — Docker API.
	Client DockerClient

	// Network — сеть контейнеров (пусто — сеть по умолчанию).
	Network string

	// StopTimeout — время на остановку контейнера до SIGKILL (default: 10s).
	StopTimeout time.Duration

	// Snapshots — источник snapshot'ов для recover (optional).
	Snapshots SnapshotLookup

	// Logger
	Logger *slog.Logger
}

// Engine запускает машины окружений как Docker контейнеры.
type Engine struct {
	client      DockerClient
	network     string
	stopTimeout time.Duration
	snapshots   SnapshotLookup
	logger      *slog.Logger

	mu   sync.Mutex
	envs map[string]*envState
}

// envState — запущенное окружение workspace.
type envState struct {
	name     string
	machines []machineState
}

// machineState — контейнер машины.
type machineState struct {
	id  string
	cfg domain.MachineConfig
}

// NewDockerClient создаёт клиент из DOCKER_HOST и прочих стандартных переменных.
// Непустой host переопределяет DOCKER_HOST.
func NewDockerClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client:      cfg.Client,
		network:     cfg.Network,
		stopTimeout: stopTimeout,
		snapshots:   cfg.Snapshots,
		logger:      logger,
		envs:        make(map[string]*envState),
	}
}

// Start запускает все машины окружения, dev-машину первой.
//
// recoverState=true: существующие контейнеры окружения переподключаются,
// для остальных машин образ берётся из последнего snapshot, если он есть.
// Иначе оставшиеся от прошлых запусков контейнеры workspace удаляются.
//
// При ошибке уже поднятые контейнеры удаляются.
func (e *Engine) Start(ctx context.Context, workspaceID string, env domain.Environment, recoverState bool, onMachineStarted func(domain.Machine)) ([]domain.Machine, error) {
	if err := ValidateEnvironment(env); err != nil {
		return nil, err
	}

	e.mu.Lock()
	_, running := e.envs[workspaceID]
	e.mu.Unlock()
	if running {
		return nil, domain.Conflictf("Environment of workspace '%s' is already running", workspaceID)
	}

	logger := e.logger.With("workspace_id", workspaceID, "env", env.Name)

	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: workspaceFilter(workspaceID, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	existing := make(map[string]string) // machine name → container ID
	for _, c := range containers {
		if recoverState && c.Labels[LabelEnv] == env.Name {
			existing[c.Labels[LabelMachine]] = c.ID
			continue
		}
		logger.Info("removing stale container", "container_id", c.ID)
		if err := e.removeContainer(ctx, c.ID); err != nil {
			logger.Warn("failed to remove stale container", "container_id", c.ID, "error", err)
		}
	}

	state := &envState{name: env.Name}
	machines := make([]domain.Machine, 0, len(env.Machines))

	for _, cfg := range devFirst(env.Machines) {
		var m domain.Machine
		if id, ok := existing[cfg.Name]; ok {
			delete(existing, cfg.Name)
			m, err = e.reattach(ctx, workspaceID, env.Name, cfg, id)
		} else {
			m, err = e.createMachine(ctx, workspaceID, env.Name, cfg, e.imageFor(ctx, workspaceID, env.Name, cfg, recoverState, logger))
		}
		if err != nil {
			e.removeMachines(ctx, state.machines, logger)
			return nil, fmt.Errorf("start machine %s: %w", cfg.Name, err)
		}

		state.machines = append(state.machines, machineState{id: m.ID, cfg: cfg.Clone()})
		machines = append(machines, m)

		logger.Info("machine started",
			"machine_id", m.ID,
			"machine", cfg.Name,
			"dev", cfg.Dev,
		)
		if onMachineStarted != nil {
			onMachineStarted(m)
		}
	}

	// Контейнеры машин, которых больше нет в конфигурации
	for name, id := range existing {
		logger.Info("removing container of unknown machine", "machine", name, "container_id", id)
		if err := e.removeContainer(ctx, id); err != nil {
			logger.Warn("failed to remove container", "container_id", id, "error", err)
		}
	}

	e.mu.Lock()
	e.envs[workspaceID] = state
	e.mu.Unlock()

	return machines, nil
}

// StartMachine добавляет машину в работающее окружение.
func (e *Engine) StartMachine(ctx context.Context, workspaceID string, cfg domain.MachineConfig) (domain.Machine, error) {
	if err := ValidateMachine(cfg); err != nil {
		return domain.Machine{}, err
	}

	e.mu.Lock()
	state, ok := e.envs[workspaceID]
	var (
		envName   string
		duplicate bool
	)
	if ok {
		envName = state.name
		duplicate = slices.ContainsFunc(state.machines, func(ms machineState) bool { return ms.cfg.Name == cfg.Name })
	}
	e.mu.Unlock()

	if !ok {
		return domain.Machine{}, errEnvNotRunning(workspaceID)
	}
	if duplicate {
		return domain.Machine{}, domain.Conflictf("Machine with name '%s' already exists in environment of workspace '%s'", cfg.Name, workspaceID)
	}

	m, err := e.createMachine(ctx, workspaceID, envName, cfg, cfg.Source.Location)
	if err != nil {
		return domain.Machine{}, fmt.Errorf("start machine %s: %w", cfg.Name, err)
	}

	e.mu.Lock()
	if state, ok := e.envs[workspaceID]; ok {
		state.machines = append(state.machines, machineState{id: m.ID, cfg: cfg.Clone()})
	}
	e.mu.Unlock()

	return m, nil
}

// StopMachine останавливает и удаляет контейнер машины.
func (e *Engine) StopMachine(ctx context.Context, workspaceID, machineID string) error {
	if _, err := e.lookup(workspaceID, machineID); err != nil {
		return err
	}

	if err := e.removeContainer(ctx, machineID); err != nil {
		return err
	}

	e.mu.Lock()
	if state, ok := e.envs[workspaceID]; ok {
		state.machines = slices.DeleteFunc(state.machines, func(ms machineState) bool { return ms.id == machineID })
	}
	e.mu.Unlock()

	return nil
}

// Stop останавливает и удаляет все контейнеры окружения.
// Запись об окружении удаляется даже при ошибке.
func (e *Engine) Stop(ctx context.Context, workspaceID string) error {
	e.mu.Lock()
	state, ok := e.envs[workspaceID]
	delete(e.envs, workspaceID)
	e.mu.Unlock()

	if !ok {
		return errEnvNotRunning(workspaceID)
	}

	logger := e.logger.With("workspace_id", workspaceID, "env", state.name)
	return e.removeMachines(ctx, state.machines, logger)
}

// GetMachines возвращает актуальное состояние машин окружения.
// Машины, чьи контейнеры исчезли, не попадают в результат.
func (e *Engine) GetMachines(ctx context.Context, workspaceID string) ([]domain.Machine, error) {
	e.mu.Lock()
	state, ok := e.envs[workspaceID]
	var (
		envName  string
		snapshot []machineState
	)
	if ok {
		envName = state.name
		snapshot = slices.Clone(state.machines)
	}
	e.mu.Unlock()

	if !ok {
		return nil, errEnvNotRunning(workspaceID)
	}

	machines := make([]domain.Machine, 0, len(snapshot))
	for _, ms := range snapshot {
		m, err := e.inspectMachine(ctx, workspaceID, envName, ms.cfg, ms.id)
		if errdefs.IsNotFound(err) {
			e.logger.Warn("machine container disappeared",
				"workspace_id", workspaceID,
				"machine_id", ms.id,
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, nil
}

// GetMachine возвращает актуальное состояние одной машины.
func (e *Engine) GetMachine(ctx context.Context, workspaceID, machineID string) (domain.Machine, error) {
	ms, err := e.lookup(workspaceID, machineID)
	if err != nil {
		return domain.Machine{}, err
	}

	m, err := e.inspectMachine(ctx, workspaceID, ms.envName, ms.cfg, machineID)
	if errdefs.IsNotFound(err) {
		return domain.Machine{}, errMachineNotFound(workspaceID, machineID)
	}
	return m, err
}

// SaveSnapshot сохраняет файловую систему контейнера машины в образ.
func (e *Engine) SaveSnapshot(ctx context.Context, namespace, workspaceID, machineID string) (domain.Snapshot, error) {
	ms, err := e.lookup(workspaceID, machineID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := time.Now().UTC()
	ref := snapshotReference(namespace, workspaceID, ms.cfg.Name, now)

	resp, err := e.client.ContainerCommit(ctx, machineID, container.CommitOptions{
		Reference: ref,
		Comment:   fmt.Sprintf("snapshot of machine %s in workspace %s", ms.cfg.Name, workspaceID),
		Pause:     true,
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("commit container %s: %w", machineID, err)
	}

	e.logger.Info("machine snapshot created",
		"workspace_id", workspaceID,
		"machine_id", machineID,
		"image", ref,
	)

	return domain.Snapshot{
		ID:          uuid.New(),
		ImageID:     resp.ID,
		Namespace:   namespace,
		WorkspaceID: workspaceID,
		EnvName:     ms.envName,
		MachineName: ms.cfg.Name,
		Type:        ms.cfg.Type,
		Dev:         ms.cfg.Dev,
		CreatedAt:   now,
	}, nil
}

// RemoveSnapshot удаляет образ snapshot. Отсутствующий образ не ошибка.
func (e *Engine) RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	_, err := e.client.ImageRemove(ctx, snapshot.ImageID, image.RemoveOptions{PruneChildren: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove image %s: %w", snapshot.ImageID, err)
	}
	return nil
}

// Close закрывает Docker клиент.
func (e *Engine) Close() error {
	return e.client.Close()
}

// --- internals ---

type lookedUpMachine struct {
	envName string
	cfg     domain.MachineConfig
}

// lookup находит машину работающего окружения.
func (e *Engine) lookup(workspaceID, machineID string) (lookedUpMachine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.envs[workspaceID]
	if !ok {
		return lookedUpMachine{}, errEnvNotRunning(workspaceID)
	}
	for _, ms := range state.machines {
		if ms.id == machineID {
			return lookedUpMachine{envName: state.name, cfg: ms.cfg}, nil
		}
	}
	return lookedUpMachine{}, errMachineNotFound(workspaceID, machineID)
}

// imageFor выбирает образ машины: последний snapshot при recover, иначе образ из конфигурации.
func (e *Engine) imageFor(ctx context.Context, workspaceID, envName string, cfg domain.MachineConfig, recoverState bool, logger *slog.Logger) string {
	if !recoverState || e.snapshots == nil {
		return cfg.Source.Location
	}

	s, err := e.snapshots.Latest(ctx, workspaceID, envName, cfg.Name)
	if err != nil {
		logger.Warn("failed to look up snapshot, starting from source image",
			"machine", cfg.Name,
			"error", err,
		)
		return cfg.Source.Location
	}
	if s == nil {
		return cfg.Source.Location
	}

	logger.Info("recovering machine from snapshot",
		"machine", cfg.Name,
		"snapshot_id", s.ID,
		"image", s.ImageID,
	)
	return s.ImageID
}

// createMachine создаёт и запускает контейнер машины.
func (e *Engine) createMachine(ctx context.Context, workspaceID, envName string, cfg domain.MachineConfig, imageRef string) (domain.Machine, error) {
	if err := e.ensureImage(ctx, imageRef); err != nil {
		return domain.Machine{}, err
	}

	exposed := nat.PortSet{}
	for _, raw := range cfg.Ports {
		port, err := parsePort(raw)
		if err != nil {
			return domain.Machine{}, err
		}
		exposed[port] = struct{}{}
	}

	containerConfig := &container.Config{
		Image:        imageRef,
		Env:          envList(cfg.Env),
		Labels:       machineLabels(workspaceID, envName, cfg),
		ExposedPorts: exposed,
		Tty:          true,
	}
	hostConfig := &container.HostConfig{
		PublishAllPorts: len(exposed) > 0,
		Resources: container.Resources{
			Memory: int64(cfg.Limits.RAMMB) * 1024 * 1024,
		},
	}
	if e.network != "" {
		hostConfig.NetworkMode = container.NetworkMode(e.network)
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return domain.Machine{}, fmt.Errorf("create container: %w", err)
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		e.removeQuietly(ctx, resp.ID)
		return domain.Machine{}, fmt.Errorf("start container: %w", err)
	}

	m, err := e.inspectMachine(ctx, workspaceID, envName, cfg, resp.ID)
	if err != nil {
		e.removeQuietly(ctx, resp.ID)
		return domain.Machine{}, err
	}
	return m, nil
}

// reattach подхватывает существующий контейнер, запуская его при необходимости.
func (e *Engine) reattach(ctx context.Context, workspaceID, envName string, cfg domain.MachineConfig, containerID string) (domain.Machine, error) {
	m, err := e.inspectMachine(ctx, workspaceID, envName, cfg, containerID)
	if err != nil {
		return domain.Machine{}, err
	}
	if m.Runtime.Ready {
		return m, nil
	}

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return domain.Machine{}, fmt.Errorf("start container: %w", err)
	}
	return e.inspectMachine(ctx, workspaceID, envName, cfg, containerID)
}

// ensureImage скачивает образ, если его нет локально.
func (e *Engine) ensureImage(ctx context.Context, ref string) error {
	_, _, err := e.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image %s: %w", ref, err)
	}

	e.logger.Info("pulling image", "image", ref)
	reader, err := e.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// Pull завершается, когда поток прочитан до конца
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// inspectMachine строит Machine по состоянию контейнера.
func (e *Engine) inspectMachine(ctx context.Context, workspaceID, envName string, cfg domain.MachineConfig, containerID string) (domain.Machine, error) {
	info, err := e.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return domain.Machine{}, fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	m := domain.Machine{
		ID:          containerID,
		WorkspaceID: workspaceID,
		EnvName:     envName,
		Config:      cfg.Clone(),
	}

	if info.ContainerJSONBase != nil && info.State != nil {
		m.Runtime.Ready = info.State.Running
	}

	if ns := info.NetworkSettings; ns != nil {
		m.Runtime.Address = ns.IPAddress
		if m.Runtime.Address == "" {
			names := make([]string, 0, len(ns.Networks))
			for name := range ns.Networks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if ep := ns.Networks[name]; ep != nil && ep.IPAddress != "" {
					m.Runtime.Address = ep.IPAddress
					break
				}
			}
		}

		for port, bindings := range ns.Ports {
			if len(bindings) == 0 {
				continue
			}
			if m.Runtime.Ports == nil {
				m.Runtime.Ports = make(map[string]string)
			}
			m.Runtime.Ports[string(port)] = bindings[0].HostPort
		}
	}

	return m, nil
}

// removeMachines удаляет контейнеры параллельно, dev-машину последней.
func (e *Engine) removeMachines(ctx context.Context, machines []machineState, logger *slog.Logger) error {
	var dev []machineState
	p := pool.New().WithErrors().WithMaxGoroutines(defaultStopConcurrency)
	for _, ms := range machines {
		if ms.cfg.Dev {
			dev = append(dev, ms)
			continue
		}
		p.Go(func() error {
			return e.removeLogged(ctx, ms, logger)
		})
	}
	err := p.Wait()

	for _, ms := range dev {
		err = errors.Join(err, e.removeLogged(ctx, ms, logger))
	}
	return err
}

func (e *Engine) removeLogged(ctx context.Context, ms machineState, logger *slog.Logger) error {
	if err := e.removeContainer(ctx, ms.id); err != nil {
		logger.Warn("failed to remove machine container",
			"machine_id", ms.id,
			"machine", ms.cfg.Name,
			"error", err,
		)
		return fmt.Errorf("machine %s: %w", ms.cfg.Name, err)
	}
	logger.Info("machine stopped", "machine_id", ms.id, "machine", ms.cfg.Name)
	return nil
}

// removeContainer останавливает и удаляет контейнер. Отсутствующий контейнер не ошибка.
func (e *Engine) removeContainer(ctx context.Context, containerID string) error {
	timeout := int(e.stopTimeout.Seconds())
	err := e.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("stop container %s: %w", containerID, err)
	}

	err = e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

// removeQuietly удаляет контейнер после неудачного запуска.
func (e *Engine) removeQuietly(ctx context.Context, containerID string) {
	if err := e.removeContainer(ctx, containerID); err != nil {
		e.logger.Warn("failed to remove container", "container_id", containerID, "error", err)
	}
}

// devFirst возвращает конфигурации с dev-машинами в начале, порядок остальных сохраняется.
func devFirst(configs []domain.MachineConfig) []domain.MachineConfig {
	out := make([]domain.MachineConfig, 0, len(configs))
	for _, c := range configs {
		if c.Dev {
			out = append(out, c)
		}
	}
	for _, c := range configs {
		if !c.Dev {
			out = append(out, c)
		}
	}
	return out
}

// envList переводит map в KEY=VALUE, отсортированный по ключу.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

func errEnvNotRunning(workspaceID string) error {
	return domain.NotFoundf("Environment of workspace '%s' is not running", workspaceID)
}

func errMachineNotFound(workspaceID, machineID string) error {
	return domain.NotFoundf("Machine '%s' is not found in workspace '%s'", machineID, workspaceID)
}
