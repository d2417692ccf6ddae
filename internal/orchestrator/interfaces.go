package orchestrator

import (
	"context"
	"time"

	"github.com/shaiso/wsmaster/internal/domain"
)

// EnvironmentEngine провизионирует и уничтожает машины окружения workspace.
//
// Все методы блокирующие: вызов возвращается, когда движок закончил работу.
type EnvironmentEngine interface {
	// Start запускает все машины окружения.
	// recoverState=true — переподключиться к существующему состоянию вместо создания с нуля.
	// onMachineStarted вызывается для каждой поднятой машины.
	Start(ctx context.Context, workspaceID string, env domain.Environment, recoverState bool, onMachineStarted func(domain.Machine)) ([]domain.Machine, error)

	// StartMachine добавляет машину в работающее окружение.
	StartMachine(ctx context.Context, workspaceID string, cfg domain.MachineConfig) (domain.Machine, error)

	// StopMachine останавливает одну машину окружения.
	StopMachine(ctx context.Context, workspaceID, machineID string) error

	// Stop останавливает все машины окружения.
	Stop(ctx context.Context, workspaceID string) error

	// GetMachines возвращает актуальный список машин.
	GetMachines(ctx context.Context, workspaceID string) ([]domain.Machine, error)

	// GetMachine возвращает машину по ID.
	GetMachine(ctx context.Context, workspaceID, machineID string) (domain.Machine, error)

	// SaveSnapshot сохраняет состояние машины.
	SaveSnapshot(ctx context.Context, namespace, workspaceID, machineID string) (domain.Snapshot, error)

	// RemoveSnapshot удаляет сохранённый образ.
	RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error
}

// EventPublisher доставляет события жизненного цикла подписчикам в порядке публикации.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.WorkspaceEvent) error
}

// AgentLauncher запускает агента на dev-машине после старта runtime.
type AgentLauncher interface {
	Launch(ctx context.Context, workspaceID string, devMachine domain.Machine) error
}

// Metrics — метрики оркестратора.
type Metrics interface {
	RuntimeStarted(result string, duration time.Duration)
	RuntimeStopped(result string)
	SetActiveRuntimes(n int)
	MachineStarted()
	AgentLaunchFailed()
	EventPublished(eventType domain.EventType)
}

// Результаты операций для метрик.
const (
	resultSuccess = "success"
	resultError   = "error"
)

type noopLauncher struct{}

func (noopLauncher) Launch(context.Context, string, domain.Machine) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RuntimeStarted(string, time.Duration) {}
func (noopMetrics) RuntimeStopped(string)                {}
func (noopMetrics) SetActiveRuntimes(int)                {}
func (noopMetrics) MachineStarted()                      {}
func (noopMetrics) AgentLaunchFailed()                   {}
func (noopMetrics) EventPublished(domain.EventType)      {}
