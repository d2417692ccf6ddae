package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Runtimes — операции оркестратора, доступные через API.
type Runtimes interface {
	Start(ctx context.Context, ws *domain.Workspace, envName string, recoverState bool) (*domain.RuntimeDescriptor, error)
	Stop(ctx context.Context, workspaceID string) error
	Get(ctx context.Context, workspaceID string) (*domain.RuntimeDescriptor, error)
	GetWorkspaces() map[string]domain.WorkspaceState
	StartMachine(ctx context.Context, workspaceID string, cfg domain.MachineConfig) (domain.Machine, error)
	StopMachine(ctx context.Context, workspaceID, machineID string) error
	GetMachine(ctx context.Context, workspaceID, machineID string) (domain.Machine, error)
	SaveMachine(ctx context.Context, namespace, workspaceID, machineID string) (domain.Snapshot, error)
	RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error
}

// SnapshotStore — хранилище метаданных snapshot'ов.
type SnapshotStore interface {
	Create(ctx context.Context, s *domain.Snapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventLog — журнал событий workspace.
type EventLog interface {
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]domain.WorkspaceEvent, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runtimes   Runtimes
	snapshots  SnapshotStore
	events     EventLog
	workspaces map[string]*domain.Workspace
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runtimes  Runtimes
	Snapshots SnapshotStore
	Events    EventLog

	// Workspaces — описания workspace для запуска по id (optional).
	Workspaces map[string]*domain.Workspace

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	workspaces := cfg.Workspaces
	if workspaces == nil {
		workspaces = make(map[string]*domain.Workspace)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		runtimes:   cfg.Runtimes,
		snapshots:  cfg.Snapshots,
		events:     cfg.Events,
		workspaces: workspaces,
		logger:     logger,
	}
}

// log возвращает логгер запроса, который положил Logging.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return requestLogger(r, h.logger)
}
