package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/wsmaster/internal/domain"
	"github.com/shaiso/wsmaster/internal/repo"
)

// LockKey — ключ advisory lock для очистки.
const LockKey int64 = 424243

const defaultBatchSize = 100

// SnapshotSource — хранилище метаданных snapshot'ов.
type SnapshotSource interface {
	// ListOlderThan отдаёт snapshot'ы с неудачной очисткой после остальных.
	ListOlderThan(ctx context.Context, before time.Time, limit int) ([]domain.Snapshot, error)
	MarkPruneFailed(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SnapshotRemover удаляет образ snapshot в движке.
type SnapshotRemover interface {
	RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error
}

// Locker — межпроцессная блокировка (leader election).
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Config — конфигурация Janitor.
type Config struct {
	Snapshots SnapshotSource
	Remover   SnapshotRemover

	// Retention — snapshot'ы старше удаляются.
	Retention time.Duration

	// BatchSize — количество snapshot'ов за один тик (default: 100).
	BatchSize int

	// Lock — блокировка между экземплярами (optional).
	Lock Locker

	Logger *slog.Logger
}

// Result — итог одного тика.
type Result struct {
	Found   int
	Removed int
	Failed  int
}

// Janitor удаляет snapshot'ы старше Retention.
type Janitor struct {
	snapshots SnapshotSource
	remover   SnapshotRemover
	retention time.Duration
	batchSize int
	lock      Locker
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт новый Janitor.
func New(cfg Config) *Janitor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		snapshots: cfg.Snapshots,
		remover:   cfg.Remover,
		retention: cfg.Retention,
		batchSize: batchSize,
		lock:      cfg.Lock,
		logger:    logger,
		now:       time.Now,
	}
}

// Tick выполняет один проход очистки.
//
// 1. Находит snapshot'ы старше retention
// 2. Удаляет образ в движке
// 3. Удаляет запись
//
// Ошибка одного snapshot не блокирует обработку остальных: запись
// остаётся, помечается и уходит в конец очереди следующих тиков.
func (j *Janitor) Tick(ctx context.Context) (Result, error) {
	before := j.now().Add(-j.retention)

	snapshots, err := j.snapshots.ListOlderThan(ctx, before, j.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list expired snapshots: %w", err)
	}

	res := Result{Found: len(snapshots)}
	if res.Found == 0 {
		return res, nil
	}

	for _, s := range snapshots {
		if err := j.prune(ctx, s); err != nil {
			j.logger.Error("failed to prune snapshot",
				"snapshot_id", s.ID,
				"workspace_id", s.WorkspaceID,
				"image", s.ImageID,
				"error", err,
			)
			res.Failed++
			if err := j.snapshots.MarkPruneFailed(ctx, s.ID, j.now()); err != nil && !errors.Is(err, repo.ErrNotFound) {
				j.logger.Warn("failed to mark snapshot prune failure", "snapshot_id", s.ID, "error", err)
			}
			continue
		}
		res.Removed++
	}

	j.logger.Info("janitor tick completed",
		"expired", res.Found,
		"removed", res.Removed,
		"failed", res.Failed,
	)

	return res, nil
}

func (j *Janitor) prune(ctx context.Context, s domain.Snapshot) error {
	if err := j.remover.RemoveSnapshot(ctx, s); err != nil {
		return fmt.Errorf("remove image: %w", err)
	}

	err := j.snapshots.Delete(ctx, s.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Run запускает очистку по cron-расписанию и блокируется до отмены ctx.
func (j *Janitor) Run(ctx context.Context, schedule string) error {
	logger := cronLogger{logger: j.logger}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(schedule, func() { j.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", schedule, err)
	}

	if next, err := NextRun(schedule, j.now()); err == nil {
		j.logger.Info("janitor scheduled", "schedule", schedule, "next_run", next)
	}

	c.Start()
	<-ctx.Done()

	// Дожидаемся текущего прохода
	<-c.Stop().Done()

	if j.lock != nil {
		if err := j.lock.Unlock(context.Background()); err != nil {
			j.logger.Warn("failed to release janitor lock", "error", err)
		}
	}
	return nil
}

// runOnce выполняет тик, если этот экземпляр — лидер.
func (j *Janitor) runOnce(ctx context.Context) {
	if j.lock != nil {
		ok, err := j.lock.TryLock(ctx)
		if err != nil {
			j.logger.Error("janitor lock error", "error", err)
			return
		}
		if !ok {
			// не лидер — пропускаем тик
			j.logger.Debug("janitor lock is held by another instance")
			return
		}
	}

	if _, err := j.Tick(ctx); err != nil {
		j.logger.Error("janitor tick failed", "error", err)
	}
}
