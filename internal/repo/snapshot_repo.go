package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/wsmaster/internal/domain"
)

// SnapshotRepo — репозиторий snapshot'ов машин.
type SnapshotRepo struct {
	db DBTX
}

// NewSnapshotRepo создаёт новый SnapshotRepo.
func NewSnapshotRepo(db DBTX) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

const snapshotColumns = `id, image_id, namespace, workspace_id, env_name, machine_name, machine_type, dev, created_at`

// Create сохраняет snapshot.
func (r *SnapshotRepo) Create(ctx context.Context, s *domain.Snapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.ImageID,
		s.Namespace,
		s.WorkspaceID,
		s.EnvName,
		s.MachineName,
		s.Type,
		s.Dev,
		s.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByID возвращает snapshot по ID.
func (r *SnapshotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = $1`

	s, err := scanSnapshot(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return s, nil
}

// ListByWorkspace возвращает snapshot'ы workspace, новые первыми.
func (r *SnapshotRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, workspaceID)
}

// Latest возвращает последний snapshot машины окружения.
// Используется движком при восстановлении (recover).
func (r *SnapshotRepo) Latest(ctx context.Context, workspaceID, envName, machineName string) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE workspace_id = $1 AND env_name = $2 AND machine_name = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	s, err := scanSnapshot(r.db.QueryRow(ctx, query, workspaceID, envName, machineName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return s, nil
}

// ListOlderThan возвращает snapshot'ы, созданные раньше before.
// Snapshot'ы с неудачной попыткой очистки идут последними, самые давние попытки раньше.
func (r *SnapshotRepo) ListOlderThan(ctx context.Context, before time.Time, limit int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE created_at < $1
		ORDER BY prune_failed_at ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, before, limit)
}

// MarkPruneFailed запоминает время неудачной попытки очистки snapshot'а.
func (r *SnapshotRepo) MarkPruneFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE snapshots SET prune_failed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark prune failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет snapshot.
func (r *SnapshotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SnapshotRepo) list(ctx context.Context, query string, args ...any) ([]domain.Snapshot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// scanSnapshot сканирует строку в Snapshot. pgx.Rows тоже реализует pgx.Row.
func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := row.Scan(
		&s.ID,
		&s.ImageID,
		&s.Namespace,
		&s.WorkspaceID,
		&s.EnvName,
		&s.MachineName,
		&s.Type,
		&s.Dev,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
