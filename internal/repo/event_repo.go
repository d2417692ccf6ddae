package repo

import (
	"context"
	"fmt"

	"github.com/shaiso/wsmaster/internal/domain"
)

// EventRepo — журнал событий жизненного цикла workspace.
type EventRepo struct {
	db DBTX
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(db DBTX) *EventRepo {
	return &EventRepo{db: db}
}

// Append добавляет событие в журнал.
func (r *EventRepo) Append(ctx context.Context, e domain.WorkspaceEvent) error {
	query := `
		INSERT INTO workspace_events (workspace_id, type, error, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query,
		e.WorkspaceID,
		e.Type,
		nullString(e.Error),
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert workspace event: %w", err)
	}
	return nil
}

// ListByWorkspace возвращает последние limit событий workspace от старых к новым.
func (r *EventRepo) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]domain.WorkspaceEvent, error) {
	query := `
		SELECT workspace_id, type, error, created_at
		FROM (
			SELECT id, workspace_id, type, error, created_at
			FROM workspace_events
			WHERE workspace_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workspace events: %w", err)
	}
	defer rows.Close()

	var events []domain.WorkspaceEvent
	for rows.Next() {
		var (
			e      domain.WorkspaceEvent
			errMsg *string
		)
		if err := rows.Scan(&e.WorkspaceID, &e.Type, &errMsg, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan workspace event: %w", err)
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
