package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// ExecutionLogRepository handles the per-(execution, node) attempt log.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// MarkStarted upserts the started row for an attempt. Re-running a node
// whose prior attempt failed overwrites the old attempt row.
func (r *ExecutionLogRepository) MarkStarted(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO automation_logs (execution_id, node_id, action_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, node_id) DO UPDATE SET
			action_type = EXCLUDED.action_type,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = NULL,
			metadata = NULL
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ExecutionID,
		entry.NodeID,
		entry.ActionType,
		models.LogStatusStarted,
		entry.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark log started: %w", err)
	}

	return nil
}

// MarkCompleted finalizes the attempt row with success or failure and the
// action result metadata.
func (r *ExecutionLogRepository) MarkCompleted(ctx context.Context, executionID, nodeID string, status models.LogStatus, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}

	query := `
		UPDATE automation_logs SET
			status = $3,
			completed_at = $4,
			metadata = $5
		WHERE execution_id = $1 AND node_id = $2
	`

	_, err = r.db.ExecContext(ctx, query, executionID, nodeID, status, time.Now().UTC(), metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to mark log completed: %w", err)
	}

	return nil
}

// HasSucceeded reports whether a success row exists for (execution, node).
// This is the idempotency check guarding every side effect.
func (r *ExecutionLogRepository) HasSucceeded(ctx context.Context, executionID, nodeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM automation_logs
			WHERE execution_id = $1 AND node_id = $2 AND status = $3
		)
	`

	var succeeded bool

	err := r.db.QueryRowContext(ctx, query, executionID, nodeID, models.LogStatusSuccess).Scan(&succeeded)
	if err != nil {
		return false, fmt.Errorf("failed to query log success: %w", err)
	}

	return succeeded, nil
}

// ListByExecution returns all attempt rows for an execution in start order.
func (r *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `
		SELECT execution_id, node_id, action_type, status, started_at, completed_at, metadata
		FROM automation_logs
		WHERE execution_id = $1
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			entry        models.ExecutionLog
			actionType   sql.NullString
			metadataJSON []byte
		)

		err = rows.Scan(
			&entry.ExecutionID,
			&entry.NodeID,
			&actionType,
			&entry.Status,
			&entry.StartedAt,
			&entry.CompletedAt,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}

		entry.ActionType = actionType.String

		if len(metadataJSON) > 0 {
			err = json.Unmarshal(metadataJSON, &entry.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
			}
		}

		logs = append(logs, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return logs, nil
}
