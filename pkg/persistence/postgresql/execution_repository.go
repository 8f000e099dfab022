package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , automation_id
  , contact_id
  , current_node_id
  , context
  , status
  , wake_up_time
  , last_error
  , unique_event_id
  , created_at
  , completed_at
`

// GetByID returns an execution by id.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM automation_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// Create inserts a new execution row. A duplicate unique_event_id maps to
// ErrExecutionAlreadyExists so enrollment stays idempotent.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	query := `
		INSERT INTO automation_executions (
			id, automation_id, contact_id, current_node_id, context,
			status, wake_up_time, last_error, unique_event_id, created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (unique_event_id) WHERE unique_event_id IS NOT NULL AND unique_event_id <> ''
		DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.AutomationID,
		execution.ContactID,
		execution.CurrentNodeID,
		contextJSON,
		execution.Status,
		execution.WakeUpTime,
		execution.LastError,
		nullableString(execution.UniqueEventID),
		execution.CreatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}

	if inserted == 0 {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	return nil
}

// SavePointer atomically updates the execution's progress fields. This is
// the single write path the orchestrator uses to advance, pause, complete
// or fail an execution.
func (r *ExecutionRepository) SavePointer(ctx context.Context, execution *models.Execution) error {
	query := `
		UPDATE automation_executions SET
			current_node_id = $2,
			context = $3,
			status = $4,
			wake_up_time = $5,
			last_error = $6,
			completed_at = $7
		WHERE id = $1
	`

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.CurrentNodeID,
		contextJSON,
		execution.Status,
		execution.WakeUpTime,
		execution.LastError,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if updated == 0 {
		return persistence.NewExecutionError("SavePointer", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// FindByUniqueEventID returns the execution enrolled for the given
// (event, automation) pair.
func (r *ExecutionRepository) FindByUniqueEventID(ctx context.Context, uniqueEventID string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM automation_executions WHERE unique_event_id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, uniqueEventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("FindByUniqueEventID", uniqueEventID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ListDueWakeUps returns paused executions whose wake_up_time has elapsed.
func (r *ExecutionRepository) ListDueWakeUps(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM automation_executions
		WHERE status = $1 AND wake_up_time IS NOT NULL AND wake_up_time <= $2
		ORDER BY wake_up_time
	`

	return r.list(ctx, query, models.ExecutionStatusPaused, now)
}

// ListPausedByContact returns paused executions for one contact.
func (r *ExecutionRepository) ListPausedByContact(ctx context.Context, contactID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM automation_executions
		WHERE status = $1 AND contact_id = $2
	`

	return r.list(ctx, query, models.ExecutionStatusPaused, contactID)
}

// ListActiveByContact returns non-terminal executions for a contact in one
// automation.
func (r *ExecutionRepository) ListActiveByContact(ctx context.Context, automationID, contactID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM automation_executions
		WHERE automation_id = $1 AND contact_id = $2 AND status IN ($3, $4)
	`

	return r.list(ctx, query, automationID, contactID, models.ExecutionStatusActive, models.ExecutionStatusPaused)
}

func (r *ExecutionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution     models.Execution
		contextJSON   []byte
		contactID     sql.NullString
		uniqueEventID sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.AutomationID,
		&contactID,
		&execution.CurrentNodeID,
		&contextJSON,
		&execution.Status,
		&execution.WakeUpTime,
		&execution.LastError,
		&uniqueEventID,
		&execution.CreatedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ContactID = contactID.String
	execution.UniqueEventID = uniqueEventID.String

	err = json.Unmarshal(contextJSON, &execution.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	return &execution, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}
