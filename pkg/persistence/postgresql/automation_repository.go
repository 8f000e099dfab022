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

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

// GetByID returns an automation with its graph by id.
func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `
		SELECT
			id
		  , name
		  , trigger_type
		  , status
		  , graph
		  , created_at
		  , updated_at
		FROM automations
		WHERE id = $1
	`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

// ListActiveByTriggerType returns active automations enrollable for the
// given trigger event type.
func (r *AutomationRepository) ListActiveByTriggerType(ctx context.Context, triggerType string) ([]*models.Automation, error) {
	query := `
		SELECT
			id
		  , name
		  , trigger_type
		  , status
		  , graph
		  , created_at
		  , updated_at
		FROM automations
		WHERE trigger_type = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, triggerType, models.AutomationStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

// Save upserts an automation and its graph.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	if automation.Graph != nil {
		if err := automation.Graph.Validate(); err != nil {
			return fmt.Errorf("refusing to save automation: %w", err)
		}
	}

	now := time.Now().UTC()

	if automation.ID == "" {
		automation.ID = uuid.New().String()
	}

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	graphJSON, err := json.Marshal(automation.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	query := `
		INSERT INTO automations (id, name, trigger_type, status, graph, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			trigger_type = EXCLUDED.trigger_type,
			status = EXCLUDED.status,
			graph = EXCLUDED.graph,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.TriggerType,
		automation.Status,
		graphJSON,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation models.Automation
		graphJSON  []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.Name,
		&automation.TriggerType,
		&automation.Status,
		&graphJSON,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(graphJSON, &automation.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	return &automation, nil
}
