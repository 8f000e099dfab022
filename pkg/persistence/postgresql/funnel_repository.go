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

// FunnelRepository handles funnel analytics database operations.
type FunnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFunnelRepository creates a new funnel repository.
func NewFunnelRepository(db *sql.DB, logger *slog.Logger) *FunnelRepository {
	return &FunnelRepository{db: db, logger: logger}
}

// GetByAutomationID returns the funnel attached to an automation.
func (r *FunnelRepository) GetByAutomationID(ctx context.Context, automationID string) (*models.Funnel, error) {
	query := `
		SELECT id, automation_id, conversion_goal_event, settings
		FROM funnels
		WHERE automation_id = $1
	`

	var (
		funnel       models.Funnel
		goalEvent    sql.NullString
		settingsJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, automationID).Scan(
		&funnel.ID,
		&funnel.AutomationID,
		&goalEvent,
		&settingsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFunnelNotFound
		}

		return nil, fmt.Errorf("failed to scan funnel: %w", err)
	}

	funnel.ConversionGoalEvent = goalEvent.String

	if len(settingsJSON) > 0 {
		err = json.Unmarshal(settingsJSON, &funnel.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal funnel settings: %w", err)
		}
	}

	return &funnel, nil
}

// GetFunnelByID returns one funnel by primary key.
func (r *FunnelRepository) GetFunnelByID(ctx context.Context, funnelID string) (*models.Funnel, error) {
	query := `
		SELECT id, automation_id, conversion_goal_event, settings
		FROM funnels
		WHERE id = $1
	`

	var (
		funnel       models.Funnel
		goalEvent    sql.NullString
		settingsJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, funnelID).Scan(
		&funnel.ID,
		&funnel.AutomationID,
		&goalEvent,
		&settingsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFunnelNotFound
		}

		return nil, fmt.Errorf("failed to scan funnel: %w", err)
	}

	funnel.ConversionGoalEvent = goalEvent.String

	if len(settingsJSON) > 0 {
		err = json.Unmarshal(settingsJSON, &funnel.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal funnel settings: %w", err)
		}
	}

	return &funnel, nil
}

// GetOrCreateStep lazily materializes the per-(funnel, node) step record.
// Concurrent first visits race benignly: the unique constraint makes the
// loser re-read the winner's row.
func (r *FunnelRepository) GetOrCreateStep(ctx context.Context, step *models.FunnelStep) (*models.FunnelStep, error) {
	existing, err := r.getStepByFunnelAndNode(ctx, step.FunnelID, step.NodeID)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, persistence.ErrFunnelStepNotFound) {
		return nil, err
	}

	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	metricsJSON, err := json.Marshal(step.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step metrics: %w", err)
	}

	query := `
		INSERT INTO funnel_steps (id, funnel_id, node_id, name, step_type, step_order, template_id, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (funnel_id, node_id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.FunnelID,
		step.NodeID,
		step.Name,
		step.StepType,
		step.StepOrder,
		nullableString(step.TemplateID),
		metricsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create funnel step: %w", err)
	}

	return r.getStepByFunnelAndNode(ctx, step.FunnelID, step.NodeID)
}

// GetStepByID returns one funnel step.
func (r *FunnelRepository) GetStepByID(ctx context.Context, stepID string) (*models.FunnelStep, error) {
	query := stepSelect + ` WHERE id = $1`

	return r.scanStepRow(r.db.QueryRowContext(ctx, query, stepID))
}

const stepSelect = `
	SELECT id, funnel_id, node_id, name, step_type, step_order, template_id, metrics
	FROM funnel_steps
`

func (r *FunnelRepository) getStepByFunnelAndNode(ctx context.Context, funnelID, nodeID string) (*models.FunnelStep, error) {
	query := stepSelect + ` WHERE funnel_id = $1 AND node_id = $2`

	return r.scanStepRow(r.db.QueryRowContext(ctx, query, funnelID, nodeID))
}

func (r *FunnelRepository) scanStepRow(row rowScanner) (*models.FunnelStep, error) {
	var (
		step        models.FunnelStep
		stepType    sql.NullString
		templateID  sql.NullString
		metricsJSON []byte
	)

	err := row.Scan(
		&step.ID,
		&step.FunnelID,
		&step.NodeID,
		&step.Name,
		&stepType,
		&step.StepOrder,
		&templateID,
		&metricsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFunnelStepNotFound
		}

		return nil, fmt.Errorf("failed to scan funnel step: %w", err)
	}

	step.StepType = stepType.String
	step.TemplateID = templateID.String

	err = json.Unmarshal(metricsJSON, &step.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step metrics: %w", err)
	}

	return &step, nil
}

// IncrementStepMetrics adds the delta to the step's aggregate counters in
// a single statement so concurrent increments never lose updates.
func (r *FunnelRepository) IncrementStepMetrics(ctx context.Context, stepID string, delta models.StepMetrics) error {
	query := `
		UPDATE funnel_steps SET metrics = jsonb_build_object(
			'entered',   COALESCE((metrics->>'entered')::int, 0) + $2,
			'completed', COALESCE((metrics->>'completed')::int, 0) + $3,
			'converted', COALESCE((metrics->>'converted')::int, 0) + $4,
			'revenue',   COALESCE((metrics->>'revenue')::numeric, 0) + $5
		)
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, stepID, delta.Entered, delta.Completed, delta.Converted, delta.Revenue)
	if err != nil {
		return fmt.Errorf("failed to increment step metrics: %w", err)
	}

	return nil
}

// UpsertJourney writes the per-(funnel, contact) position record.
func (r *FunnelRepository) UpsertJourney(ctx context.Context, journey *models.Journey) error {
	if journey.ID == "" {
		journey.ID = uuid.New().String()
	}

	if journey.UpdatedAt.IsZero() {
		journey.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO funnel_journeys (
			id, funnel_id, contact_id, current_step_id, status,
			revenue_generated, updated_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (funnel_id, contact_id) DO UPDATE SET
			current_step_id = EXCLUDED.current_step_id,
			status = EXCLUDED.status,
			revenue_generated = EXCLUDED.revenue_generated,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		journey.ID,
		journey.FunnelID,
		journey.ContactID,
		nullableString(journey.CurrentStepID),
		journey.Status,
		journey.RevenueGenerated,
		journey.UpdatedAt,
		journey.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert journey: %w", err)
	}

	return nil
}

// ListActiveJourneys returns a contact's active journeys across funnels.
func (r *FunnelRepository) ListActiveJourneys(ctx context.Context, contactID string) ([]*models.Journey, error) {
	query := `
		SELECT id, funnel_id, contact_id, current_step_id, status,
		       revenue_generated, started_at, updated_at, completed_at
		FROM funnel_journeys
		WHERE contact_id = $1 AND status = $2
	`

	rows, err := r.db.QueryContext(ctx, query, contactID, models.JourneyStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		var (
			journey       models.Journey
			currentStepID sql.NullString
		)

		err = rows.Scan(
			&journey.ID,
			&journey.FunnelID,
			&journey.ContactID,
			&currentStepID,
			&journey.Status,
			&journey.RevenueGenerated,
			&journey.StartedAt,
			&journey.UpdatedAt,
			&journey.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journey.CurrentStepID = currentStepID.String
		journeys = append(journeys, &journey)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return journeys, nil
}

// RecordConversion inserts one attributed conversion row.
func (r *FunnelRepository) RecordConversion(ctx context.Context, conversion *models.Conversion) error {
	if conversion.ID == "" {
		conversion.ID = uuid.New().String()
	}

	if conversion.CreatedAt.IsZero() {
		conversion.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO funnel_conversions (id, funnel_id, contact_id, transaction_id, amount, attributed_step_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		conversion.ID,
		conversion.FunnelID,
		conversion.ContactID,
		nullableString(conversion.TransactionID),
		conversion.Amount,
		nullableString(conversion.AttributedStepID),
		conversion.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}

	return nil
}
