// Package funnel maintains the analytics views over execution progress:
// per-node step aggregates, per-contact journeys and conversion revenue
// attribution. Everything here is best-effort bookkeeping; callers must
// never let a funnel failure abort an execution step.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// defaultConversionEvent is assumed when a funnel does not name its own
// conversion goal.
const defaultConversionEvent = "checkout.completed"

type Tracker struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewTracker(p persistence.Persistence, logger *slog.Logger) *Tracker {
	return &Tracker{persistence: p, logger: logger}
}

// TrackVisit records that an execution reached a node: it lazily creates
// the funnel step, moves the contact's journey pointer and increments the
// step's entered counter. Returns the funnel step id, or "" when the
// automation has no funnel attached.
func (t *Tracker) TrackVisit(ctx context.Context, execution *models.Execution, node *models.Node) (string, error) {
	funnels := t.persistence.Funnels()

	funnel, err := funnels.GetByAutomationID(ctx, execution.AutomationID)
	if errors.Is(err, persistence.ErrFunnelNotFound) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to load funnel: %w", err)
	}

	step, err := funnels.GetOrCreateStep(ctx, &models.FunnelStep{
		FunnelID:   funnel.ID,
		NodeID:     node.ID,
		Name:       node.Label(),
		StepType:   string(node.Type),
		TemplateID: node.DataString("templateId"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to materialize funnel step: %w", err)
	}

	contactID := execution.ContactID
	if contactID == "" {
		contactID = execution.ContextString("contact_id")
	}

	if contactID == "" {
		return step.ID, nil
	}

	err = funnels.UpsertJourney(ctx, &models.Journey{
		FunnelID:      funnel.ID,
		ContactID:     contactID,
		CurrentStepID: step.ID,
		Status:        models.JourneyStatusActive,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert journey: %w", err)
	}

	if err := funnels.IncrementStepMetrics(ctx, step.ID, models.StepMetrics{Entered: 1}); err != nil {
		return "", fmt.Errorf("failed to increment entered metric: %w", err)
	}

	t.logger.InfoContext(ctx, "Updated funnel journey",
		"funnel_id", funnel.ID,
		"step_id", step.ID,
		"contact_id", contactID)

	return step.ID, nil
}

// Attribute processes a conversion event: for every active journey of the
// contact whose funnel goal matches the event type, it records the
// conversion against the journey's current step, adds revenue and the
// converted counter, marks the journey converted, and stops the contact's
// live execution of that automation so follow-up sends cease.
func (t *Tracker) Attribute(ctx context.Context, event *models.TriggerEvent) error {
	if event.ContactID == "" {
		return nil
	}

	funnels := t.persistence.Funnels()

	journeys, err := funnels.ListActiveJourneys(ctx, event.ContactID)
	if err != nil {
		return fmt.Errorf("failed to list active journeys: %w", err)
	}

	if len(journeys) == 0 {
		return nil
	}

	amount := event.Amount()
	transactionID := event.MetadataString("transaction_id")

	for _, journey := range journeys {
		funnel, err := funnels.GetFunnelByID(ctx, journey.FunnelID)
		if err != nil {
			t.logger.ErrorContext(ctx, "Failed to load funnel for journey",
				"funnel_id", journey.FunnelID, "error", err)

			continue
		}

		goal := funnel.ConversionGoalEvent
		if goal == "" {
			goal = defaultConversionEvent
		}

		if event.Type != goal {
			continue
		}

		err = funnels.RecordConversion(ctx, &models.Conversion{
			FunnelID:         journey.FunnelID,
			ContactID:        event.ContactID,
			TransactionID:    transactionID,
			Amount:           amount,
			AttributedStepID: journey.CurrentStepID,
		})
		if err != nil {
			return fmt.Errorf("failed to record conversion: %w", err)
		}

		if journey.CurrentStepID != "" {
			err = funnels.IncrementStepMetrics(ctx, journey.CurrentStepID, models.StepMetrics{
				Converted: 1,
				Revenue:   amount,
			})
			if err != nil {
				return fmt.Errorf("failed to increment conversion metrics: %w", err)
			}
		}

		now := time.Now().UTC()
		journey.Status = models.JourneyStatusConverted
		journey.RevenueGenerated = amount
		journey.CompletedAt = &now

		if err := funnels.UpsertJourney(ctx, journey); err != nil {
			return fmt.Errorf("failed to mark journey converted: %w", err)
		}

		t.logger.InfoContext(ctx, "Attributed conversion revenue",
			"funnel_id", journey.FunnelID,
			"step_id", journey.CurrentStepID,
			"amount", amount)

		if err := t.stopExecutions(ctx, funnel.AutomationID, event.ContactID); err != nil {
			t.logger.ErrorContext(ctx, "Failed to stop executions after conversion",
				"automation_id", funnel.AutomationID, "error", err)
		}
	}

	return nil
}

// stopExecutions completes the contact's live executions of the converted
// automation so abandonment follow-ups stop.
func (t *Tracker) stopExecutions(ctx context.Context, automationID, contactID string) error {
	executions := t.persistence.Executions()

	live, err := executions.ListActiveByContact(ctx, automationID, contactID)
	if err != nil {
		return err
	}

	for _, execution := range live {
		now := time.Now().UTC()
		reason := "Stopped by Conversion Goal"

		execution.Status = models.ExecutionStatusCompleted
		execution.WakeUpTime = nil
		execution.CompletedAt = &now
		execution.LastError = &reason

		if err := executions.SavePointer(ctx, execution); err != nil {
			return err
		}

		t.logger.InfoContext(ctx, "Stopped execution due to conversion",
			"execution_id", execution.ID,
			"automation_id", automationID)
	}

	return nil
}
