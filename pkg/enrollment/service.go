// Package enrollment ingests trigger events: it attributes conversions,
// wakes paused wait_event executions early, and enrolls contacts into the
// active automations matching the event type.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/funnel"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// filterKeys maps trigger-node filter fields to the event metadata key
// each one matches against.
var filterKeys = map[string]string{
	"filterProductType": "product_type",
	"filterTag":         "tag_name",
	"filterCampaign":    "campaign_id",
}

type Service struct {
	persistence persistence.Persistence
	tracker     *funnel.Tracker
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewService(p persistence.Persistence, tracker *funnel.Tracker, publisher eventbus.EventPublisher) *Service {
	return &Service{
		persistence: p,
		tracker:     tracker,
		publisher:   publisher,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      log.WithModule("enrollment"),
	}
}

// Result summarizes what one ingested event did.
type Result struct {
	Enrolled []string `json:"enrolled"`
	Woken    []string `json:"woken"`
}

// Ingest processes one trigger event end to end. Enrollment is idempotent
// per (event, automation) through the unique event id; re-delivering the
// same event is safe.
func (s *Service) Ingest(ctx context.Context, event *models.TriggerEvent) (*Result, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, fmt.Errorf("invalid trigger event: %w", err)
	}

	logger := s.logger.With("event_id", event.EventID, "event_type", event.Type)

	// Conversion attribution never blocks enrollment of the same event.
	if err := s.tracker.Attribute(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Conversion attribution failed", "error", err)
	}

	result := &Result{}

	woken, err := s.wakeWaitingExecutions(ctx, logger, event)
	if err != nil {
		return nil, err
	}

	result.Woken = woken

	enrolled, err := s.enroll(ctx, logger, event)
	if err != nil {
		return nil, err
	}

	result.Enrolled = enrolled

	return result, nil
}

// wakeWaitingExecutions resumes paused executions whose current node is a
// wait_event awaiting this event type. The scheduler's timeout wake-up
// stays in place for events that never arrive.
func (s *Service) wakeWaitingExecutions(ctx context.Context, logger *slog.Logger, event *models.TriggerEvent) ([]string, error) {
	if event.ContactID == "" {
		return nil, nil
	}

	paused, err := s.persistence.Executions().ListPausedByContact(ctx, event.ContactID)
	if err != nil {
		return nil, fmt.Errorf("list paused executions: %w", err)
	}

	var woken []string

	for _, execution := range paused {
		automation, err := s.persistence.Automations().GetByID(ctx, execution.AutomationID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load automation for paused execution",
				"execution_id", execution.ID,
				"automation_id", execution.AutomationID,
				"error", err)

			continue
		}

		node := automation.Graph.FindNode(execution.CurrentNodeID)
		if node == nil || node.Type != models.NodeTypeWaitEvent {
			continue
		}

		if node.DataString("event") != event.Type {
			continue
		}

		execution.Status = models.ExecutionStatusActive
		execution.WakeUpTime = nil
		execution.LastError = nil

		if err := s.persistence.Executions().SavePointer(ctx, execution); err != nil {
			return nil, fmt.Errorf("wake execution %s: %w", execution.ID, err)
		}

		logger.InfoContext(ctx, "Woke waiting execution early",
			"execution_id", execution.ID,
			"node_id", node.ID)

		s.publish(ctx, logger, execution.ID, events.StepRequested{
			BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, execution.AutomationID),
			ExecutionID: execution.ID,
			Reason:      "early_wake",
		})

		woken = append(woken, execution.ID)
	}

	return woken, nil
}

func (s *Service) enroll(ctx context.Context, logger *slog.Logger, event *models.TriggerEvent) ([]string, error) {
	automations, err := s.persistence.Automations().ListActiveByTriggerType(ctx, event.Type)
	if err != nil {
		return nil, fmt.Errorf("list automations for trigger type: %w", err)
	}

	var enrolled []string

	for _, automation := range automations {
		triggerNode := automation.Graph.TriggerNode()
		if triggerNode == nil {
			logger.WarnContext(ctx, "Active automation has no trigger node, skipping",
				"automation_id", automation.ID)

			continue
		}

		if !matchesFilters(triggerNode, event) {
			continue
		}

		execution, err := s.createExecution(ctx, event, automation, triggerNode)
		if errors.Is(err, persistence.ErrExecutionAlreadyExists) {
			logger.InfoContext(ctx, "Event already enrolled into automation, skipping",
				"automation_id", automation.ID)

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("enroll into automation %s: %w", automation.ID, err)
		}

		logger.InfoContext(ctx, "Enrolled contact into automation",
			"automation_id", automation.ID,
			"execution_id", execution.ID,
			"contact_id", execution.ContactID)

		s.publish(ctx, logger, execution.ID, events.ExecutionEnrolled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionEnrolledEvent, automation.ID),
			ExecutionID: execution.ID,
			ContactID:   execution.ContactID,
			TriggerType: event.Type,
			EventID:     event.EventID,
		})

		s.publish(ctx, logger, execution.ID, events.StepRequested{
			BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, automation.ID),
			ExecutionID: execution.ID,
			Reason:      "enrollment",
		})

		enrolled = append(enrolled, execution.ID)
	}

	return enrolled, nil
}

func (s *Service) createExecution(
	ctx context.Context,
	event *models.TriggerEvent,
	automation *models.Automation,
	triggerNode *models.Node,
) (*models.Execution, error) {
	execContext := make(map[string]any, len(event.Metadata)+5)
	for k, v := range event.Metadata {
		execContext[k] = v
	}

	execContext["email"] = event.Email
	execContext["contact_id"] = event.ContactID
	execContext["trigger_event"] = event.Type

	if event.MarketingOptIn != nil {
		execContext["marketing_opt_in"] = *event.MarketingOptIn
	}

	execContext["dry_run"] = s.simulationMode(ctx, automation.ID)

	execution := &models.Execution{
		AutomationID:  automation.ID,
		ContactID:     event.ContactID,
		CurrentNodeID: triggerNode.ID,
		Context:       execContext,
		Status:        models.ExecutionStatusActive,
		UniqueEventID: event.EventID + "_" + automation.ID,
	}

	if err := s.persistence.Executions().Create(ctx, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// simulationMode reads the funnel's simulation flag; automations without a
// funnel run live.
func (s *Service) simulationMode(ctx context.Context, automationID string) bool {
	funnelRecord, err := s.persistence.Funnels().GetByAutomationID(ctx, automationID)
	if errors.Is(err, persistence.ErrFunnelNotFound) {
		return false
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load funnel settings, enrolling live",
			"automation_id", automationID,
			"error", err)

		return false
	}

	return funnelRecord.SimulationMode()
}

func (s *Service) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			"published_event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}

// matchesFilters applies the trigger node's audience filters against the
// event metadata. A filter set to "any" or left empty matches everything.
func matchesFilters(triggerNode *models.Node, event *models.TriggerEvent) bool {
	for filterKey, metadataKey := range filterKeys {
		want := triggerNode.DataString(filterKey)
		if want == "" || want == "any" {
			continue
		}

		if event.MetadataString(metadataKey) != want {
			return false
		}
	}

	return true
}
