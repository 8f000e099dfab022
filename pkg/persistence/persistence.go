// Package persistence provides the data storage abstraction layer for the
// automation execution engine.
package persistence

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Persistence aggregates the repositories the engine depends on. The
// engine only ever mutates executions and their logs; everything else is
// read (or, for funnel analytics, best-effort upserted).
type Persistence interface {
	Automations() AutomationRepository
	Executions() ExecutionRepository
	ExecutionLogs() ExecutionLogRepository
	Funnels() FunnelRepository
	Templates() TemplateRepository
	Tags() TagRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository reads authored automation graphs. Graphs are
// read-only to the engine and safe to cache per automation id.
type AutomationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	ListActiveByTriggerType(ctx context.Context, triggerType string) ([]*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
}

// ExecutionRepository owns the Execution rows.
type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Create(ctx context.Context, execution *models.Execution) error

	// SavePointer atomically updates current_node_id, status, wake_up_time
	// and last_error for one execution. It is the single write path the
	// orchestrator uses to advance, pause, complete or fail an execution.
	SavePointer(ctx context.Context, execution *models.Execution) error

	// FindByUniqueEventID returns the execution enrolled for the given
	// (event, automation) pair, or ErrExecutionNotFound. Enrollment
	// idempotency hangs off this lookup.
	FindByUniqueEventID(ctx context.Context, uniqueEventID string) (*models.Execution, error)

	// ListDueWakeUps returns paused executions whose wake_up_time has
	// elapsed at the given instant.
	ListDueWakeUps(ctx context.Context, now time.Time) ([]*models.Execution, error)

	// ListPausedByContact returns paused executions for one contact, used
	// by the early-wake path for wait_event nodes.
	ListPausedByContact(ctx context.Context, contactID string) ([]*models.Execution, error)

	// ListActiveByContact returns non-terminal executions for a contact in
	// one automation, used to stop flows after a conversion.
	ListActiveByContact(ctx context.Context, automationID, contactID string) ([]*models.Execution, error)
}

// ExecutionLogRepository owns the per-(execution, node) attempt log. The
// success row is the idempotency fence: at most one row per
// (execution, node) may reach success, and its presence means the node's
// side effect must never run again for that execution.
type ExecutionLogRepository interface {
	MarkStarted(ctx context.Context, entry *models.ExecutionLog) error
	MarkCompleted(ctx context.Context, executionID, nodeID string, status models.LogStatus, metadata map[string]any) error
	HasSucceeded(ctx context.Context, executionID, nodeID string) (bool, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}

// FunnelRepository owns the analytics views over execution progress.
type FunnelRepository interface {
	GetByAutomationID(ctx context.Context, automationID string) (*models.Funnel, error)
	GetFunnelByID(ctx context.Context, funnelID string) (*models.Funnel, error)

	// GetOrCreateStep lazily materializes the per-(funnel, node) step
	// record on first visit.
	GetOrCreateStep(ctx context.Context, step *models.FunnelStep) (*models.FunnelStep, error)
	GetStepByID(ctx context.Context, stepID string) (*models.FunnelStep, error)
	IncrementStepMetrics(ctx context.Context, stepID string, delta models.StepMetrics) error

	// UpsertJourney writes the per-(funnel, contact) position record.
	UpsertJourney(ctx context.Context, journey *models.Journey) error
	ListActiveJourneys(ctx context.Context, contactID string) ([]*models.Journey, error)
	RecordConversion(ctx context.Context, conversion *models.Conversion) error
}

// TemplateRepository reads stored email templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailTemplate, error)
}

// TagRepository covers the tag catalog and contact membership. AddToContact
// is an idempotent insert-or-ignore on the (contact, tag) pair.
type TagRepository interface {
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	AddToContact(ctx context.Context, contactID, tagID string) error
	HasTag(ctx context.Context, contactID, tagID string) (bool, error)
}
