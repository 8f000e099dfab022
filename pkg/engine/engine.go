// Package engine implements the single-step orchestrator: it advances one
// execution by exactly one node per invocation and relies on the event bus
// for chaining, the scheduler for wake-ups and the success log for
// idempotency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/funnel"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/protocol"
	"github.com/cadencehq/cadence/pkg/registry"
)

// DefaultLockTTL bounds how long one step may hold an execution. A worker
// that dies mid-step releases the execution after this window.
const DefaultLockTTL = 30 * time.Second

var (
	// ErrExecutionBusy means another worker holds the per-execution lock.
	// The step will be re-driven by whoever holds it; callers drop it.
	ErrExecutionBusy = errors.New("execution is being processed by another worker")

	// ErrExecutionFinished means the execution is already terminal and
	// cannot be advanced.
	ErrExecutionFinished = errors.New("execution already finished")
)

type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	tracker     *funnel.Tracker
	locker      protocol.ExecutionLocker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	lockTTL     time.Duration
	now         func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	tracker *funnel.Tracker,
	locker protocol.ExecutionLocker,
	publisher eventbus.EventPublisher,
) *Engine {
	return &Engine{
		persistence: p,
		registry:    reg,
		tracker:     tracker,
		locker:      locker,
		publisher:   publisher,
		logger:      log.WithModule("engine"),
		lockTTL:     DefaultLockTTL,
		now:         time.Now,
	}
}

// ProcessStep advances the execution by one node: runs the node's side
// effect behind the idempotency fence, records the attempt, then either
// pauses, completes, fails, or moves the pointer forward and publishes a
// StepRequested event for the next node.
func (e *Engine) ProcessStep(ctx context.Context, executionID string) (*models.StepResult, error) {
	release, acquired, err := e.locker.Acquire(ctx, executionID, e.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire execution lock: %w", err)
	}

	if !acquired {
		return nil, ErrExecutionBusy
	}

	defer release()

	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}

	if execution.Status.IsTerminal() {
		return nil, fmt.Errorf("execution %s is %s: %w", executionID, execution.Status, ErrExecutionFinished)
	}

	automation, err := e.persistence.Automations().GetByID(ctx, execution.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("load automation %s: %w", execution.AutomationID, err)
	}

	logger := e.logger.With(
		"execution_id", execution.ID,
		"automation_id", automation.ID,
		"node_id", execution.CurrentNodeID,
	)

	node := automation.Graph.FindNode(execution.CurrentNodeID)
	if node == nil {
		// The graph was edited underneath a live execution. Complete it
		// rather than failing forever on a node that no longer exists.
		logger.WarnContext(ctx, "Current node no longer exists in graph, completing execution")

		if err := e.complete(ctx, execution, automation.ID); err != nil {
			return nil, err
		}

		return &models.StepResult{Status: models.StepStatusCompleted, Reason: "node_not_found"}, nil
	}

	succeeded, err := e.persistence.ExecutionLogs().HasSucceeded(ctx, execution.ID, node.ID)
	if err != nil {
		return nil, fmt.Errorf("check idempotency fence: %w", err)
	}

	if succeeded {
		return e.replayStep(ctx, logger, execution, automation, node)
	}

	// Funnel bookkeeping never blocks the step.
	funnelStepID, err := e.tracker.TrackVisit(ctx, execution, node)
	if err != nil {
		logger.ErrorContext(ctx, "Funnel tracking failed", "error", err)
	}

	result, err := e.runNode(ctx, logger, execution, automation, node, funnelStepID)
	if err != nil {
		return e.fail(ctx, logger, execution, automation.ID, node, err)
	}

	if result.Paused() {
		return e.pause(ctx, logger, execution, automation.ID, node, result)
	}

	return e.advance(ctx, logger, execution, automation, node, result)
}

// replayStep handles a node whose success row already exists: the side
// effect must not run again, but traversal still has to move the pointer.
// Condition nodes are re-evaluated since their "effect" is only a read and
// the branch outcome is needed to pick the edge.
func (e *Engine) replayStep(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	automation *models.Automation,
	node *models.Node,
) (*models.StepResult, error) {
	logger.InfoContext(ctx, "Node already succeeded for this execution, skipping side effect")

	var result *models.ActionResult

	if node.EffectiveType() == models.NodeTypeCondition {
		executor, err := e.registry.CreateExecutor(dispatchKey(node), node.Data)
		if err != nil {
			e.recordReplayFailure(ctx, logger, execution, node, err)

			return e.fail(ctx, logger, execution, automation.ID, node, err)
		}

		result, err = executor.Execute(ctx, protocol.ExecutionEnv{
			Execution:  execution,
			Automation: automation,
			Node:       node,
		}, logger)
		if err != nil {
			e.recordReplayFailure(ctx, logger, execution, node, err)

			return e.fail(ctx, logger, execution, automation.ID, node, err)
		}
	}

	stepResult, err := e.advance(ctx, logger, execution, automation, node, result)
	if err != nil {
		return nil, err
	}

	if stepResult.Status == models.StepStatusProceeding {
		return &models.StepResult{Status: models.StepStatusSkippedIdempotent}, nil
	}

	return stepResult, nil
}

// recordReplayFailure overwrites the node's log row so a condition that
// errors during replay leaves the same failure trail runNode would. The
// execution goes terminal right after, so losing the stale success row does
// not re-open the replay fence.
func (e *Engine) recordReplayFailure(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	node *models.Node,
	cause error,
) {
	err := e.persistence.ExecutionLogs().MarkCompleted(ctx, execution.ID, node.ID,
		models.LogStatusFailure, map[string]any{"error": cause.Error()})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record step failure", "error", err)
	}
}

// runNode records the attempt around the executor invocation. The success
// row is written only after the executor returns, so a crash in between
// leaves a started row and the replay fence stays open.
func (e *Engine) runNode(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	automation *models.Automation,
	node *models.Node,
	funnelStepID string,
) (*models.ActionResult, error) {
	key := dispatchKey(node)

	executor, err := e.registry.CreateExecutor(key, node.Data)
	if err != nil {
		return nil, err
	}

	err = e.persistence.ExecutionLogs().MarkStarted(ctx, &models.ExecutionLog{
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ActionType:  key,
		StartedAt:   e.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("record step start: %w", err)
	}

	logger.InfoContext(ctx, "Executing node", "node_type", node.Type, "dispatch_key", key)

	result, err := executor.Execute(ctx, protocol.ExecutionEnv{
		Execution:    execution,
		Automation:   automation,
		Node:         node,
		FunnelStepID: funnelStepID,
	}, logger)
	if err != nil {
		logErr := e.persistence.ExecutionLogs().MarkCompleted(ctx, execution.ID, node.ID,
			models.LogStatusFailure, map[string]any{"error": err.Error()})
		if logErr != nil {
			logger.ErrorContext(ctx, "Failed to record step failure", "error", logErr)
		}

		return nil, err
	}

	err = e.persistence.ExecutionLogs().MarkCompleted(ctx, execution.ID, node.ID,
		models.LogStatusSuccess, result.Metadata())
	if err != nil {
		return nil, fmt.Errorf("record step success: %w", err)
	}

	return result, nil
}

// advance moves the pointer along the matching outgoing edge, or completes
// the execution when there is nowhere to go.
func (e *Engine) advance(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	automation *models.Automation,
	node *models.Node,
	result *models.ActionResult,
) (*models.StepResult, error) {
	next := nextNodeID(logger, automation.Graph, node, result)
	if next == "" {
		if err := e.complete(ctx, execution, automation.ID); err != nil {
			return nil, err
		}

		logger.InfoContext(ctx, "Execution completed", "last_node_id", node.ID)

		return &models.StepResult{Status: models.StepStatusCompleted}, nil
	}

	execution.CurrentNodeID = next
	execution.Status = models.ExecutionStatusActive
	execution.WakeUpTime = nil

	if err := e.persistence.Executions().SavePointer(ctx, execution); err != nil {
		return nil, fmt.Errorf("advance execution pointer: %w", err)
	}

	logger.InfoContext(ctx, "Proceeding to next node", "next_node_id", next)

	e.publish(ctx, execution.ID, events.StepRequested{
		BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, automation.ID),
		ExecutionID: execution.ID,
		Reason:      "chain",
	})

	return &models.StepResult{Status: models.StepStatusProceeding}, nil
}

func (e *Engine) pause(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	automationID string,
	node *models.Node,
	result *models.ActionResult,
) (*models.StepResult, error) {
	execution.Status = models.ExecutionStatusPaused
	execution.WakeUpTime = result.WakeUpTime

	if err := e.persistence.Executions().SavePointer(ctx, execution); err != nil {
		return nil, fmt.Errorf("pause execution: %w", err)
	}

	logger.InfoContext(ctx, "Execution paused", "wake_up_time", result.WakeUpTime)

	e.publish(ctx, execution.ID, events.ExecutionPaused{
		BaseEvent:   events.NewBaseEvent(events.ExecutionPausedEvent, automationID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		WakeUpTime:  *result.WakeUpTime,
	})

	return &models.StepResult{Status: models.StepStatusPaused}, nil
}

func (e *Engine) fail(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	automationID string,
	node *models.Node,
	cause error,
) (*models.StepResult, error) {
	message := cause.Error()

	execution.Status = models.ExecutionStatusFailed
	execution.LastError = &message

	if err := e.persistence.Executions().SavePointer(ctx, execution); err != nil {
		return nil, fmt.Errorf("mark execution failed: %w", err)
	}

	logger.ErrorContext(ctx, "Node execution failed", "error", cause)

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, automationID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		Error:       message,
	})

	return &models.StepResult{Status: models.StepStatusFailed, Error: message}, nil
}

func (e *Engine) complete(ctx context.Context, execution *models.Execution, automationID string) error {
	now := e.now().UTC()

	execution.Status = models.ExecutionStatusCompleted
	execution.WakeUpTime = nil
	execution.CompletedAt = &now

	if err := e.persistence.Executions().SavePointer(ctx, execution); err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, automationID),
		ExecutionID: execution.ID,
		LastNodeID:  execution.CurrentNodeID,
	})

	return nil
}

// publish is fire-and-forget: a lost event means a stalled (not corrupted)
// execution, recoverable by a manual step request.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}

// nextNodeID picks the outgoing edge to follow. Condition nodes require an
// edge whose handle or label names the outcome; anything else takes the
// first declared edge.
func nextNodeID(logger *slog.Logger, graph *models.Graph, node *models.Node, result *models.ActionResult) string {
	edges := graph.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return ""
	}

	if node.EffectiveType() == models.NodeTypeCondition && result != nil && result.Outcome != nil {
		outcome := "false"
		if *result.Outcome {
			outcome = "true"
		}

		for _, edge := range edges {
			if edge.Outcome() == outcome {
				return edge.Target
			}
		}

		logger.Warn("No edge matches condition outcome, completing execution",
			"node_id", node.ID,
			"outcome", outcome)

		return ""
	}

	return edges[0].Target
}

// dispatchKey maps a node to its registry entry: generic action nodes
// route by their actionType sub-discriminator, wait_event shares the delay
// executor, everything else routes by node type.
func dispatchKey(node *models.Node) string {
	switch node.EffectiveType() {
	case models.NodeTypeAction:
		return node.ActionType()
	case models.NodeTypeWaitEvent:
		return string(models.NodeTypeDelay)
	default:
		return string(node.EffectiveType())
	}
}
