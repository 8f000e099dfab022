// Package protocol defines the contracts between the orchestrator and the
// pluggable node executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/models"
)

// ExecutionEnv is everything an executor may read about the step it runs:
// the execution (including its accumulated context map), the automation
// graph and the node being visited. Executors never mutate the execution
// pointer; they report through the ActionResult and the orchestrator
// persists.
type ExecutionEnv struct {
	Execution  *models.Execution
	Automation *models.Automation
	Node       *models.Node

	// FunnelStepID is set when the visit was tracked into a funnel, so
	// outbound side effects can carry it for analytics correlation.
	FunnelStepID string
}

// ActionExecutor runs the side effect of one node type. Implementations
// must be idempotent-friendly: the orchestrator fences replays before
// calling Execute, but an executor may still be invoked more than once for
// the same node when a crash lands between the side effect and the success
// record, so external effects should carry their own dedup keys when the
// provider supports it.
type ActionExecutor interface {
	Execute(ctx context.Context, env ExecutionEnv, logger *slog.Logger) (*models.ActionResult, error)
}

// ExecutorFactory creates executor instances and names the node type it
// serves.
type ExecutorFactory interface {
	Create(config map[string]any) (ActionExecutor, error)
	ID() string
}
