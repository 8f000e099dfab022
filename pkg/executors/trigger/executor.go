// Package trigger implements the pass-through executor for trigger nodes.
// A trigger node carries no side effect: by the time an execution exists,
// the trigger has already fired, so processing it only moves the pointer
// forward.
package trigger

import (
	"context"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/protocol"
)

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, env protocol.ExecutionEnv, logger *slog.Logger) (*models.ActionResult, error) {
	logger.InfoContext(ctx, "Trigger node, nothing to do", "node_id", env.Node.ID)

	return &models.ActionResult{}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return string(models.NodeTypeTrigger)
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(), nil
}
