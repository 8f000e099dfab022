// Package condition implements the branching executor. It evaluates the
// authored (field, operator, checkValue) triple against the contact and
// reports a boolean outcome; the orchestrator picks the matching edge.
// Evaluation is read-only, so replays are harmless.
package condition

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/protocol"
)

type Executor struct {
	tags persistence.TagRepository
}

func NewExecutor(tags persistence.TagRepository) *Executor {
	return &Executor{tags: tags}
}

func (e *Executor) Execute(ctx context.Context, env protocol.ExecutionEnv, logger *slog.Logger) (*models.ActionResult, error) {
	field := env.Node.DataString("field")
	operator := env.Node.DataString("operator")
	checkValue := env.Node.DataString("checkValue")

	logger.InfoContext(ctx, "Evaluating condition",
		"node_id", env.Node.ID,
		"field", field,
		"operator", operator,
		"check_value", checkValue)

	var outcome bool

	switch field {
	case "tags":
		hasTag, err := e.evaluateTags(ctx, contactID(env.Execution), checkValue)
		if err != nil {
			return nil, err
		}

		// contains and equals are the same check for tag membership.
		if operator == "contains" || operator == "equals" {
			outcome = hasTag
		}
	case "order_count":
		// Order history is not wired up yet; until it is, the condition
		// always takes the false branch.
		logger.WarnContext(ctx, "order_count conditions are not implemented, evaluating to false",
			"node_id", env.Node.ID)

		outcome = false
	default:
		logger.WarnContext(ctx, "Unknown condition field, evaluating to false",
			"node_id", env.Node.ID,
			"field", field)
	}

	logger.InfoContext(ctx, "Condition evaluated", "node_id", env.Node.ID, "outcome", outcome)

	return &models.ActionResult{Outcome: &outcome}, nil
}

// contactID prefers the execution row's contact over the context copy.
func contactID(execution *models.Execution) string {
	if execution.ContactID != "" {
		return execution.ContactID
	}

	return execution.ContextString("contact_id")
}

func (e *Executor) evaluateTags(ctx context.Context, contactID, tagName string) (bool, error) {
	if contactID == "" || tagName == "" {
		return false, nil
	}

	tag, err := e.tags.GetByName(ctx, tagName)
	if errors.Is(err, persistence.ErrTagNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return e.tags.HasTag(ctx, contactID, tag.ID)
}

type Factory struct {
	tags persistence.TagRepository
}

func NewFactory(tags persistence.TagRepository) *Factory {
	return &Factory{tags: tags}
}

func (*Factory) ID() string {
	return string(models.NodeTypeCondition)
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(f.tags), nil
}
