// Package tag implements the tagging executor. It resolves the tag id
// from the node configuration (falling back to a catalog lookup by name)
// and adds an idempotent membership row for the contact.
package tag

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
	contactID := env.Execution.ContactID
	if contactID == "" {
		contactID = env.Execution.ContextString("contact_id")
	}

	tagID := env.Node.DataString("tagId")
	tagName := env.Node.DataString("tagName")

	// The graph builder sends tag names; resolve to the catalog id.
	if tagID == "" && tagName != "" {
		tag, err := e.tags.GetByName(ctx, tagName)
		if err != nil && !errors.Is(err, persistence.ErrTagNotFound) {
			return nil, err
		}

		if tag != nil {
			tagID = tag.ID
		}
	}

	if contactID == "" || tagID == "" {
		logger.WarnContext(ctx, "Skipping tag action, missing contact or tag",
			"node_id", env.Node.ID,
			"contact_id", contactID,
			"tag_id", tagID,
			"tag_name", tagName)

		return &models.ActionResult{Skipped: true, Reason: "missing_params"}, nil
	}

	if env.Execution.DryRun() {
		logger.InfoContext(ctx, "DRY RUN: would tag contact",
			"contact_id", contactID,
			"tag_id", tagID)

		return &models.ActionResult{
			Data: map[string]any{"tag_added": true, "dry_run": true, "tag_id": tagID},
		}, nil
	}

	if err := e.tags.AddToContact(ctx, contactID, tagID); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Tagged contact", "contact_id", contactID, "tag_id", tagID)

	return &models.ActionResult{
		Data: map[string]any{"tag_added": true, "tag_id": tagID},
	}, nil
}

type Factory struct {
	tags persistence.TagRepository
}

func NewFactory(tags persistence.TagRepository) *Factory {
	return &Factory{tags: tags}
}

func (*Factory) ID() string {
	return models.ActionTypeTag
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(f.tags), nil
}
