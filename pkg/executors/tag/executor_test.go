package tag_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagexecutor "github.com/cadencehq/cadence/pkg/executors/tag"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTags(t *testing.T) (*file.TagRepository, *models.Tag) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	tags, ok := p.Tags().(*file.TagRepository)
	require.True(t, ok)

	vip := &models.Tag{Name: "vip"}
	require.NoError(t, tags.Save(context.Background(), vip))

	return tags, vip
}

func tagEnv(contactID string, data map[string]any) protocol.ExecutionEnv {
	return protocol.ExecutionEnv{
		Execution: &models.Execution{
			ID:        "exec-1",
			ContactID: contactID,
			Context:   map[string]any{"contact_id": contactID},
		},
		Node: &models.Node{ID: "tag-1", Type: models.NodeTypeAction, Data: data},
	}
}

func TestTag_AddByID(t *testing.T) {
	ctx := context.Background()
	tags, vip := setupTags(t)
	executor := tagexecutor.NewExecutor(tags)

	result, err := executor.Execute(ctx, tagEnv("contact-1", map[string]any{
		"actionType": "tag",
		"tagId":      vip.ID,
	}), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, true, result.Data["tag_added"])

	hasTag, err := tags.HasTag(ctx, "contact-1", vip.ID)
	require.NoError(t, err)
	assert.True(t, hasTag)
}

func TestTag_ResolvesIDFromName(t *testing.T) {
	ctx := context.Background()
	tags, vip := setupTags(t)
	executor := tagexecutor.NewExecutor(tags)

	result, err := executor.Execute(ctx, tagEnv("contact-1", map[string]any{
		"actionType": "tag",
		"tagName":    "vip",
	}), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, vip.ID, result.Data["tag_id"])

	hasTag, err := tags.HasTag(ctx, "contact-1", vip.ID)
	require.NoError(t, err)
	assert.True(t, hasTag)
}

func TestTag_MissingParamsSkips(t *testing.T) {
	ctx := context.Background()
	tags, _ := setupTags(t)
	executor := tagexecutor.NewExecutor(tags)

	tests := []struct {
		name      string
		contactID string
		data      map[string]any
	}{
		{"no contact", "", map[string]any{"actionType": "tag", "tagName": "vip"}},
		{"no tag", "contact-1", map[string]any{"actionType": "tag"}},
		{"unknown tag name", "contact-1", map[string]any{"actionType": "tag", "tagName": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := executor.Execute(ctx, tagEnv(tt.contactID, tt.data), discardLogger())
			require.NoError(t, err)
			assert.True(t, result.Skipped)
			assert.Equal(t, "missing_params", result.Reason)
		})
	}
}

func TestTag_Idempotent(t *testing.T) {
	ctx := context.Background()
	tags, vip := setupTags(t)
	executor := tagexecutor.NewExecutor(tags)

	env := tagEnv("contact-1", map[string]any{"actionType": "tag", "tagId": vip.ID})

	_, err := executor.Execute(ctx, env, discardLogger())
	require.NoError(t, err)
	_, err = executor.Execute(ctx, env, discardLogger())
	require.NoError(t, err)

	hasTag, err := tags.HasTag(ctx, "contact-1", vip.ID)
	require.NoError(t, err)
	assert.True(t, hasTag)
}

func TestTag_DryRunSkipsWrite(t *testing.T) {
	ctx := context.Background()
	tags, vip := setupTags(t)
	executor := tagexecutor.NewExecutor(tags)

	env := tagEnv("contact-1", map[string]any{"actionType": "tag", "tagId": vip.ID})
	env.Execution.Context["dry_run"] = true

	result, err := executor.Execute(ctx, env, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, true, result.Data["dry_run"])

	hasTag, err := tags.HasTag(ctx, "contact-1", vip.ID)
	require.NoError(t, err)
	assert.False(t, hasTag)
}

func TestTagFactory(t *testing.T) {
	tags, _ := setupTags(t)
	factory := tagexecutor.NewFactory(tags)
	assert.Equal(t, "tag", factory.ID())

	executor, err := factory.Create(nil)
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
