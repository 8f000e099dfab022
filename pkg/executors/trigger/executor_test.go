package trigger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/executors/trigger"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/protocol"
)

func TestTrigger_PassThrough(t *testing.T) {
	executor := trigger.NewExecutor()

	result, err := executor.Execute(context.Background(), protocol.ExecutionEnv{
		Execution: &models.Execution{ID: "exec-1"},
		Node:      &models.Node{ID: "start", Type: models.NodeTypeTrigger},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.False(t, result.Paused())
	assert.Nil(t, result.Outcome)
	assert.False(t, result.Skipped)
}

func TestTriggerFactory(t *testing.T) {
	factory := trigger.NewFactory()
	assert.Equal(t, "trigger", factory.ID())

	executor, err := factory.Create(nil)
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
