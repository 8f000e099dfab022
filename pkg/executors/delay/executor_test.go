package delay_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/executors/delay"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delayEnv(data map[string]any) protocol.ExecutionEnv {
	return protocol.ExecutionEnv{
		Execution: &models.Execution{ID: "exec-1", Status: models.ExecutionStatusActive},
		Node:      &models.Node{ID: "wait-1", Type: models.NodeTypeDelay, Data: data},
	}
}

func TestDelay_TwoHours(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	executor := delay.NewExecutorAt(func() time.Time { return now })

	result, err := executor.Execute(context.Background(), delayEnv(map[string]any{
		"delayValue": float64(2),
		"delayUnit":  "hours",
	}), discardLogger())
	require.NoError(t, err)

	require.True(t, result.Paused())
	assert.Equal(t, now.Add(7200*time.Second), *result.WakeUpTime)
}

func TestDelay_UnitConversion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    float64
		unit     string
		expected time.Duration
	}{
		{"minutes", 5, "minutes", 300 * time.Second},
		{"hours", 1, "hours", 3600 * time.Second},
		{"days", 2, "days", 2 * 86400 * time.Second},
		{"raw seconds", 90, "seconds", 90 * time.Second},
		{"unknown unit falls back to seconds", 45, "fortnights", 45 * time.Second},
		{"zero value", 0, "days", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := delay.NewExecutorAt(func() time.Time { return now })

			result, err := executor.Execute(context.Background(), delayEnv(map[string]any{
				"delayValue": tt.value,
				"delayUnit":  tt.unit,
			}), discardLogger())
			require.NoError(t, err)
			require.NotNil(t, result.WakeUpTime)
			assert.Equal(t, now.Add(tt.expected), *result.WakeUpTime)
		})
	}
}

func TestDelay_MissingConfigDefaultsToImmediateWake(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	executor := delay.NewExecutorAt(func() time.Time { return now })

	result, err := executor.Execute(context.Background(), delayEnv(nil), discardLogger())
	require.NoError(t, err)
	require.True(t, result.Paused())
	assert.Equal(t, now, *result.WakeUpTime)
}

func TestDelay_MetadataCarriesPausedUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	executor := delay.NewExecutorAt(func() time.Time { return now })

	result, err := executor.Execute(context.Background(), delayEnv(map[string]any{
		"delayValue": float64(10),
		"delayUnit":  "minutes",
	}), discardLogger())
	require.NoError(t, err)

	metadata := result.Metadata()
	assert.Equal(t, "2026-03-01T12:10:00Z", metadata["paused_until"])
}

func TestDelayFactory(t *testing.T) {
	factory := delay.NewFactory()
	assert.Equal(t, "delay", factory.ID())

	executor, err := factory.Create(nil)
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
