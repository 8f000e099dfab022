package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/channels/gochannel"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer bus.Close()

	received := make(chan *events.StepRequested, 1)

	require.NoError(t, bus.Handle(events.StepRequestedEvent, func(_ context.Context, event any) error {
		step, ok := event.(*events.StepRequested)
		require.True(t, ok)
		received <- step

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.StepRequested{
		BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, "auto-1"),
		ExecutionID: "exec-1",
		Reason:      "enrollment",
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", sent))

	select {
	case step := <-received:
		assert.Equal(t, "exec-1", step.ExecutionID)
		assert.Equal(t, "auto-1", step.AutomationID)
		assert.Equal(t, "enrollment", step.Reason)
	case <-ctx.Done():
		t.Fatal("timed out waiting for step request")
	}
}

func TestWatermillEventBus_UnknownTypeIsIgnored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer bus.Close()

	handled := make(chan struct{}, 1)

	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, _ any) error {
		handled <- struct{}{}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type; the message is acked and dropped.
	require.NoError(t, bus.Publish(ctx, "exec-1", events.StepRequested{
		BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, "auto-1"),
		ExecutionID: "exec-1",
	}))

	select {
	case <-handled:
		t.Fatal("handler should not have been invoked")
	case <-time.After(100 * time.Millisecond):
	}
}
