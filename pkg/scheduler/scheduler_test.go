package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/scheduler"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) stepRequests() []events.StepRequested {
	p.mu.Lock()
	defer p.mu.Unlock()

	var requests []events.StepRequested

	for _, event := range p.events {
		if requested, ok := event.(events.StepRequested); ok {
			requests = append(requests, requested)
		}
	}

	return requests
}

func seedPaused(t *testing.T, p *file.Persistence, wakeIn time.Duration) *models.Execution {
	t.Helper()

	wake := time.Now().UTC().Add(wakeIn)
	execution := &models.Execution{
		AutomationID:  "auto-1",
		ContactID:     "contact-1",
		CurrentNodeID: "n-delay",
		Context:       map[string]any{},
		Status:        models.ExecutionStatusPaused,
		WakeUpTime:    &wake,
	}
	require.NoError(t, p.Executions().Create(context.Background(), execution))

	return execution
}

func TestScan_WakesDueExecutions(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}
	s := scheduler.NewScheduler(p, publisher, "")

	ctx := context.Background()

	due := seedPaused(t, p, -time.Minute)
	notYet := seedPaused(t, p, time.Hour)

	woken, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, woken)

	stored, err := p.Executions().GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusActive, stored.Status)
	assert.Nil(t, stored.WakeUpTime)

	still, err := p.Executions().GetByID(ctx, notYet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, still.Status)
	require.NotNil(t, still.WakeUpTime)

	requests := publisher.stepRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, due.ID, requests[0].ExecutionID)
	assert.Equal(t, "wake_up", requests[0].Reason)
}

func TestScan_NothingDue(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}
	s := scheduler.NewScheduler(p, publisher, "")

	seedPaused(t, p, time.Hour)

	woken, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, woken)
	assert.Empty(t, publisher.stepRequests())
}

func TestScan_WokenExecutionNotRewoken(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}
	s := scheduler.NewScheduler(p, publisher, "")

	ctx := context.Background()
	seedPaused(t, p, -time.Minute)

	woken, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, woken)

	woken, err = s.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, woken, "an already-woken execution has no wake_up_time left")
}
