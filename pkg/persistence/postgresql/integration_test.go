package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{
		"contact_tags", "tags", "email_templates",
		"funnel_conversions", "funnel_journeys", "funnel_steps", "funnels",
		"automation_logs", "automation_executions", "automations",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("CADENCE_INTEGRATION_TESTS") == "" {
		t.Skip("set CADENCE_INTEGRATION_TESTS to run database integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("cadence_test"),
			postgres.WithUsername("cadence"),
			postgres.WithPassword("cadence"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx
}

func seedAutomation(ctx context.Context, t *testing.T, p *postgresql.Persistence) *models.Automation {
	t.Helper()

	automation := &models.Automation{
		ID:          uuid.New().String(),
		Name:        "Welcome Series",
		TriggerType: "user.signup",
		Status:      models.AutomationStatusActive,
		Graph: &models.Graph{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "send", Type: models.NodeTypeAction, Data: map[string]any{"actionType": "email", "templateId": "tpl-1"}},
			},
			Edges: []*models.Edge{{Source: "start", Target: "send"}},
		},
	}
	require.NoError(t, p.Automations().Save(ctx, automation))

	return automation
}

func TestExecutionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	automation := seedAutomation(ctx, t, p)

	execution := &models.Execution{
		AutomationID:  automation.ID,
		ContactID:     "contact-1",
		CurrentNodeID: "start",
		Context:       map[string]any{"email": "ana@example.com", "contact_id": "contact-1"},
		Status:        models.ExecutionStatusActive,
		UniqueEventID: "evt-1_" + automation.ID,
	}
	require.NoError(t, p.Executions().Create(ctx, execution))

	loaded, err := p.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "start", loaded.CurrentNodeID)
	assert.Equal(t, "ana@example.com", loaded.Email())

	// Advance the pointer and pause.
	wake := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	loaded.CurrentNodeID = "send"
	loaded.Status = models.ExecutionStatusPaused
	loaded.WakeUpTime = &wake
	require.NoError(t, p.Executions().SavePointer(ctx, loaded))

	due, err := p.Executions().ListDueWakeUps(ctx, wake.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, execution.ID, due[0].ID)

	notDue, err := p.Executions().ListDueWakeUps(ctx, wake.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, notDue)
}

func TestExecutionCreate_DuplicateUniqueEventID(t *testing.T) {
	p, ctx := setupTestDB(t)
	automation := seedAutomation(ctx, t, p)

	first := &models.Execution{
		AutomationID:  automation.ID,
		CurrentNodeID: "start",
		Context:       map[string]any{},
		Status:        models.ExecutionStatusActive,
		UniqueEventID: "evt-dup_" + automation.ID,
	}
	require.NoError(t, p.Executions().Create(ctx, first))

	second := &models.Execution{
		AutomationID:  automation.ID,
		CurrentNodeID: "start",
		Context:       map[string]any{},
		Status:        models.ExecutionStatusActive,
		UniqueEventID: "evt-dup_" + automation.ID,
	}

	err := p.Executions().Create(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrExecutionAlreadyExists)
}

func TestExecutionLog_SuccessFence(t *testing.T) {
	p, ctx := setupTestDB(t)
	automation := seedAutomation(ctx, t, p)

	execution := &models.Execution{
		AutomationID:  automation.ID,
		CurrentNodeID: "send",
		Context:       map[string]any{},
		Status:        models.ExecutionStatusActive,
	}
	require.NoError(t, p.Executions().Create(ctx, execution))

	logs := p.ExecutionLogs()

	succeeded, err := logs.HasSucceeded(ctx, execution.ID, "send")
	require.NoError(t, err)
	assert.False(t, succeeded)

	require.NoError(t, logs.MarkStarted(ctx, &models.ExecutionLog{
		ExecutionID: execution.ID,
		NodeID:      "send",
		ActionType:  "email",
	}))
	require.NoError(t, logs.MarkCompleted(ctx, execution.ID, "send", models.LogStatusSuccess, map[string]any{"email_sent": true}))

	succeeded, err = logs.HasSucceeded(ctx, execution.ID, "send")
	require.NoError(t, err)
	assert.True(t, succeeded)

	entries, err := logs.ListByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusSuccess, entries[0].Status)
	assert.Equal(t, true, entries[0].Metadata["email_sent"])
}

func TestTagMembership_Idempotent(t *testing.T) {
	p, ctx := setupTestDB(t)

	tagID := uuid.New().String()

	db := openRaw(ctx, t)
	_, err := db.ExecContext(ctx, "INSERT INTO tags (id, name) VALUES ($1, $2)", tagID, "vip")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tags := p.Tags()

	tag, err := tags.GetByName(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, tagID, tag.ID)

	require.NoError(t, tags.AddToContact(ctx, "contact-1", tagID))
	require.NoError(t, tags.AddToContact(ctx, "contact-1", tagID))

	hasTag, err := tags.HasTag(ctx, "contact-1", tagID)
	require.NoError(t, err)
	assert.True(t, hasTag)
}

func openRaw(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	return db
}

func TestFunnelStep_GetOrCreate(t *testing.T) {
	p, ctx := setupTestDB(t)
	automation := seedAutomation(ctx, t, p)

	db := openRaw(ctx, t)
	funnelID := uuid.New().String()
	_, err := db.ExecContext(ctx,
		"INSERT INTO funnels (id, automation_id, settings) VALUES ($1, $2, '{}')",
		funnelID, automation.ID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	funnels := p.Funnels()

	created, err := funnels.GetOrCreateStep(ctx, &models.FunnelStep{
		FunnelID: funnelID,
		NodeID:   "send",
		Name:     "Welcome Email",
		StepType: "action",
	})
	require.NoError(t, err)

	again, err := funnels.GetOrCreateStep(ctx, &models.FunnelStep{
		FunnelID: funnelID,
		NodeID:   "send",
		Name:     "renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Welcome Email", again.Name)

	require.NoError(t, funnels.IncrementStepMetrics(ctx, created.ID, models.StepMetrics{Entered: 1, Revenue: 19.9}))
	require.NoError(t, funnels.IncrementStepMetrics(ctx, created.ID, models.StepMetrics{Entered: 1}))

	reloaded, err := funnels.GetStepByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Metrics.Entered)
	assert.InDelta(t, 19.9, reloaded.Metrics.Revenue, 0.001)
}
