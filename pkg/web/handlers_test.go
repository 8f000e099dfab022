package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/enrollment"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/executors/delay"
	"github.com/cadencehq/cadence/pkg/executors/email"
	"github.com/cadencehq/cadence/pkg/executors/trigger"
	"github.com/cadencehq/cadence/pkg/funnel"
	"github.com/cadencehq/cadence/pkg/lock"
	"github.com/cadencehq/cadence/pkg/mailer"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/registry"
	"github.com/cadencehq/cadence/pkg/web"
)

type nullPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *nullPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.n++

	return nil
}

type testEnv struct {
	app         *fiber.App
	persistence *file.Persistence
	sandbox     *mailer.Sandbox
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	sandbox := mailer.NewSandbox()
	publisher := &nullPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.NewRegistry(logger)
	reg.Register(trigger.NewFactory())
	reg.Register(delay.NewFactory())
	reg.Register(email.NewFactory(p.Templates(), sandbox, email.Config{CompanyName: "Acme"}))

	tracker := funnel.NewTracker(p, logger)
	eng := engine.NewEngine(p, reg, tracker, lock.NewMemoryLocker(), publisher)
	ingestion := enrollment.NewService(p, tracker, publisher)

	handlers := web.NewAPIHandlers(eng, ingestion, p, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Post("/events", handlers.IngestEvent)
	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/executions/:id/logs", handlers.GetExecutionLogs)
	app.Post("/executions/:id/process", handlers.ProcessExecutionStep)
	app.Get("/automations/:id", handlers.GetAutomation)
	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, persistence: p, sandbox: sandbox}
}

func (env *testEnv) seedAutomation(t *testing.T) *models.Automation {
	t.Helper()

	automation := &models.Automation{
		Name:        "welcome series",
		TriggerType: "user.created",
		Status:      models.AutomationStatusActive,
		Graph: &models.Graph{
			Nodes: []*models.Node{
				{ID: "n-trigger", Type: models.NodeTypeTrigger, Data: map[string]any{}},
				{ID: "n-delay", Type: models.NodeTypeDelay, Data: map[string]any{
					"delayValue": float64(1),
					"delayUnit":  "hours",
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "n-trigger", Target: "n-delay"},
			},
		},
	}
	require.NoError(t, env.persistence.Automations().Save(context.Background(), automation))

	return automation
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, target))
}

func TestIngestEvent_EnrollsAndExposesExecution(t *testing.T) {
	env := setupTestApp(t)
	automation := env.seedAutomation(t)

	resp := postJSON(t, env.app, "/events", models.TriggerEvent{
		EventID:   "evt-1",
		Type:      "user.created",
		Email:     "ana@example.com",
		ContactID: "contact-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result enrollment.Result
	decodeBody(t, resp, &result)
	require.Len(t, result.Enrolled, 1)

	req := httptest.NewRequest(http.MethodGet, "/executions/"+result.Enrolled[0], nil)
	getResp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var execution web.ExecutionResponse
	decodeBody(t, getResp, &execution)
	assert.Equal(t, automation.ID, execution.AutomationID)
	assert.Equal(t, "n-trigger", execution.CurrentNodeID)
	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
}

func TestIngestEvent_RejectsInvalidBody(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/events", map[string]any{
		"type":  "user.created",
		"email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessExecutionStep_AdvancesAndPauses(t *testing.T) {
	env := setupTestApp(t)
	env.seedAutomation(t)

	resp := postJSON(t, env.app, "/events", models.TriggerEvent{
		EventID:   "evt-1",
		Type:      "user.created",
		Email:     "ana@example.com",
		ContactID: "contact-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result enrollment.Result
	decodeBody(t, resp, &result)
	require.Len(t, result.Enrolled, 1)

	executionID := result.Enrolled[0]

	// Trigger node: pass-through, advances to the delay node.
	stepResp := postJSON(t, env.app, "/executions/"+executionID+"/process", nil)
	require.Equal(t, http.StatusOK, stepResp.StatusCode)

	var step web.StepResponse
	decodeBody(t, stepResp, &step)
	assert.Equal(t, models.StepStatusProceeding, step.Status)

	// Delay node: pauses with a wake-up time.
	stepResp = postJSON(t, env.app, "/executions/"+executionID+"/process", nil)
	require.Equal(t, http.StatusOK, stepResp.StatusCode)

	decodeBody(t, stepResp, &step)
	assert.Equal(t, models.StepStatusPaused, step.Status)

	getReq := httptest.NewRequest(http.MethodGet, "/executions/"+executionID, nil)
	getResp, err := env.app.Test(getReq)
	require.NoError(t, err)

	var execution web.ExecutionResponse
	decodeBody(t, getResp, &execution)
	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.NotNil(t, execution.WakeUpTime)
}

func TestProcessExecutionStep_UnknownExecution(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/executions/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessExecutionStep_FinishedExecutionConflicts(t *testing.T) {
	env := setupTestApp(t)
	automation := env.seedAutomation(t)

	ctx := context.Background()
	execution := &models.Execution{
		AutomationID:  automation.ID,
		ContactID:     "contact-1",
		CurrentNodeID: "n-trigger",
		Context:       map[string]any{},
		Status:        models.ExecutionStatusCompleted,
	}
	require.NoError(t, env.persistence.Executions().Create(ctx, execution))

	resp := postJSON(t, env.app, "/executions/"+execution.ID+"/process", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetExecutionLogs(t *testing.T) {
	env := setupTestApp(t)
	env.seedAutomation(t)

	resp := postJSON(t, env.app, "/events", models.TriggerEvent{
		EventID:   "evt-1",
		Type:      "user.created",
		Email:     "ana@example.com",
		ContactID: "contact-1",
	})

	var result enrollment.Result
	decodeBody(t, resp, &result)
	require.Len(t, result.Enrolled, 1)

	executionID := result.Enrolled[0]
	postJSON(t, env.app, "/executions/"+executionID+"/process", nil)

	req := httptest.NewRequest(http.MethodGet, "/executions/"+executionID+"/logs", nil)
	logsResp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, logsResp.StatusCode)

	var payload struct {
		ExecutionID string            `json:"execution_id"`
		Logs        []web.LogResponse `json:"logs"`
	}
	decodeBody(t, logsResp, &payload)
	assert.Equal(t, executionID, payload.ExecutionID)
	require.Len(t, payload.Logs, 1)
	assert.Equal(t, "n-trigger", payload.Logs[0].NodeID)
	assert.Equal(t, models.LogStatusSuccess, payload.Logs[0].Status)
}

func TestGetAutomation(t *testing.T) {
	env := setupTestApp(t)
	automation := env.seedAutomation(t)

	req := httptest.NewRequest(http.MethodGet, "/automations/"+automation.ID, nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Automation
	decodeBody(t, resp, &stored)
	assert.Equal(t, automation.Name, stored.Name)
	require.NotNil(t, stored.Graph)
	assert.Len(t, stored.Graph.Nodes, 2)

	missing := httptest.NewRequest(http.MethodGet, "/automations/nope", nil)
	missingResp, err := env.app.Test(missing)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
