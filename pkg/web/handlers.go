package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/enrollment"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

type APIHandlers struct {
	engine      *engine.Engine
	ingestion   *enrollment.Service
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	ingestion *enrollment.Service,
	p persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		ingestion:   ingestion,
		persistence: p,
		validator:   validator,
	}
}

// IngestEvent accepts one trigger event and runs attribution, early wake
// and enrollment synchronously. Step processing itself happens through the
// event bus.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var event models.TriggerEvent

	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&event); err != nil {
		return badRequest(c, "Invalid trigger event: "+err.Error())
	}

	result, err := h.ingestion.Ingest(c.Context(), &event)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

// ProcessExecutionStep advances one execution by one node. It is the
// manual/recovery form of the StepRequested consumer.
func (h *APIHandlers) ProcessExecutionStep(c fiber.Ctx) error {
	executionID := c.Params("id")

	result, err := h.engine.ProcessStep(c.Context(), executionID)
	if err != nil {
		return handleStepError(c, err)
	}

	return c.JSON(StepResponse{
		Status: result.Status,
		Reason: result.Reason,
		Error:  result.Error,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	executionID := c.Params("id")

	execution, err := h.persistence.Executions().GetByID(c.Context(), executionID)
	if persistence.IsExecutionNotFound(err) {
		return notFound(c, "execution not found")
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(TransformExecutionResponse(execution))
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	executionID := c.Params("id")

	if _, err := h.persistence.Executions().GetByID(c.Context(), executionID); err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "execution not found")
		}

		return internalError(c, err)
	}

	logs, err := h.persistence.ExecutionLogs().ListByExecution(c.Context(), executionID)
	if err != nil {
		return internalError(c, err)
	}

	responses := make([]LogResponse, 0, len(logs))
	for _, entry := range logs {
		responses = append(responses, TransformLogResponse(entry))
	}

	return c.JSON(fiber.Map{
		"execution_id": executionID,
		"logs":         responses,
	})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automationID := c.Params("id")

	automation, err := h.persistence.Automations().GetByID(c.Context(), automationID)
	if persistence.IsAutomationNotFound(err) {
		return notFound(c, "automation not found")
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}
