package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/enrollment"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/web"
)

type API struct {
	logger      *slog.Logger
	engine      *engine.Engine
	ingestion   *enrollment.Service
	persistence persistence.Persistence
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	eng *engine.Engine,
	ingestion *enrollment.Service,
	p persistence.Persistence,
) *API {
	return &API{
		logger:      logger,
		engine:      eng,
		ingestion:   ingestion,
		persistence: p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.ingestion, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cadence Engine")
	})

	app.Post("/events", handlers.IngestEvent)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/logs", handlers.GetExecutionLogs)
	e.Post("/:id/process", handlers.ProcessExecutionStep)

	app.Get("/automations/:id", handlers.GetAutomation)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	a.logger.InfoContext(ctx, "Starting HTTP API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
