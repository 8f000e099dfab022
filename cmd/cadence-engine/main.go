// Package main provides the cadence engine server: the HTTP API plus the
// step worker consuming StepRequested events.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/cadencehq/cadence/pkg/cmd"
	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/enrollment"
	"github.com/cadencehq/cadence/pkg/executors/email"
	"github.com/cadencehq/cadence/pkg/funnel"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/mailer"
	"github.com/cadencehq/cadence/pkg/protocol"
)

func main() {
	command := &cli.Command{
		Name:                  "cadence-engine",
		EnableShellCompletion: true,
		Usage:                 "Start the automation engine API and step worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, memory)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the per-execution lock (in-process lock if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP API port",
				Value:   8081,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "postmark-server-token",
				Usage:   "Postmark server token (sandbox mailer if empty)",
				Value:   "",
				Sources: cli.EnvVars("POSTMARK_SERVER_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "from-email",
				Usage:   "Sender address for outbound email",
				Value:   "no-reply@example.com",
				Sources: cli.EnvVars("FROM_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "company-name",
				Usage:   "Default company_name template variable",
				Value:   "",
				Sources: cli.EnvVars("COMPANY_NAME"),
			},
			&cli.StringFlag{
				Name:    "login-url",
				Usage:   "Default login_url template variable",
				Value:   "",
				Sources: cli.EnvVars("LOGIN_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "engine-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("cadence-engine").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Cadence Engine")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "cadence-engine", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	locker, err := cmd.NewLocker(ctx, command.String("redis-url"))
	if err != nil {
		return err
	}

	outbound, err := newMailer(command)
	if err != nil {
		return err
	}

	registry := cmd.NewRegistry(logger, persistence, outbound, email.Config{
		CompanyName: command.String("company-name"),
		LoginURL:    command.String("login-url"),
	})

	tracker := funnel.NewTracker(persistence, logger)
	eng := engine.NewEngine(persistence, registry, tracker, locker, eventBus)
	ingestion := enrollment.NewService(persistence, tracker, eventBus)

	worker := NewWorker(workerID, eng, eventBus, logger)
	if err := worker.Start(ctx); err != nil {
		return err
	}

	api := NewAPI(logger, eng, ingestion, persistence)

	return api.Start(ctx, command.Int("port"))
}

// newMailer picks the outbound transport: Postmark when credentials are
// configured, the in-memory sandbox otherwise.
func newMailer(command *cli.Command) (protocol.Mailer, error) {
	token := command.String("postmark-server-token")
	if token == "" {
		return mailer.NewSandbox(), nil
	}

	return mailer.NewPostmark(token, command.String("from-email"))
}
