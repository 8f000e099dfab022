package main

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cadencehq/cadence/pkg/engine"
	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/otelhelper"
)

// Worker consumes StepRequested events and drives the orchestrator. One
// event, one step; follow-up steps arrive as new events.
type Worker struct {
	id       string
	engine   *engine.Engine
	eventBus eventbus.EventBus
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewWorker(id string, eng *engine.Engine, eventBus eventbus.EventBus, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		engine:   eng,
		eventBus: eventBus,
		logger:   logger.With("module", "step-worker"),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	tracer, err := otelhelper.NewTracer(ctx, "cadence-engine")
	if err != nil {
		return err
	}

	w.tracer = tracer

	if err := w.eventBus.Handle(events.StepRequestedEvent, w.handleStepRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Step worker started")

	return nil
}

func (w *Worker) handleStepRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.StepRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for StepRequested")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "engine.process_step",
		attribute.String(otelhelper.ExecutionIDKey, requested.ExecutionID),
		attribute.String(otelhelper.AutomationIDKey, requested.AutomationID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
		attribute.String(otelhelper.EventIDKey, requested.ID),
	)
	defer span.End()

	logger := w.logger.With(
		"execution_id", requested.ExecutionID,
		"reason", requested.Reason,
	)

	result, err := w.engine.ProcessStep(ctx, requested.ExecutionID)

	switch {
	case errors.Is(err, engine.ErrExecutionBusy):
		// The holding worker publishes the follow-up; nothing to redo.
		logger.InfoContext(ctx, "Execution busy, dropping step request")

		return nil

	case errors.Is(err, engine.ErrExecutionFinished):
		logger.InfoContext(ctx, "Execution already finished, dropping step request")

		return nil

	case err != nil:
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Step processing failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Step processed", "status", result.Status)

	return nil
}
