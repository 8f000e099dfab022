// Package scheduler resumes paused executions whose wake-up time has
// arrived. It is the only component that turns a delay back into forward
// progress, and it does so by publishing StepRequested events rather than
// processing steps itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// DefaultCronExpr scans for due wake-ups once a minute, the resolution the
// authored delay units call for.
const DefaultCronExpr = "@every 1m"

type Scheduler struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	cron        *cron.Cron
	cronExpr    string
	now         func() time.Time
}

func NewScheduler(p persistence.Persistence, publisher eventbus.EventPublisher, cronExpr string) *Scheduler {
	if cronExpr == "" {
		cronExpr = DefaultCronExpr
	}

	return &Scheduler{
		persistence: p,
		publisher:   publisher,
		logger:      log.WithModule("scheduler"),
		cronExpr:    cronExpr,
		now:         time.Now,
	}
}

// Start begins the periodic scan. An immediate scan runs first so paused
// executions do not wait a full interval after a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.cronExpr, func() {
		if _, err := s.Scan(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Wake-up scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule wake-up scan: %w", err)
	}

	if _, err := s.Scan(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Initial wake-up scan failed", "error", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "cron", s.cronExpr)

	return nil
}

// Stop halts the scan loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Scan wakes every paused execution whose wake_up_time has passed: the
// execution goes back to active with the wake time cleared, and a
// StepRequested event re-drives its current node through the workers.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	due, err := s.persistence.Executions().ListDueWakeUps(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list due wake-ups: %w", err)
	}

	woken := 0

	for _, execution := range due {
		execution.Status = models.ExecutionStatusActive
		execution.WakeUpTime = nil

		if err := s.persistence.Executions().SavePointer(ctx, execution); err != nil {
			s.logger.ErrorContext(ctx, "Failed to wake execution",
				"execution_id", execution.ID,
				"error", err)

			continue
		}

		event := events.StepRequested{
			BaseEvent:   events.NewBaseEvent(events.StepRequestedEvent, execution.AutomationID),
			ExecutionID: execution.ID,
			Reason:      "wake_up",
		}

		if err := s.publisher.Publish(ctx, execution.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish wake-up step request",
				"execution_id", execution.ID,
				"error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Woke paused execution",
			"execution_id", execution.ID,
			"node_id", execution.CurrentNodeID)

		woken++
	}

	return woken, nil
}
