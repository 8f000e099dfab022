// Package delay implements the pause executor for delay and wait_event
// nodes. It converts the authored (value, unit) pair into a wake-up time
// and asks the orchestrator to pause the execution; resumption is the
// scheduler's job.
package delay

import (
	"context"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/protocol"
)

type Executor struct {
	now func() time.Time
}

func NewExecutor() *Executor {
	return &Executor{now: time.Now}
}

// NewExecutorAt fixes the clock, for tests.
func NewExecutorAt(now func() time.Time) *Executor {
	return &Executor{now: now}
}

func (e *Executor) Execute(ctx context.Context, env protocol.ExecutionEnv, logger *slog.Logger) (*models.ActionResult, error) {
	value := env.Node.DataNumber("delayValue")

	unit := env.Node.DataString("delayUnit")
	if unit == "" {
		unit = "seconds"
	}

	seconds := durationInSeconds(value, unit)
	wakeUpTime := e.now().UTC().Add(time.Duration(seconds * float64(time.Second)))

	logger.InfoContext(ctx, "Pausing execution",
		"node_id", env.Node.ID,
		"delay_value", value,
		"delay_unit", unit,
		"seconds", seconds,
		"wake_up_time", wakeUpTime)

	return &models.ActionResult{
		Data: map[string]any{
			"type": string(env.Node.EffectiveType()),
		},
		WakeUpTime: &wakeUpTime,
	}, nil
}

// durationInSeconds converts authored UI units to seconds. Unknown units
// are treated as seconds.
func durationInSeconds(value float64, unit string) float64 {
	if value == 0 {
		return 0
	}

	switch unit {
	case "minutes":
		return value * 60
	case "hours":
		return value * 3600
	case "days":
		return value * 86400
	default:
		return value
	}
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return string(models.NodeTypeDelay)
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(), nil
}
