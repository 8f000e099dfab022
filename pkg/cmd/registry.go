package cmd

import (
	"log/slog"

	"github.com/cadencehq/cadence/pkg/executors/condition"
	"github.com/cadencehq/cadence/pkg/executors/delay"
	"github.com/cadencehq/cadence/pkg/executors/email"
	"github.com/cadencehq/cadence/pkg/executors/tag"
	"github.com/cadencehq/cadence/pkg/executors/trigger"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/protocol"
	"github.com/cadencehq/cadence/pkg/registry"
)

// NewRegistry wires every node executor the engine dispatches to.
func NewRegistry(
	logger *slog.Logger,
	p persistence.Persistence,
	m protocol.Mailer,
	emailConfig email.Config,
) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(trigger.NewFactory())
	reg.Register(delay.NewFactory())
	reg.Register(condition.NewFactory(p.Tags()))
	reg.Register(tag.NewFactory(p.Tags()))
	reg.Register(email.NewFactory(p.Templates(), m, emailConfig))

	return reg
}
