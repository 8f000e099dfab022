// Package registry maps node types to their executor factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

func (r *Registry) Register(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// CreateExecutor instantiates the executor registered for the given node
// type. Node types are the effective types (a funnel UI node resolves to
// its action type before the lookup).
func (r *Registry) CreateExecutor(nodeType string, config map[string]any) (protocol.ActionExecutor, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return factory.Create(config)
}

// IsRegistered reports whether a node type has an executor.
func (r *Registry) IsRegistered(nodeType string) bool {
	_, exists := r.factories[nodeType]

	return exists
}
