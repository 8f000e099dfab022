// Package cmd provides common initialization for the command-line
// binaries: persistence, event bus, locker and executor registry wiring.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/persistence/postgresql"
)

// NewPersistence dispatches on the database URL scheme. Anything that is
// not postgres falls back to the file store, which is meant for local
// development and tests.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file", "":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", parseScheme(databaseURL))
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return scheme
}
