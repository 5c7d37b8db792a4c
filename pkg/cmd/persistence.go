package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/persistence/file"
	"github.com/datapilot/datapilot/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// Anything that is not postgres falls back to directory-of-JSON storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewFilePersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
