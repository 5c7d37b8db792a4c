// Package postgresql provides PostgreSQL persistence for runs, snapshots and
// rollbacks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	runs      *RunRepository
	snapshots *SnapshotRepository
	rollbacks *RollbackRepository
}

// NewPersistence connects to the database, runs migrations and returns the
// persistence facade.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:        database,
		logger:    logger,
		runs:      &RunRepository{db: database},
		snapshots: &SnapshotRepository{db: database},
		rollbacks: &RollbackRepository{db: database},
	}, nil
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runs
}

func (p *Persistence) SnapshotRepository() persistence.SnapshotRepository {
	return p.snapshots
}

func (p *Persistence) RollbackRepository() persistence.RollbackRepository {
	return p.rollbacks
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
