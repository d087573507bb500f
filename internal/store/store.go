// Package store persists run records and combined summary rows behind a
// driver-agnostic interface. SQLite is the default for a single analyst's
// workstation; Postgres serves shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pci-audit/internal/model"
)

// Store is the persistence interface for audit runs.
type Store interface {
	CreateRun(ctx context.Context, run *model.Run) error
	CompleteRun(ctx context.Context, runID string, counts model.PartitionCounts) error
	FailRun(ctx context.Context, runID, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	AddSummary(ctx context.Context, rows []model.SummaryRow) error
	GetSummary(ctx context.Context, runID string) ([]model.SummaryRow, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
