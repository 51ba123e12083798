// Package store persists optimization runs so past results can be listed
// and inspected after the output directory is gone.
package store

import (
	"context"

	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/resilience"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store defines the persistence interface for optimization runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, strategy model.Strategy, args map[string]string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult, selection []byte) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Selection
	RunUnits(ctx context.Context, runID string) ([]int64, error)
	Selection(ctx context.Context, runID string) ([]byte, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver and applies the schema.
// Transient connection failures are retried with backoff.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var connect func() (Store, error)
	switch driver {
	case DriverSQLite, "":
		connect = func() (Store, error) { return NewSQLite(dsn) }
	case DriverPostgres:
		connect = func() (Store, error) { return NewPostgres(ctx, dsn, nil) }
	default:
		return nil, model.NewConfigError("store: unknown driver %q", driver)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("store.open")
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (Store, error) {
		s, err := connect()
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	})
}

func listLimit(filter model.RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
