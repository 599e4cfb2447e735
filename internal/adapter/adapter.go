// Package adapter provides a uniform capability interface over the SQL
// vendors GoFresh can reset: introspection, constraint toggling,
// destructive DDL, and schema+data dumps.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
)

// Kind identifies a vendor family.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindSQLite   Kind = "sqlite"
)

// Hint carries vendor-specific tuning for an operation.
type Hint struct {
	CascadeSupported   bool
	PreferredBatchSize int
}

// SizeEstimate is a cheap approximate measure of the database contents.
// Rows may be zero when the vendor exposes no inexpensive row estimate.
type SizeEstimate struct {
	Bytes int64
	Rows  int64
}

// RestoreFunc re-enables constraint checking after an unsafe-mode scope.
// Callers must invoke it on every exit path, typically via defer.
type RestoreFunc func(ctx context.Context) error

// Adapter is the capability set shared by all vendor implementations.
// Adding a vendor means adding one implementation; the resolver and
// scheduler never see vendor specifics.
type Adapter interface {
	Vendor() Kind

	// ListTables enumerates user tables in the target database.
	ListTables(ctx context.Context) ([]string, error)

	// ListForeignKeys enumerates FK relationships between user tables.
	ListForeignKeys(ctx context.Context) ([]graph.ForeignKey, error)

	// BeginUnsafeMode disables FK constraint checking for subsequent
	// drops and returns the restore function.
	BeginUnsafeMode(ctx context.Context) (RestoreFunc, error)

	// DropTable removes a table. When force is true the drop must
	// succeed even with inbound FKs (CASCADE or constraints disabled).
	DropTable(ctx context.Context, name string, force bool) error

	// EstimateDataSize returns an approximate size of schema+data.
	EstimateDataSize(ctx context.Context) (SizeEstimate, error)

	// Dump streams a restorable schema+data snapshot into w.
	Dump(ctx context.Context, w io.Writer) error

	// PostOptimize runs vendor housekeeping after a successful reset
	// (statistics refresh and similar). Failures are advisory.
	PostOptimize(ctx context.Context) error

	// Hint returns vendor tuning for the named operation ("drop", "dump").
	Hint(operation string) Hint

	// DB exposes the underlying connection pool for collaborators that
	// need direct access (advisory locks, migration runners).
	DB() *sql.DB

	Close() error
}

// IntrospectionError wraps a failure to enumerate tables or foreign keys.
// It is fatal: plan construction aborts before any destructive action.
type IntrospectionError struct {
	Op  string
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection failed (%s): %v", e.Op, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// DropError wraps a single-table drop failure. The wave continues; the
// scheduler aggregates these into a TeardownError.
type DropError struct {
	Table string
	Err   error
}

func (e *DropError) Error() string {
	return fmt.Sprintf("failed to drop table %q: %v", e.Table, e.Err)
}

func (e *DropError) Unwrap() error { return e.Err }

// Open connects to the configured database and returns the matching
// vendor adapter.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Adapter, error) {
	switch Kind(cfg.Vendor) {
	case KindPostgres:
		return openPostgres(ctx, cfg)
	case KindMySQL:
		return openMySQL(ctx, cfg)
	case KindSQLite:
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database vendor %q", cfg.Vendor)
	}
}

// connectWithRetry opens a pool and verifies it with exponential backoff.
func connectWithRetry(ctx context.Context, driver, dsn string, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open(driver, dsn)
		if err == nil {
			configurePool(db, cfg)
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

func configurePool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)
}
