package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/sqlutil"
)

// postgresAdapter implements Adapter for Postgres-like engines.
type postgresAdapter struct {
	db     *sql.DB
	cfg    *config.DatabaseConfig
	unsafe atomic.Bool
}

func openPostgres(ctx context.Context, cfg *config.DatabaseConfig) (Adapter, error) {
	db, err := connectWithRetry(ctx, "pgx", BuildPostgresDSN(cfg), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &postgresAdapter{db: db, cfg: cfg}, nil
}

// newPostgresAdapter wraps an existing pool. Used by tests with sqlmock.
func newPostgresAdapter(db *sql.DB, cfg *config.DatabaseConfig) *postgresAdapter {
	return &postgresAdapter{db: db, cfg: cfg}
}

// BuildPostgresDSN constructs a Postgres connection URL from configuration.
func BuildPostgresDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}

	q := u.Query()
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	case "preferred", "":
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (a *postgresAdapter) Vendor() Kind { return KindPostgres }

func (a *postgresAdapter) DB() *sql.DB { return a.db }

func (a *postgresAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY tablename`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &IntrospectionError{Op: "list tables", Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &IntrospectionError{Op: "list tables", Err: err}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Op: "list tables", Err: err}
	}

	return tables, nil
}

func (a *postgresAdapter) ListForeignKeys(ctx context.Context) ([]graph.ForeignKey, error) {
	query := `SELECT tc.table_name, ccu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
	}
	defer rows.Close()

	var fks []graph.ForeignKey
	for rows.Next() {
		var fk graph.ForeignKey
		if err := rows.Scan(&fk.From, &fk.To, &fk.Column); err != nil {
			return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
	}

	return fks, nil
}

// BeginUnsafeMode flags the adapter so drops run with
// session_replication_role = replica, which suppresses FK enforcement on
// the session performing each drop.
func (a *postgresAdapter) BeginUnsafeMode(ctx context.Context) (RestoreFunc, error) {
	a.unsafe.Store(true)
	return func(ctx context.Context) error {
		a.unsafe.Store(false)
		return nil
	}, nil
}

func (a *postgresAdapter) DropTable(ctx context.Context, name string, force bool) error {
	if !sqlutil.IsValidIdentifier(name) {
		return &DropError{Table: name, Err: &sqlutil.InvalidIdentifierError{Name: name}}
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return &DropError{Table: name, Err: err}
	}
	defer conn.Close()

	disabled := a.unsafe.Load()
	if disabled {
		if _, err := conn.ExecContext(ctx, "SET session_replication_role = replica"); err != nil {
			return &DropError{Table: name, Err: err}
		}
	}

	stmt := "DROP TABLE IF EXISTS " + sqlutil.QuoteDouble(name)
	if force {
		stmt += " CASCADE"
	}
	_, dropErr := conn.ExecContext(ctx, stmt)

	if disabled {
		if _, err := conn.ExecContext(ctx, "SET session_replication_role = DEFAULT"); err != nil && dropErr == nil {
			dropErr = err
		}
	}

	if dropErr != nil {
		return &DropError{Table: name, Err: dropErr}
	}
	return nil
}

func (a *postgresAdapter) EstimateDataSize(ctx context.Context) (SizeEstimate, error) {
	query := `SELECT pg_database_size(current_database()),
		COALESCE(SUM(GREATEST(reltuples, 0))::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relkind = 'r'`

	var est SizeEstimate
	if err := a.db.QueryRowContext(ctx, query).Scan(&est.Bytes, &est.Rows); err != nil {
		return SizeEstimate{}, fmt.Errorf("failed to estimate data size: %w", err)
	}
	return est, nil
}

// Dump shells out to pg_dump and streams the output into w, matching the
// vendor-native format expected by restore tooling.
func (a *postgresAdapter) Dump(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"--host="+a.cfg.Host,
		"--port="+strconv.Itoa(a.cfg.Port),
		"--username="+a.cfg.User,
		"--dbname="+a.cfg.Database,
		"--no-password",
	)
	cmd.Stdout = w
	cmd.Env = append(os.Environ(), "PGPASSWORD="+a.cfg.Password)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}

func (a *postgresAdapter) PostOptimize(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	return nil
}

func (a *postgresAdapter) Hint(operation string) Hint {
	switch operation {
	case "drop":
		return Hint{CascadeSupported: true, PreferredBatchSize: 50}
	default:
		return Hint{PreferredBatchSize: 50}
	}
}

func (a *postgresAdapter) Close() error {
	return a.db.Close()
}
