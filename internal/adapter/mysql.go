package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/sqlutil"
)

// mysqlAdapter implements Adapter for MySQL-like engines.
type mysqlAdapter struct {
	db     *sql.DB
	cfg    *config.DatabaseConfig
	unsafe atomic.Bool
}

func openMySQL(ctx context.Context, cfg *config.DatabaseConfig) (Adapter, error) {
	db, err := connectWithRetry(ctx, "mysql", BuildMySQLDSN(cfg), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return &mysqlAdapter{db: db, cfg: cfg}, nil
}

// newMySQLAdapter wraps an existing pool. Used by tests with sqlmock.
func newMySQLAdapter(db *sql.DB, cfg *config.DatabaseConfig) *mysqlAdapter {
	return &mysqlAdapter{db: db, cfg: cfg}
}

// BuildMySQLDSN constructs a MySQL DSN from configuration.
func BuildMySQLDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true&multiStatements=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

func (a *mysqlAdapter) Vendor() Kind { return KindMySQL }

func (a *mysqlAdapter) DB() *sql.DB { return a.db }

func (a *mysqlAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

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

func (a *mysqlAdapter) ListForeignKeys(ctx context.Context) ([]graph.ForeignKey, error) {
	query := `SELECT TABLE_NAME, REFERENCED_TABLE_NAME, COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, COLUMN_NAME`

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

// BeginUnsafeMode flags the adapter so drops run with FOREIGN_KEY_CHECKS
// disabled on their session. The flag keeps the toggle on every
// connection the pool hands out for a drop, since session variables do
// not travel across pooled connections.
func (a *mysqlAdapter) BeginUnsafeMode(ctx context.Context) (RestoreFunc, error) {
	a.unsafe.Store(true)
	return func(ctx context.Context) error {
		a.unsafe.Store(false)
		return nil
	}, nil
}

func (a *mysqlAdapter) DropTable(ctx context.Context, name string, force bool) error {
	if !sqlutil.IsValidIdentifier(name) {
		return &DropError{Table: name, Err: &sqlutil.InvalidIdentifierError{Name: name}}
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return &DropError{Table: name, Err: err}
	}
	defer conn.Close()

	disabled := force || a.unsafe.Load()
	if disabled {
		if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return &DropError{Table: name, Err: err}
		}
	}

	_, dropErr := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlutil.QuoteBacktick(name))

	if disabled {
		// Re-enable before the connection returns to the pool, even when
		// the drop itself failed.
		if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil && dropErr == nil {
			dropErr = err
		}
	}

	if dropErr != nil {
		return &DropError{Table: name, Err: dropErr}
	}
	return nil
}

func (a *mysqlAdapter) EstimateDataSize(ctx context.Context) (SizeEstimate, error) {
	query := `SELECT COALESCE(SUM(DATA_LENGTH + INDEX_LENGTH), 0), COALESCE(SUM(TABLE_ROWS), 0)
		FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE()`

	var est SizeEstimate
	if err := a.db.QueryRowContext(ctx, query).Scan(&est.Bytes, &est.Rows); err != nil {
		return SizeEstimate{}, fmt.Errorf("failed to estimate data size: %w", err)
	}
	return est, nil
}

// Dump shells out to mysqldump and streams the output into w, matching
// the vendor-native format expected by restore tooling.
func (a *mysqlAdapter) Dump(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, "mysqldump",
		"--host="+a.cfg.Host,
		"--port="+strconv.Itoa(a.cfg.Port),
		"--user="+a.cfg.User,
		"--password="+a.cfg.Password,
		"--single-transaction",
		a.cfg.Database,
	)
	cmd.Stdout = w

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}
	return nil
}

func (a *mysqlAdapter) PostOptimize(ctx context.Context) error {
	tables, err := a.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := a.db.ExecContext(ctx, "ANALYZE TABLE "+sqlutil.QuoteBacktick(table)); err != nil {
			return fmt.Errorf("failed to analyze table %q: %w", table, err)
		}
	}
	return nil
}

func (a *mysqlAdapter) Hint(operation string) Hint {
	switch operation {
	case "drop":
		// MySQL has no DROP TABLE ... CASCADE; unsafe mode covers cycles.
		return Hint{CascadeSupported: false, PreferredBatchSize: 25}
	default:
		return Hint{PreferredBatchSize: 50}
	}
}

func (a *mysqlAdapter) Close() error {
	return a.db.Close()
}
