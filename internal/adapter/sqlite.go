package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/sqlutil"
)

// sqliteAdapter implements Adapter for file-based SQLite databases.
// Unsafe mode is a no-op scoped acquisition: drops always run with
// PRAGMA foreign_keys off on their own connection, and the dump is a
// file copy rather than a vendor dump tool.
type sqliteAdapter struct {
	db   *sql.DB
	path string
}

func openSQLite(ctx context.Context, cfg *config.DatabaseConfig) (Adapter, error) {
	db, err := connectWithRetry(ctx, "sqlite3", cfg.Path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &sqliteAdapter{db: db, path: cfg.Path}, nil
}

// newSQLiteAdapter wraps an existing pool. Used by tests.
func newSQLiteAdapter(db *sql.DB, path string) *sqliteAdapter {
	return &sqliteAdapter{db: db, path: path}
}

func (a *sqliteAdapter) Vendor() Kind { return KindSQLite }

func (a *sqliteAdapter) DB() *sql.DB { return a.db }

func (a *sqliteAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

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

func (a *sqliteAdapter) ListForeignKeys(ctx context.Context) ([]graph.ForeignKey, error) {
	tables, err := a.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var fks []graph.ForeignKey
	for _, table := range tables {
		rows, err := a.db.QueryContext(ctx,
			fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqlutil.QuoteBacktick(table)))
		if err != nil {
			return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
		}

		for rows.Next() {
			// PRAGMA foreign_key_list columns:
			// id, seq, table, from, to, on_update, on_delete, match
			var id, seq int
			var refTable, fromCol string
			var toCol sql.NullString
			var onUpdate, onDelete, match string
			if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
			}
			fks = append(fks, graph.ForeignKey{From: table, To: refTable, Column: fromCol})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, &IntrospectionError{Op: "list foreign keys", Err: err}
		}
		rows.Close()
	}

	return fks, nil
}

// BeginUnsafeMode is a no-op scoped acquisition. SQLite FK enforcement is
// per-connection and drops disable it on their own connection anyway.
func (a *sqliteAdapter) BeginUnsafeMode(ctx context.Context) (RestoreFunc, error) {
	return func(ctx context.Context) error { return nil }, nil
}

func (a *sqliteAdapter) DropTable(ctx context.Context, name string, force bool) error {
	if !sqlutil.IsValidIdentifier(name) {
		return &DropError{Table: name, Err: &sqlutil.InvalidIdentifierError{Name: name}}
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return &DropError{Table: name, Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return &DropError{Table: name, Err: err}
	}

	_, dropErr := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlutil.QuoteBacktick(name))

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil && dropErr == nil {
		dropErr = err
	}

	if dropErr != nil {
		return &DropError{Table: name, Err: dropErr}
	}
	return nil
}

func (a *sqliteAdapter) EstimateDataSize(ctx context.Context) (SizeEstimate, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return SizeEstimate{}, fmt.Errorf("failed to stat database file: %w", err)
	}
	// SQLite keeps no cheap row estimate; the file size is enough for the
	// backup policy and the planner treats zero rows as unknown.
	return SizeEstimate{Bytes: info.Size()}, nil
}

// Dump copies the database file into w. The copy is restorable by any
// SQLite tooling and independent of this process.
func (a *sqliteAdapter) Dump(ctx context.Context, w io.Writer) error {
	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy database file: %w", err)
	}
	return nil
}

func (a *sqliteAdapter) PostOptimize(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

func (a *sqliteAdapter) Hint(operation string) Hint {
	switch operation {
	case "drop":
		// Single-file engine: serial drops behave best.
		return Hint{CascadeSupported: false, PreferredBatchSize: 1}
	default:
		return Hint{PreferredBatchSize: 1}
	}
}

func (a *sqliteAdapter) Close() error {
	return a.db.Close()
}
