// Package lock serializes destructive runs against the same database
// using vendor advisory locks, so two concurrent resets cannot interleave
// their drop waves.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/gofresh/internal/adapter"
)

// ErrLockTimeout is returned when another process holds the reset lock
// and it is not released within the configured timeout.
var ErrLockTimeout = errors.New("another reset is already running against this database")

// Guard holds an acquired advisory lock. Advisory locks are
// connection-scoped, so the guard pins one pool connection until Release.
type Guard struct {
	conn    *sql.Conn
	release func(ctx context.Context) error
}

// Release frees the lock and returns its connection to the pool. Safe to
// call on a nil guard.
func (g *Guard) Release(ctx context.Context) error {
	if g == nil || g.conn == nil {
		return nil
	}
	err := g.release(ctx)
	if closeErr := g.conn.Close(); err == nil {
		err = closeErr
	}
	g.conn = nil
	return err
}

// Acquire takes the named advisory lock on the adapter's database. SQLite
// has no shared server to coordinate through, so it returns a no-op guard;
// file-level locking already serializes writers there.
func Acquire(ctx context.Context, a adapter.Adapter, name string, timeout time.Duration) (*Guard, error) {
	switch a.Vendor() {
	case adapter.KindMySQL:
		return acquireMySQL(ctx, a.DB(), name, timeout)
	case adapter.KindPostgres:
		return acquirePostgres(ctx, a.DB(), name, timeout)
	default:
		return &Guard{}, nil
	}
}

func acquireMySQL(ctx context.Context, db *sql.DB, name string, timeout time.Duration) (*Guard, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin lock connection: %w", err)
	}

	var got sql.NullInt64
	err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, int(timeout.Seconds())).Scan(&got)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, ErrLockTimeout
	}

	return &Guard{
		conn: conn,
		release: func(ctx context.Context) error {
			_, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", name)
			return err
		},
	}, nil
}

// acquirePostgres polls pg_try_advisory_lock until it succeeds or the
// timeout elapses. The blocking pg_advisory_lock is deliberately avoided:
// it cannot be bounded without statement_timeout side effects.
func acquirePostgres(ctx context.Context, db *sql.DB, name string, timeout time.Duration) (*Guard, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin lock connection: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		var got bool
		err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", name).Scan(&got)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
		if got {
			break
		}
		if time.Now().After(deadline) {
			conn.Close()
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return &Guard{
		conn: conn,
		release: func(ctx context.Context) error {
			_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name)
			return err
		},
	}, nil
}
