package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const DBConnKey contextKey = "db_conn"

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// WithConn returns a context carrying q for repositories to use instead of
// the pool.
func WithConn(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, DBConnKey, q)
}

// ConnFromContext retrieves the scoped connection or transaction from
// context, or nil when there is none.
func ConnFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(DBConnKey).(Querier)
	return q
}

// WithTx runs fn inside a transaction. Repositories called with the context
// passed to fn join the transaction. A nested call reuses the outer one.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := ConnFromContext(ctx).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(WithConn(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
