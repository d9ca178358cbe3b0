// Package tx carries a database transaction through context so that stores
// touched within one unit of work share a single commit. Stores that support
// it check From and fall back to their own connection when no transaction is
// ambient.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function as one unit of work. The SQL implementation
// commits or rolls back everything the function wrote; Noop runs it directly
// for deployments without a transactional store.
type Runner interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

// SQL is a Runner backed by a database connection pool.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Within begins a transaction, makes it ambient via WithTx, and runs fn.
// A nil return commits; any error rolls back. When the context already
// carries a transaction, fn joins it and the outer owner decides the commit.
func (r *SQL) Within(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	t, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = t.Rollback() }()

	if err := fn(WithTx(ctx, t)); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Noop runs the function without any transaction. In-memory stores apply
// their writes immediately, so there is nothing to commit.
type Noop struct{}

func (Noop) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
