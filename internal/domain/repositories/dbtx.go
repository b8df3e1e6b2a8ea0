package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is what the Postgres folder and asset repositories query through.
// *pgxpool.Pool and pgx.Tx both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

type activeTxKey struct{}

// WithTx marks ctx as running inside tx
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, activeTxKey{}, tx)
}

// TxFromContext returns the transaction ctx runs inside, or nil
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(activeTxKey{}).(pgx.Tx)
	return tx
}
