package repositories

import "context"

// TxFn is a unit of work run by a TransactionManager
type TxFn func(ctx context.Context) error

// TransactionManager groups metadata writes. Blob store calls never run
// inside a transaction; the two stores are reconciled best-effort.
type TransactionManager interface {
	// ExecTx runs fn atomically; a nested call joins the outer unit of work
	ExecTx(ctx context.Context, fn TxFn) error
}
