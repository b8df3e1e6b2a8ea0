package memory

import (
	"context"

	"medialib/internal/domain/repositories"
)

type txKey struct{}

// TransactionManager serializes units of work against a Store. It offers
// isolation between units but no rollback: writes made before fn fails stay.
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager for store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx runs fn while holding the store's unit-of-work lock
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	return fn(context.WithValue(ctx, txKey{}, true))
}
