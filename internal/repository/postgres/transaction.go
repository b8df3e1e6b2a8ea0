package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"medialib/internal/domain/repositories"
)

// Attempts for a unit of work aborted by a serialization conflict
const maxTxAttempts = 3

// TransactionManager runs metadata units of work at SERIALIZABLE isolation,
// so two concurrent folder moves cannot both pass the cycle check.
type TransactionManager struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	backoff time.Duration
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger, backoff: 20 * time.Millisecond}
}

// ExecTx executes fn within a transaction. Nested calls join the outer
// transaction. A serialization failure or deadlock reruns fn from scratch.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = tm.runOnce(ctx, fn)
		if !IsPgRetryableError(err) {
			return err
		}

		tm.logger.Debug("transaction conflict, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * tm.backoff):
		}
	}
	return err
}

func (tm *TransactionManager) runOnce(ctx context.Context, fn repositories.TxFn) error {
	tx, err := tm.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
