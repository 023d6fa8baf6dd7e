package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/lib/pq"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
	pqUniqueViolation      = "23505"
)

// WithinTx runs fn in a READ COMMITTED transaction. Wallet rows are locked
// explicitly by the callers (LockWallets / guarded UPDATE), so the weaker
// isolation level is enough and keeps unrelated wallets from conflicting.
// Serialization failures and deadlocks re-run fn from scratch.
func (r *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	var lastErr error
	attempts := r.maxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		err := r.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return classifyError(err)
		}

		lastErr = err
		r.log.Warn("Retrying transaction",
			logger.IntField("attempt", attempt),
			logger.ErrorField("error", err))

		sleep := time.Duration(attempt*attempt) * 10 * time.Millisecond
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, ctx.Err())
		}
	}

	return fmt.Errorf("%w: transaction failed after %d attempts: %w", repository.ErrStorageUnavailable, attempts, lastErr)
}

func (r *postgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error("Error beginning transaction", logger.ErrorField("error", err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	var isCommitted bool
	defer func() {
		if isCommitted {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("Transaction rollback failed", logger.ErrorField("error", rbErr))
			if err != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if err != nil {
			r.log.Warn("Transaction rolled back due to error", logger.ErrorField("error", err))
		}
	}()

	if r.txTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", r.txTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set statement timeout: %w", err)
		}
	}

	if err = fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction", logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return nil
}

func isRetryableError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// classifyError maps transport-level failures onto ErrStorageUnavailable.
// Domain errors pass through unchanged.
func classifyError(err error) error {
	switch {
	case errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrInsufficientFunds),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrWalletExists),
		errors.Is(err, repository.ErrStorageUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == pqQueryCanceled || pqErr.Code.Class() == "08") {
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}
	return err
}
