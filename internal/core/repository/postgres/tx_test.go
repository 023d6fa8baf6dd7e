package postgres_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/Nzyazin/settlement/internal/core/repository/postgres"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestTransactionErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		retryable   bool
		unavailable bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true, false},
		{"deadlock", fmt.Errorf("lock wallets: %w", &pq.Error{Code: "40P01"}), true, false},
		{"statement timeout", &pq.Error{Code: "57014"}, false, true},
		{"connection failure", &pq.Error{Code: "08006"}, false, true},
		{"connection refused", &pq.Error{Code: "08001"}, false, true},
		{"deadline exceeded", fmt.Errorf("begin transaction: %w", context.DeadlineExceeded), false, true},
		{"cancelled", context.Canceled, false, true},
		{"bad connection", driver.ErrBadConn, false, true},
		{"check violation", &pq.Error{Code: "23514"}, false, false},
		{"plain error", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, postgres.IsRetryableError(tt.err))

			classified := postgres.ClassifyError(tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(classified, repository.ErrStorageUnavailable))
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyErrorKeepsDomainErrors(t *testing.T) {
	for _, err := range []error{
		repository.ErrWalletNotFound,
		repository.ErrInsufficientFunds,
		repository.ErrProductNotFound,
		repository.ErrWalletExists,
	} {
		wrapped := fmt.Errorf("settle: %w", err)
		assert.Same(t, wrapped, postgres.ClassifyError(wrapped))
	}
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	// No database: a cancelled context must surface as unavailable without
	// running fn, whatever the retry setting.
	for _, retries := range []int{-1, 0, 3} {
		store := postgres.NewPostgresStore(nil, logger.NewNop(), postgres.Options{TxMaxRetries: retries})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ran := false
		err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			ran = true
			return nil
		})
		assert.False(t, ran)
		assert.ErrorIs(t, err, repository.ErrStorageUnavailable, "retries=%d", retries)
	}
}
