package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/metrics"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletUsecase interface {
	OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, op models.WalletOperation) (*models.OperationResult, error)
	Debit(ctx context.Context, op models.WalletOperation) (*models.OperationResult, error)
	Topup(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.OperationResult, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.OperationResult, error)

	// CreditWithin credits a wallet already locked in tx. Zero amounts are
	// allowed so that zero-rate commissions still leave a ledger line.
	CreditWithin(ctx context.Context, tx repository.Tx, wallet *models.Wallet, amount decimal.Decimal, kind models.TransactionKind, referenceID *uuid.UUID, description string) (*models.Transaction, error)

	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*models.Reconciliation, error)
}

type walletUsecase struct {
	store   repository.LedgerStore
	metrics *metrics.Metrics
	log     logger.Logger
}

func NewWalletUsecase(store repository.LedgerStore, m *metrics.Metrics, log logger.Logger) WalletUsecase {
	return &walletUsecase{store: store, metrics: m, log: log}
}

func (uc *walletUsecase) OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	wallet, err := uc.store.CreateWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	uc.log.Info("Wallet opened",
		logger.StringField("user_id", userID.String()),
		logger.StringField("wallet_id", wallet.ID.String()))
	return wallet, nil
}

func (uc *walletUsecase) Topup(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.OperationResult, error) {
	return uc.Credit(ctx, models.WalletOperation{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.KindTopup,
		Description: description,
	})
}

func (uc *walletUsecase) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.OperationResult, error) {
	return uc.Debit(ctx, models.WalletOperation{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.KindWithdrawal,
		Description: description,
	})
}

func (uc *walletUsecase) Credit(ctx context.Context, op models.WalletOperation) (*models.OperationResult, error) {
	uc.logStart("credit", op)
	if err := uc.validateOperation(op, true); err != nil {
		uc.observe(op.Kind, err)
		return nil, err
	}
	result, err := uc.apply(ctx, op, op.Amount)
	uc.observe(op.Kind, err)
	return result, err
}

// Debit checks funds and writes under the same wallet lock, so two
// concurrent debits can never both pass the check.
func (uc *walletUsecase) Debit(ctx context.Context, op models.WalletOperation) (*models.OperationResult, error) {
	uc.logStart("debit", op)
	if err := uc.validateOperation(op, false); err != nil {
		uc.observe(op.Kind, err)
		return nil, err
	}
	result, err := uc.apply(ctx, op, op.Amount.Neg())
	uc.observe(op.Kind, err)
	return result, err
}

func (uc *walletUsecase) apply(ctx context.Context, op models.WalletOperation, delta decimal.Decimal) (*models.OperationResult, error) {
	var result *models.OperationResult

	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallets, err := tx.LockWallets(ctx, []uuid.UUID{op.UserID})
		if err != nil {
			return err
		}
		wallet := wallets[op.UserID]

		if delta.IsNegative() {
			if err := uc.checkBalance(wallet, op.Amount); err != nil {
				return err
			}
		} else if err := checkBalanceLimit(wallet.Balance, delta); err != nil {
			return err
		}

		entry, err := tx.ApplyEntry(ctx, wallet.ID, delta, op.Kind, op.ReferenceID, op.Description)
		if err != nil {
			return err
		}
		result = &models.OperationResult{
			Transaction: *entry,
			Balance:     wallet.Balance.Add(delta),
		}
		return nil
	})
	if err != nil {
		uc.log.Warn("Wallet operation failed",
			logger.StringField("user_id", op.UserID.String()),
			logger.StringField("kind", string(op.Kind)),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("%s wallet: %w", op.Kind, err)
	}

	return result, nil
}

func (uc *walletUsecase) CreditWithin(ctx context.Context, tx repository.Tx, wallet *models.Wallet, amount decimal.Decimal, kind models.TransactionKind, referenceID *uuid.UUID, description string) (*models.Transaction, error) {
	if amount.IsNegative() || !hasMaxPlaces(amount) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !kind.IsCredit() {
		return nil, fmt.Errorf("%w: %q is not a credit", ErrInvalidOperationType, kind)
	}
	if err := checkBalanceLimit(wallet.Balance, amount); err != nil {
		return nil, err
	}

	entry, err := tx.ApplyEntry(ctx, wallet.ID, amount, kind, referenceID, description)
	if err != nil {
		return nil, err
	}
	wallet.Balance = wallet.Balance.Add(amount)
	return entry, nil
}

func (uc *walletUsecase) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := uc.getWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return uc.store.GetBalance(ctx, wallet.ID)
}

func (uc *walletUsecase) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	wallet, err := uc.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.store.ListEntries(ctx, wallet.ID)
}

// Reconcile recomputes the wallet balance from its ledger. The two reads
// are not taken in one snapshot, so a concurrent write can produce a
// transient mismatch; callers should re-check before alerting.
func (uc *walletUsecase) Reconcile(ctx context.Context, userID uuid.UUID) (*models.Reconciliation, error) {
	wallet, err := uc.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := uc.store.SumEntries(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("sum entries: %w", err)
	}
	balance, err := uc.store.GetBalance(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	rec := &models.Reconciliation{
		WalletID:   wallet.ID,
		Balance:    balance,
		LedgerSum:  sum,
		Consistent: balance.Equal(sum),
	}
	if !rec.Consistent {
		uc.log.Error("Wallet balance does not match ledger",
			logger.StringField("wallet_id", wallet.ID.String()),
			logger.StringField("balance", balance.StringFixed(2)),
			logger.StringField("ledger_sum", sum.StringFixed(2)))
	}
	return rec, nil
}

func (uc *walletUsecase) logStart(direction string, op models.WalletOperation) {
	uc.log.Info("Starting operation",
		logger.StringField("direction", direction),
		logger.StringField("user_id", op.UserID.String()),
		logger.StringField("kind", string(op.Kind)),
		logger.StringField("amount", op.Amount.String()))
}

// validateOperation also ties the kind to the direction: a credit must carry
// a credit kind and a debit a withdrawal, so an entry's sign matches its kind.
func (uc *walletUsecase) validateOperation(op models.WalletOperation, credit bool) error {
	if op.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	if err := validateAmount(op.Amount); err != nil {
		return err
	}
	if !op.Kind.Valid() || op.Kind.IsCredit() != credit {
		return fmt.Errorf("%w: %q", ErrInvalidOperationType, op.Kind)
	}
	return nil
}

func (uc *walletUsecase) getWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := uc.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrWalletNotFound) {
			uc.log.Error("Wallet lookup failed",
				logger.ErrorField("error", err),
				logger.StringField("user_id", userID.String()))
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return wallet, nil
}

func (uc *walletUsecase) checkBalance(wallet *models.Wallet, amount decimal.Decimal) error {
	if wallet.Balance.LessThan(amount) {
		uc.log.Warn("Insufficient funds",
			logger.StringField("balance", wallet.Balance.StringFixed(2)),
			logger.StringField("requested", amount.StringFixed(2)))
		return ErrInsufficientFunds
	}
	return nil
}

func (uc *walletUsecase) observe(kind models.TransactionKind, err error) {
	if !kind.Valid() {
		kind = "unknown"
	}
	switch {
	case err == nil:
		uc.metrics.ObserveWalletOperation(string(kind), metrics.ResultSuccess)
	case IsClientError(err):
		uc.metrics.ObserveWalletOperation(string(kind), metrics.ResultRejected)
	default:
		uc.metrics.ObserveWalletOperation(string(kind), metrics.ResultFailed)
	}
}
