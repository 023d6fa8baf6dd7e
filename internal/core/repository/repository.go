package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrWalletExists       = errors.New("wallet already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrProductNotFound    = errors.New("product not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Tx is the set of writes and reads available inside one storage
// transaction. Nothing done through a Tx is visible to other callers until
// the enclosing WithinTx returns nil.
type Tx interface {
	CatalogReader

	// LockWallets takes exclusive row locks on the wallets of the given
	// users, in ascending wallet id order, and returns them keyed by user.
	LockWallets(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error)

	// ApplyEntry adds amount to the wallet balance and appends the matching
	// ledger entry. A negative amount that would take the balance below
	// zero fails with ErrInsufficientFunds.
	ApplyEntry(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, kind models.TransactionKind, referenceID *uuid.UUID, description string) (*models.Transaction, error)

	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	CreateCommissionDistribution(ctx context.Context, distribution *models.CommissionDistribution) error
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListActiveAffiliateLinks(ctx context.Context, productID uuid.UUID) ([]models.AffiliateLink, error)
}

// LedgerStore is the only owner of wallet balances.
type LedgerStore interface {
	// WithinTx runs fn in a single transaction: commit when fn returns nil,
	// roll back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	// ListEntries returns the wallet's entries newest first.
	ListEntries(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error)
	SumEntries(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

type PurchaseRepository interface {
	ListPurchasesByBuyer(ctx context.Context, buyerUserID uuid.UUID) ([]models.Purchase, error)
	ListDistributions(ctx context.Context, purchaseID uuid.UUID) ([]models.CommissionDistribution, error)
}

type AffiliateRepository interface {
	CatalogReader
	UpsertAffiliateLink(ctx context.Context, link *models.AffiliateLink) (*models.AffiliateLink, error)
	ListAffiliateLinksByUser(ctx context.Context, affiliateUserID uuid.UUID) ([]models.AffiliateLink, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	LedgerStore
	PurchaseRepository
	AffiliateRepository
}
