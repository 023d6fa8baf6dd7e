package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type postgresStore struct {
	db         *sqlx.DB
	log        logger.Logger
	txTimeout  time.Duration
	maxRetries int
}

type Options struct {
	TxTimeout    time.Duration
	TxMaxRetries int
}

// NewPostgresStore always makes at least one attempt per transaction; a
// negative TxMaxRetries counts as zero.
func NewPostgresStore(db *sqlx.DB, log logger.Logger, opts Options) repository.Store {
	return &postgresStore{
		db:         db,
		log:        log,
		txTimeout:  opts.TxTimeout,
		maxRetries: max(opts.TxMaxRetries, 0),
	}
}

const walletColumns = `id, user_id, balance, created_at, updated_at`

const transactionColumns = `id, seq, wallet_id, amount, transaction_type, reference_id, description, created_at`

func (r *postgresStore) CreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, 0) RETURNING ` + walletColumns
	err := r.db.GetContext(ctx, &wallet, query, uuid.New(), userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, fmt.Errorf("%w: user %s", repository.ErrWalletExists, userID)
		}
		return nil, classifyError(fmt.Errorf("create wallet: %w", err))
	}
	return &wallet, nil
}

func (r *postgresStore) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	err := r.db.GetContext(ctx, &wallet, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", repository.ErrWalletNotFound, userID)
		}
		return nil, classifyError(fmt.Errorf("error getting wallet: %w", err))
	}
	return &wallet, nil
}

func (r *postgresStore) GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE id = $1`, walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", repository.ErrWalletNotFound, walletID)
		}
		return decimal.Zero, classifyError(fmt.Errorf("get balance: %w", err))
	}
	return balance, nil
}

func (r *postgresStore) ListEntries(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error) {
	entries := []models.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, seq DESC`
	if err := r.db.SelectContext(ctx, &entries, query, walletID); err != nil {
		return nil, classifyError(fmt.Errorf("list entries: %w", err))
	}
	return entries, nil
}

func (r *postgresStore) SumEntries(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE wallet_id = $1`
	if err := r.db.GetContext(ctx, &sum, query, walletID); err != nil {
		return decimal.Zero, classifyError(fmt.Errorf("sum entries: %w", err))
	}
	return sum, nil
}

// postgresTx implements repository.Tx on top of one open sqlx transaction.
type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) LockWallets(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error) {
	ids := uniqueStrings(userIDs)

	var wallets []models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE user_id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`
	if err := t.tx.SelectContext(ctx, &wallets, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}

	locked := make(map[uuid.UUID]*models.Wallet, len(wallets))
	for i := range wallets {
		locked[wallets[i].UserID] = &wallets[i]
	}
	for _, userID := range userIDs {
		if _, ok := locked[userID]; !ok {
			return nil, fmt.Errorf("%w: user %s", repository.ErrWalletNotFound, userID)
		}
	}
	return locked, nil
}

func (t *postgresTx) ApplyEntry(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, kind models.TransactionKind, referenceID *uuid.UUID, description string) (*models.Transaction, error) {
	if err := t.updateBalance(ctx, walletID, amount); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		Amount:      amount,
		Kind:        kind,
		ReferenceID: referenceID,
		Description: description,
	}

	const query = `INSERT INTO wallet_transactions
		(id, wallet_id, amount, transaction_type, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, created_at`

	row := t.tx.QueryRowxContext(ctx, query,
		entry.ID,
		entry.WalletID,
		entry.Amount,
		entry.Kind,
		entry.ReferenceID,
		entry.Description,
	)
	if err := row.Scan(&entry.Seq, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	return entry, nil
}

// updateBalance applies the delta in one guarded statement. The row lock
// taken by UPDATE serializes concurrent writers of the same wallet, and the
// guard makes the funds check part of the same write.
func (t *postgresTx) updateBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	const updateQuery = `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`

	var newBalance decimal.Decimal
	err := t.tx.GetContext(ctx, &newBalance, updateQuery, amount, walletID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update balance: %w", err)
	}

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID); err != nil {
		return fmt.Errorf("check wallet: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", repository.ErrWalletNotFound, walletID)
	}
	return repository.ErrInsufficientFunds
}

func (t *postgresTx) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	const query = `INSERT INTO product_purchases
		(id, product_id, buyer_user_id, buyer_email, purchase_price, download_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	row := t.tx.QueryRowxContext(ctx, query,
		purchase.ID,
		purchase.ProductID,
		purchase.BuyerUserID,
		purchase.BuyerEmail,
		purchase.Price,
		purchase.DownloadURL,
		purchase.Status,
	)
	if err := row.Scan(&purchase.CreatedAt); err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (t *postgresTx) CreateCommissionDistribution(ctx context.Context, d *models.CommissionDistribution) error {
	const query = `INSERT INTO commission_distributions
		(id, affiliate_product_id, purchase_id, affiliate_user_id, commission_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	row := t.tx.QueryRowxContext(ctx, query,
		d.ID,
		d.AffiliateLinkID,
		d.PurchaseID,
		d.AffiliateUserID,
		d.CommissionAmount,
	)
	if err := row.Scan(&d.CreatedAt); err != nil {
		return fmt.Errorf("create commission distribution: %w", err)
	}
	return nil
}

func (t *postgresTx) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return getProduct(ctx, t.tx, productID)
}

func (t *postgresTx) ListActiveAffiliateLinks(ctx context.Context, productID uuid.UUID) ([]models.AffiliateLink, error) {
	return listActiveAffiliateLinks(ctx, t.tx, productID)
}

func uniqueStrings(ids []uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
