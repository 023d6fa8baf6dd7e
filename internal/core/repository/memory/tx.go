package memory

import (
	"context"
	"fmt"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// txView runs with Store.mu already held by WithinTx.
type txView struct {
	store *Store
}

func (t *txView) LockWallets(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error) {
	st := &t.store.state
	locked := make(map[uuid.UUID]*models.Wallet, len(userIDs))
	for _, userID := range userIDs {
		walletID, ok := st.walletsByUser[userID]
		if !ok {
			return nil, fmt.Errorf("%w: user %s", repository.ErrWalletNotFound, userID)
		}
		wallet := st.wallets[walletID]
		locked[userID] = &wallet
	}
	return locked, nil
}

func (t *txView) ApplyEntry(_ context.Context, walletID uuid.UUID, amount decimal.Decimal, kind models.TransactionKind, referenceID *uuid.UUID, description string) (*models.Transaction, error) {
	st := &t.store.state
	wallet, ok := st.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrWalletNotFound, walletID)
	}

	newBalance := wallet.Balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, repository.ErrInsufficientFunds
	}

	now := t.store.now()
	st.seq++
	entry := models.Transaction{
		ID:          uuid.New(),
		Seq:         st.seq,
		WalletID:    walletID,
		Amount:      amount,
		Kind:        kind,
		ReferenceID: referenceID,
		Description: description,
		CreatedAt:   now,
	}

	wallet.Balance = newBalance
	wallet.UpdatedAt = now
	st.wallets[walletID] = wallet
	st.entries[walletID] = append(st.entries[walletID], entry)

	return &entry, nil
}

func (t *txView) CreatePurchase(_ context.Context, purchase *models.Purchase) error {
	st := &t.store.state
	if _, ok := st.products[purchase.ProductID]; !ok {
		return fmt.Errorf("create purchase: %w: %s", repository.ErrProductNotFound, purchase.ProductID)
	}
	purchase.CreatedAt = t.store.now()
	st.purchases = append(st.purchases, *purchase)
	return nil
}

func (t *txView) CreateCommissionDistribution(_ context.Context, d *models.CommissionDistribution) error {
	st := &t.store.state
	if _, ok := st.links[d.AffiliateLinkID]; !ok {
		return fmt.Errorf("create commission distribution: unknown affiliate link %s", d.AffiliateLinkID)
	}
	d.CreatedAt = t.store.now()
	st.distributions = append(st.distributions, *d)
	return nil
}

func (t *txView) GetProduct(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	return t.store.state.getProduct(productID)
}

func (t *txView) ListActiveAffiliateLinks(_ context.Context, productID uuid.UUID) ([]models.AffiliateLink, error) {
	return t.store.state.activeLinks(productID), nil
}
