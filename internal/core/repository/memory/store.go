// Package memory is an in-process repository.Store used by tests and local
// runs without Postgres. A transaction holds the store-wide lock for its
// whole duration and restores a snapshot when it fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu    sync.RWMutex
	state state
	now   func() time.Time
}

type state struct {
	seq           int64
	wallets       map[uuid.UUID]models.Wallet // by wallet id
	walletsByUser map[uuid.UUID]uuid.UUID
	entries       map[uuid.UUID][]models.Transaction // by wallet id, append order
	products      map[uuid.UUID]models.Product
	links         map[uuid.UUID]models.AffiliateLink
	purchases     []models.Purchase
	distributions []models.CommissionDistribution
}

var _ repository.Store = (*Store)(nil)

type Option func(*Store)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		state: state{
			wallets:       make(map[uuid.UUID]models.Wallet),
			walletsByUser: make(map[uuid.UUID]uuid.UUID),
			entries:       make(map[uuid.UUID][]models.Transaction),
			products:      make(map[uuid.UUID]models.Product),
			links:         make(map[uuid.UUID]models.AffiliateLink),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s state) clone() state {
	c := state{
		seq:           s.seq,
		wallets:       make(map[uuid.UUID]models.Wallet, len(s.wallets)),
		walletsByUser: make(map[uuid.UUID]uuid.UUID, len(s.walletsByUser)),
		entries:       make(map[uuid.UUID][]models.Transaction, len(s.entries)),
		products:      make(map[uuid.UUID]models.Product, len(s.products)),
		links:         make(map[uuid.UUID]models.AffiliateLink, len(s.links)),
		purchases:     append([]models.Purchase(nil), s.purchases...),
		distributions: append([]models.CommissionDistribution(nil), s.distributions...),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.walletsByUser {
		c.walletsByUser[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = append([]models.Transaction(nil), v...)
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	return c
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
		}
	}()

	if err := fn(ctx, &txView{store: s}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}
	committed = true
	return nil
}

// SaveProduct stands in for the catalog service.
func (s *Store) SaveProduct(product models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[product.ID] = product
}

func (s *Store) CreateWallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.walletsByUser[userID]; ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrWalletExists, userID)
	}
	now := s.now()
	wallet := models.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.state.wallets[wallet.ID] = wallet
	s.state.walletsByUser[userID] = wallet.ID
	return &wallet, nil
}

func (s *Store) GetWalletByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	walletID, ok := s.state.walletsByUser[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrWalletNotFound, userID)
	}
	wallet := s.state.wallets[walletID]
	return &wallet, nil
}

func (s *Store) GetBalance(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet, ok := s.state.wallets[walletID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", repository.ErrWalletNotFound, walletID)
	}
	return wallet.Balance, nil
}

func (s *Store) ListEntries(_ context.Context, walletID uuid.UUID) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.state.entries[walletID]
	out := make([]models.Transaction, len(src))
	for i, e := range src {
		out[len(src)-1-i] = e
	}
	return out, nil
}

func (s *Store) SumEntries(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range s.state.entries[walletID] {
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func (s *Store) GetProduct(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getProduct(productID)
}

func (s *Store) ListActiveAffiliateLinks(_ context.Context, productID uuid.UUID) ([]models.AffiliateLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.activeLinks(productID), nil
}

func (s *Store) UpsertAffiliateLink(_ context.Context, link *models.AffiliateLink) (*models.AffiliateLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.state.links {
		if existing.ProductID == link.ProductID && existing.AffiliateUserID == link.AffiliateUserID {
			existing.CommissionRate = link.CommissionRate
			existing.IsActive = link.IsActive
			existing.UpdatedAt = now
			s.state.links[id] = existing
			return &existing, nil
		}
	}

	saved := *link
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	saved.CreatedAt = now
	saved.UpdatedAt = now
	s.state.links[saved.ID] = saved
	return &saved, nil
}

func (s *Store) ListAffiliateLinksByUser(_ context.Context, affiliateUserID uuid.UUID) ([]models.AffiliateLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := []models.AffiliateLink{}
	for _, l := range s.state.links {
		if l.AffiliateUserID == affiliateUserID {
			links = append(links, l)
		}
	}
	sortLinks(links)
	return links, nil
}

func (s *Store) ListPurchasesByBuyer(_ context.Context, buyerUserID uuid.UUID) ([]models.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := []models.Purchase{}
	for i := len(s.state.purchases) - 1; i >= 0; i-- {
		p := s.state.purchases[i]
		if p.BuyerUserID != nil && *p.BuyerUserID == buyerUserID {
			purchases = append(purchases, p)
		}
	}
	return purchases, nil
}

func (s *Store) ListDistributions(_ context.Context, purchaseID uuid.UUID) ([]models.CommissionDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distributions := []models.CommissionDistribution{}
	for _, d := range s.state.distributions {
		if d.PurchaseID == purchaseID {
			distributions = append(distributions, d)
		}
	}
	return distributions, nil
}

func (st *state) getProduct(productID uuid.UUID) (*models.Product, error) {
	product, ok := st.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, productID)
	}
	return &product, nil
}

func (st *state) activeLinks(productID uuid.UUID) []models.AffiliateLink {
	links := []models.AffiliateLink{}
	for _, l := range st.links {
		if l.ProductID == productID && l.IsActive {
			links = append(links, l)
		}
	}
	sortLinks(links)
	return links
}

func sortLinks(links []models.AffiliateLink) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].ID.String() < links[j].ID.String()
	})
}
