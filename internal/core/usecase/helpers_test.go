package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nzyazin/settlement/internal/core/events"
	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/Nzyazin/settlement/internal/core/repository/memory"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// stepClock advances by one millisecond on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SettlementEvent
}

func (p *recordingPublisher) PublishSettlement(_ context.Context, e events.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	store       *memory.Store
	wallets     usecase.WalletUsecase
	settlements usecase.SettlementUsecase
	affiliates  usecase.AffiliateUsecase
	publisher   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	return newFixtureWithStore(t, store, store)
}

// newFixtureWithStore lets a test wrap the backing store, e.g. to inject
// faults, while still seeding through the memory store directly.
func newFixtureWithStore(t *testing.T, mem *memory.Store, store repository.Store) *fixture {
	t.Helper()
	log := logger.NewNop()
	wallets := usecase.NewWalletUsecase(store, nil, log)
	publisher := &recordingPublisher{}
	return &fixture{
		store:       mem,
		wallets:     wallets,
		settlements: usecase.NewSettlementUsecase(store, wallets, publisher, nil, log),
		affiliates:  usecase.NewAffiliateUsecase(store, log),
		publisher:   publisher,
	}
}

func (f *fixture) newUser(t *testing.T) uuid.UUID {
	t.Helper()
	user := uuid.New()
	_, err := f.wallets.OpenWallet(context.Background(), user)
	require.NoError(t, err)
	return user
}

func (f *fixture) newProduct(t *testing.T, seller uuid.UUID, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.store.SaveProduct(models.Product{
		ID:           id,
		SellerUserID: seller,
		Title:        "Course",
		Price:        dec("100000"),
		IsActive:     active,
	})
	return id
}

func (f *fixture) linkAffiliate(t *testing.T, productID, affiliate uuid.UUID, rate string, active bool) {
	t.Helper()
	r := dec(rate)
	_, _, err := f.affiliates.Toggle(context.Background(), usecase.AffiliateToggle{
		ProductID:       productID,
		AffiliateUserID: affiliate,
		CommissionRate:  &r,
		IsActive:        &active,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, user uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := f.wallets.GetBalance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func (f *fixture) entries(t *testing.T, user uuid.UUID) []models.Transaction {
	t.Helper()
	entries, err := f.wallets.ListTransactions(context.Background(), user)
	require.NoError(t, err)
	return entries
}

func (f *fixture) requireConsistent(t *testing.T, users ...uuid.UUID) {
	t.Helper()
	for _, user := range users {
		rec, err := f.wallets.Reconcile(context.Background(), user)
		require.NoError(t, err)
		require.True(t, rec.Consistent, "wallet %s: balance %s, ledger %s", rec.WalletID, rec.Balance, rec.LedgerSum)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func purchaseFor(productID uuid.UUID, price string) models.PurchaseRequest {
	buyer := uuid.New()
	return models.PurchaseRequest{
		ProductID:   productID,
		BuyerUserID: &buyer,
		Price:       dec(price),
		DownloadURL: "https://cdn.example.com/files/course.zip",
	}
}
