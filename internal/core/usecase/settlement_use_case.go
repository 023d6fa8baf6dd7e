package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Nzyazin/settlement/internal/core/events"
	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/metrics"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SettlementUsecase interface {
	// SettlePurchase records the purchase, credits the seller and pays every
	// active affiliate in one transaction. Identical requests settle twice:
	// deduplication is the caller's job.
	SettlePurchase(ctx context.Context, req models.PurchaseRequest) (*models.Settlement, error)
	ListPurchasesByBuyer(ctx context.Context, buyerUserID uuid.UUID) ([]models.Purchase, error)
	ListDistributions(ctx context.Context, purchaseID uuid.UUID) ([]models.CommissionDistribution, error)
}

type settlementUsecase struct {
	store     repository.LedgerStore
	purchases repository.PurchaseRepository
	wallets   WalletUsecase
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       logger.Logger
}

func NewSettlementUsecase(store repository.Store, wallets WalletUsecase, publisher events.Publisher, m *metrics.Metrics, log logger.Logger) SettlementUsecase {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &settlementUsecase{
		store:     store,
		purchases: store,
		wallets:   wallets,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

func (uc *settlementUsecase) SettlePurchase(ctx context.Context, req models.PurchaseRequest) (*models.Settlement, error) {
	req, err := normalizePurchaseRequest(req)
	if err != nil {
		uc.log.Warn("Purchase rejected", logger.ErrorField("error", err))
		uc.metrics.ObserveSettlement(metrics.ResultRejected, decimal.Zero)
		return nil, err
	}

	var (
		settlement *models.Settlement
		sellerID   uuid.UUID
	)
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		s, seller, err := uc.settle(ctx, tx, req)
		if err != nil {
			return err
		}
		settlement, sellerID = s, seller
		return nil
	})
	if err != nil {
		uc.observeFailure(req, err)
		return nil, fmt.Errorf("settle purchase: %w", err)
	}

	event := events.NewSettlementEvent(settlement, sellerID)
	uc.metrics.ObserveSettlement(metrics.ResultSuccess, event.CommissionTotal)
	uc.log.Info("Purchase settled",
		logger.StringField("purchase_id", settlement.Purchase.ID.String()),
		logger.StringField("product_id", req.ProductID.String()),
		logger.StringField("price", req.Price.StringFixed(2)),
		logger.IntField("affiliates", len(settlement.Distributions)),
		logger.StringField("commission_total", event.CommissionTotal.StringFixed(2)))

	if err := uc.publisher.PublishSettlement(ctx, event); err != nil {
		uc.log.Error("Failed to publish settlement event",
			logger.StringField("purchase_id", settlement.Purchase.ID.String()),
			logger.ErrorField("error", err))
	}

	return settlement, nil
}

// settle performs every write of one settlement. Any error aborts the
// enclosing transaction, so nothing here is ever partially visible.
func (uc *settlementUsecase) settle(ctx context.Context, tx repository.Tx, req models.PurchaseRequest) (*models.Settlement, uuid.UUID, error) {
	product, err := tx.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidPurchase, err)
		}
		return nil, uuid.Nil, err
	}
	if !product.IsActive {
		return nil, uuid.Nil, fmt.Errorf("%w: product %s is not active", ErrInvalidPurchase, product.ID)
	}

	links, err := tx.ListActiveAffiliateLinks(ctx, product.ID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	rates := make([]decimal.Decimal, len(links))
	payees := make([]uuid.UUID, 0, len(links)+1)
	payees = append(payees, product.SellerUserID)
	for i, link := range links {
		rates[i] = link.CommissionRate
		payees = append(payees, link.AffiliateUserID)
	}

	commissions, err := CalculateCommissions(req.Price, rates)
	if err != nil {
		return nil, uuid.Nil, err
	}

	wallets, err := tx.LockWallets(ctx, payees)
	if err != nil {
		return nil, uuid.Nil, err
	}

	purchase := &models.Purchase{
		ID:          uuid.New(),
		ProductID:   product.ID,
		BuyerUserID: req.BuyerUserID,
		BuyerEmail:  req.BuyerEmail,
		Price:       req.Price,
		DownloadURL: req.DownloadURL,
		Status:      models.PurchaseStatusCompleted,
	}
	if err := tx.CreatePurchase(ctx, purchase); err != nil {
		return nil, uuid.Nil, err
	}

	_, err = uc.wallets.CreditWithin(ctx, tx, wallets[product.SellerUserID], req.Price,
		models.KindPurchaseIncome, &purchase.ID, fmt.Sprintf("Income from product %s", product.ID))
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("credit seller: %w", err)
	}

	distributions := make([]models.CommissionDistribution, 0, len(links))
	for i, link := range links {
		d := models.CommissionDistribution{
			ID:               uuid.New(),
			AffiliateLinkID:  link.ID,
			PurchaseID:       purchase.ID,
			AffiliateUserID:  link.AffiliateUserID,
			CommissionAmount: commissions[i],
		}
		if err := tx.CreateCommissionDistribution(ctx, &d); err != nil {
			return nil, uuid.Nil, err
		}

		_, err := uc.wallets.CreditWithin(ctx, tx, wallets[link.AffiliateUserID], d.CommissionAmount,
			models.KindAffiliateCommission, &d.ID, fmt.Sprintf("Commission for purchase %s", purchase.ID))
		if err != nil {
			return nil, uuid.Nil, fmt.Errorf("credit affiliate %s: %w", link.AffiliateUserID, err)
		}
		distributions = append(distributions, d)
	}

	return &models.Settlement{Purchase: *purchase, Distributions: distributions}, product.SellerUserID, nil
}

func (uc *settlementUsecase) ListPurchasesByBuyer(ctx context.Context, buyerUserID uuid.UUID) ([]models.Purchase, error) {
	if buyerUserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return uc.purchases.ListPurchasesByBuyer(ctx, buyerUserID)
}

func (uc *settlementUsecase) ListDistributions(ctx context.Context, purchaseID uuid.UUID) ([]models.CommissionDistribution, error) {
	return uc.purchases.ListDistributions(ctx, purchaseID)
}

func (uc *settlementUsecase) observeFailure(req models.PurchaseRequest, err error) {
	fields := []logger.Field{
		logger.StringField("product_id", req.ProductID.String()),
		logger.StringField("price", req.Price.String()),
		logger.ErrorField("error", err),
	}
	switch {
	case IsClientError(err):
		uc.metrics.ObserveSettlement(metrics.ResultRejected, decimal.Zero)
		uc.log.Warn("Purchase rejected", fields...)
	case errors.Is(err, ErrWalletNotFound):
		// A seller or affiliate without a wallet is a data integrity problem.
		uc.metrics.ObserveSettlement(metrics.ResultFailed, decimal.Zero)
		uc.log.Error("Settlement aborted: missing wallet", fields...)
	default:
		uc.metrics.ObserveSettlement(metrics.ResultFailed, decimal.Zero)
		uc.log.Error("Settlement failed", fields...)
	}
}

func normalizePurchaseRequest(req models.PurchaseRequest) (models.PurchaseRequest, error) {
	if req.ProductID == uuid.Nil {
		return req, fmt.Errorf("%w: product id is required", ErrInvalidPurchase)
	}
	if !req.Price.IsPositive() {
		return req, fmt.Errorf("%w: price must be greater than zero", ErrInvalidPurchase)
	}
	if !hasMaxPlaces(req.Price) {
		return req, fmt.Errorf("%w: price has more than two decimal places", ErrInvalidPurchase)
	}
	if req.Price.GreaterThanOrEqual(maxPrice) {
		return req, fmt.Errorf("%w: price must be below %s", ErrInvalidPurchase, maxPrice)
	}

	if req.BuyerUserID != nil && *req.BuyerUserID == uuid.Nil {
		req.BuyerUserID = nil
	}
	if req.BuyerEmail != nil {
		email := strings.TrimSpace(*req.BuyerEmail)
		if email == "" {
			req.BuyerEmail = nil
		} else {
			addr, err := mail.ParseAddress(email)
			if err != nil || addr.Address != email {
				return req, fmt.Errorf("%w: invalid buyer email", ErrInvalidPurchase)
			}
			req.BuyerEmail = &email
		}
	}
	if req.BuyerUserID == nil && req.BuyerEmail == nil {
		return req, fmt.Errorf("%w: buyer user id or email is required", ErrInvalidPurchase)
	}

	req.DownloadURL = strings.TrimSpace(req.DownloadURL)
	return req, nil
}
