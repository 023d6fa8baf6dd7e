package usecase

import (
	"context"
	"fmt"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AffiliateToggle creates or updates an affiliate link. Nil fields keep the
// stored value; a new link needs a rate and starts active.
type AffiliateToggle struct {
	ProductID       uuid.UUID        `json:"product_id"`
	AffiliateUserID uuid.UUID        `json:"affiliate_user_id"`
	CommissionRate  *decimal.Decimal `json:"commission_rate,omitempty"`
	IsActive        *bool            `json:"is_active,omitempty"`
}

type AffiliateUsecase interface {
	Toggle(ctx context.Context, req AffiliateToggle) (link *models.AffiliateLink, created bool, err error)
	ListByUser(ctx context.Context, affiliateUserID uuid.UUID) ([]models.AffiliateLink, error)
	ListActiveForProduct(ctx context.Context, productID uuid.UUID) ([]models.AffiliateLink, error)
}

type affiliateUsecase struct {
	repo repository.AffiliateRepository
	log  logger.Logger
}

func NewAffiliateUsecase(repo repository.AffiliateRepository, log logger.Logger) AffiliateUsecase {
	return &affiliateUsecase{repo: repo, log: log}
}

func (uc *affiliateUsecase) Toggle(ctx context.Context, req AffiliateToggle) (*models.AffiliateLink, bool, error) {
	if req.AffiliateUserID == uuid.Nil {
		return nil, false, ErrInvalidUserID
	}
	if _, err := uc.repo.GetProduct(ctx, req.ProductID); err != nil {
		return nil, false, fmt.Errorf("toggle affiliate: %w", err)
	}

	existing, err := uc.find(ctx, req.ProductID, req.AffiliateUserID)
	if err != nil {
		return nil, false, err
	}

	link := models.AffiliateLink{
		ProductID:       req.ProductID,
		AffiliateUserID: req.AffiliateUserID,
		IsActive:        true,
	}
	if existing != nil {
		link = *existing
	} else if req.CommissionRate == nil {
		return nil, false, fmt.Errorf("%w: rate is required for a new link", ErrInvalidCommissionRate)
	}
	if req.IsActive != nil {
		link.IsActive = *req.IsActive
	}
	if req.CommissionRate != nil {
		link.CommissionRate = *req.CommissionRate
	}
	if err := validateRate(link.CommissionRate); err != nil {
		return nil, false, err
	}

	saved, err := uc.repo.UpsertAffiliateLink(ctx, &link)
	if err != nil {
		return nil, false, fmt.Errorf("toggle affiliate: %w", err)
	}

	uc.log.Info("Affiliate link saved",
		logger.StringField("product_id", saved.ProductID.String()),
		logger.StringField("affiliate_user_id", saved.AffiliateUserID.String()),
		logger.StringField("commission_rate", saved.CommissionRate.StringFixed(2)),
		logger.AnyField("is_active", saved.IsActive))
	return saved, existing == nil, nil
}

func (uc *affiliateUsecase) ListByUser(ctx context.Context, affiliateUserID uuid.UUID) ([]models.AffiliateLink, error) {
	return uc.repo.ListAffiliateLinksByUser(ctx, affiliateUserID)
}

func (uc *affiliateUsecase) ListActiveForProduct(ctx context.Context, productID uuid.UUID) ([]models.AffiliateLink, error) {
	return uc.repo.ListActiveAffiliateLinks(ctx, productID)
}

func (uc *affiliateUsecase) find(ctx context.Context, productID, affiliateUserID uuid.UUID) (*models.AffiliateLink, error) {
	links, err := uc.repo.ListAffiliateLinksByUser(ctx, affiliateUserID)
	if err != nil {
		return nil, fmt.Errorf("list affiliate links: %w", err)
	}
	for i := range links {
		if links[i].ProductID == productID {
			return &links[i], nil
		}
	}
	return nil, nil
}
