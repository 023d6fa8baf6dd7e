package postgres

import (
	"context"
	"fmt"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/google/uuid"
)

func (r *postgresStore) ListPurchasesByBuyer(ctx context.Context, buyerUserID uuid.UUID) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	query := `SELECT id, product_id, buyer_user_id, buyer_email, purchase_price, download_url, status, created_at
		FROM product_purchases
		WHERE buyer_user_id = $1
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &purchases, query, buyerUserID); err != nil {
		return nil, classifyError(fmt.Errorf("list purchases: %w", err))
	}
	return purchases, nil
}

func (r *postgresStore) ListDistributions(ctx context.Context, purchaseID uuid.UUID) ([]models.CommissionDistribution, error) {
	distributions := []models.CommissionDistribution{}
	query := `SELECT id, affiliate_product_id, purchase_id, affiliate_user_id, commission_amount, created_at
		FROM commission_distributions
		WHERE purchase_id = $1
		ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &distributions, query, purchaseID); err != nil {
		return nil, classifyError(fmt.Errorf("list distributions: %w", err))
	}
	return distributions, nil
}
