package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const affiliateColumns = `id, product_id, affiliate_user_id, commission_rate, is_active, created_at, updated_at`

func getProduct(ctx context.Context, q sqlx.QueryerContext, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	query := `SELECT id, user_id, title, price, is_active FROM products WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &product, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

func listActiveAffiliateLinks(ctx context.Context, q sqlx.QueryerContext, productID uuid.UUID) ([]models.AffiliateLink, error) {
	links := []models.AffiliateLink{}
	query := `SELECT ` + affiliateColumns + ` FROM affiliate_products
		WHERE product_id = $1 AND is_active
		ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, q, &links, query, productID); err != nil {
		return nil, fmt.Errorf("list affiliate links: %w", err)
	}
	return links, nil
}

func (r *postgresStore) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := getProduct(ctx, r.db, productID)
	if err != nil {
		return nil, classifyError(err)
	}
	return product, nil
}

func (r *postgresStore) ListActiveAffiliateLinks(ctx context.Context, productID uuid.UUID) ([]models.AffiliateLink, error) {
	links, err := listActiveAffiliateLinks(ctx, r.db, productID)
	if err != nil {
		return nil, classifyError(err)
	}
	return links, nil
}

// UpsertAffiliateLink creates the (product, affiliate) link or updates its
// rate and active flag in place.
func (r *postgresStore) UpsertAffiliateLink(ctx context.Context, link *models.AffiliateLink) (*models.AffiliateLink, error) {
	var saved models.AffiliateLink
	query := `INSERT INTO affiliate_products (id, product_id, affiliate_user_id, commission_rate, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, affiliate_user_id) DO UPDATE
		SET commission_rate = EXCLUDED.commission_rate,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING ` + affiliateColumns

	id := link.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	err := r.db.GetContext(ctx, &saved, query, id, link.ProductID, link.AffiliateUserID, link.CommissionRate, link.IsActive)
	if err != nil {
		return nil, classifyError(fmt.Errorf("upsert affiliate link: %w", err))
	}
	return &saved, nil
}

func (r *postgresStore) ListAffiliateLinksByUser(ctx context.Context, affiliateUserID uuid.UUID) ([]models.AffiliateLink, error) {
	links := []models.AffiliateLink{}
	query := `SELECT ` + affiliateColumns + ` FROM affiliate_products
		WHERE affiliate_user_id = $1
		ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &links, query, affiliateUserID); err != nil {
		return nil, classifyError(fmt.Errorf("list affiliate links by user: %w", err))
	}
	return links, nil
}
