package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view the ledger needs: who gets paid and whether
// the product can be bought.
type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SellerUserID uuid.UUID       `json:"user_id" db:"user_id"`
	Title        string          `json:"title" db:"title"`
	Price        decimal.Decimal `json:"price" db:"price"`
	IsActive     bool            `json:"is_active" db:"is_active"`
}

// AffiliateLink binds an affiliate to a product with a percentage rate.
// Links are deactivated, never deleted.
type AffiliateLink struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	AffiliateUserID uuid.UUID       `json:"affiliate_user_id" db:"affiliate_user_id"`
	CommissionRate  decimal.Decimal `json:"commission_rate" db:"commission_rate"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
