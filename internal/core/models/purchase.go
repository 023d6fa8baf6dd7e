package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const PurchaseStatusCompleted = "completed"

type Purchase struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	BuyerUserID *uuid.UUID      `json:"buyer_user_id,omitempty" db:"buyer_user_id"`
	BuyerEmail  *string         `json:"buyer_email,omitempty" db:"buyer_email"`
	Price       decimal.Decimal `json:"purchase_price" db:"purchase_price"`
	DownloadURL string          `json:"download_url" db:"download_url"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PurchaseRequest is the input of a settlement. Either BuyerUserID or
// BuyerEmail must be set.
type PurchaseRequest struct {
	ProductID   uuid.UUID       `json:"product_id"`
	BuyerUserID *uuid.UUID      `json:"buyer_user_id,omitempty"`
	BuyerEmail  *string         `json:"buyer_email,omitempty"`
	Price       decimal.Decimal `json:"purchase_price"`
	DownloadURL string          `json:"download_url"`
}

type CommissionDistribution struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	AffiliateLinkID  uuid.UUID       `json:"affiliate_product_id" db:"affiliate_product_id"`
	PurchaseID       uuid.UUID       `json:"purchase_id" db:"purchase_id"`
	AffiliateUserID  uuid.UUID       `json:"affiliate_user_id" db:"affiliate_user_id"`
	CommissionAmount decimal.Decimal `json:"commission_amount" db:"commission_amount"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Settlement is what a settled purchase produced.
type Settlement struct {
	Purchase      Purchase                 `json:"purchase"`
	Distributions []CommissionDistribution `json:"distributions"`
}
